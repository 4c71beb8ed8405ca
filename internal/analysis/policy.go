package analysis

import (
	"github.com/atrai/atrai-backend-go/internal/models"
)

// AggregationKind is the tag of a metric aggregation variant.
type AggregationKind int

const (
	// AggregateMean averages the non-null values of a metric per segment.
	AggregateMean AggregationKind = iota
	// AggregateHistogram bins the non-null values of a metric per segment.
	AggregateHistogram
)

func (k AggregationKind) String() string {
	switch k {
	case AggregateMean:
		return "mean"
	case AggregateHistogram:
		return "histogram"
	}
	return "unknown"
}

// MetricPolicy says how one metric column is aggregated per segment.
type MetricPolicy struct {
	Metric string
	Kind   AggregationKind

	// Include optionally restricts which matched records contribute
	Include func(models.PointRecord) bool

	// Edges are the bin edges of a histogram
	Edges []float64
}

// Mean is a MetricPolicy averaging metric over every matched record.
func Mean(metric string) MetricPolicy {
	return MetricPolicy{Metric: metric, Kind: AggregateMean}
}

// MeanWhere averages metric over the records accepted by include.
func MeanWhere(metric string, include func(models.PointRecord) bool) MetricPolicy {
	return MetricPolicy{Metric: metric, Kind: AggregateMean, Include: include}
}

// Histogram bins metric into edges. Records whose reading falls outside
// the edges do not contribute, so the bins always sum to the number of
// contributing records.
func Histogram(metric string, edges []float64, include func(models.PointRecord) bool) MetricPolicy {
	return MetricPolicy{
		Metric:  metric,
		Kind:    AggregateHistogram,
		Edges:   edges,
		Include: AllOf(include, InRange(metric, edges)),
	}
}

// InRange accepts records with a metric reading inside [edges[0], edges[n-1]].
func InRange(metric string, edges []float64) func(models.PointRecord) bool {
	return func(r models.PointRecord) bool {
		v, ok := r.Reading(metric)
		if !ok || len(edges) < 2 {
			return false
		}
		return v >= edges[0] && v <= edges[len(edges)-1]
	}
}

// AllOf accepts records accepted by every non-nil predicate.
func AllOf(preds ...func(models.PointRecord) bool) func(models.PointRecord) bool {
	return func(r models.PointRecord) bool {
		for _, p := range preds {
			if p != nil && !p(r) {
				return false
			}
		}
		return true
	}
}

// Accepts reports whether r contributes to the metric.
func (m MetricPolicy) Accepts(r models.PointRecord) bool {
	return m.Include == nil || m.Include(r)
}

// Schema returns the output column types produced by metrics, in the
// shape stored on a collection.
func Schema(metrics []MetricPolicy) map[string]string {
	schema := map[string]string{
		"id":                               "integer",
		models.ColumnAverageDistanceToRoad: "number",
		models.ColumnNumberOfPoints:        "integer",
		models.ColumnNumberOfBoxes:         "integer",
	}
	for _, m := range metrics {
		switch m.Kind {
		case AggregateMean:
			schema[models.AverageColumn(m.Metric)] = "number"
		case AggregateHistogram:
			schema[models.ColumnOvertakingHistogram] = "string"
		}
	}
	return schema
}
