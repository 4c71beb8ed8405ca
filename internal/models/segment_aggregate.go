package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Output column names of a segment aggregate.
const (
	ColumnAverageDistanceToRoad = "Average Distance to Road"
	ColumnNumberOfPoints        = "Number of Points"
	ColumnNumberOfBoxes         = "Number of Boxes"
	ColumnOvertakingHistogram   = "Overtaking Histogram"
)

// AverageColumn names the output column for the mean of metric.
func AverageColumn(metric string) string {
	return "Average " + metric
}

// MatchedAggregate is the per road segment result of matching points onto
// the network. Segments without matched points never produce one.
type MatchedAggregate struct {
	ID        int64  `json:"id" db:"id"`
	Campaign  string `json:"campaign" db:"campaign"`
	Analyzer  string `json:"analyzer" db:"analyzer"`
	SegmentID int64  `json:"segment_id" db:"segment_id"`

	Geometry   orb.LineString `json:"-" db:"geometry"` // lon/lat
	Attributes map[string]any `json:"attributes,omitempty" db:"-"`

	// Averages is keyed by metric name; nil when no contributing value was non-null
	Averages              map[string]*float64 `json:"averages" db:"-"`
	AverageDistanceToRoad float64             `json:"average_distance_to_road" db:"average_distance_to_road"`
	NumberOfPoints        int                 `json:"number_of_points" db:"number_of_points"`
	NumberOfBoxes         int                 `json:"number_of_boxes" db:"number_of_boxes"`
	Histogram             *string             `json:"histogram,omitempty" db:"histogram"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Properties returns the tabular output row under the published column names.
func (a MatchedAggregate) Properties() map[string]any {
	props := make(map[string]any, len(a.Attributes)+len(a.Averages)+5)
	for k, v := range a.Attributes {
		props[k] = v
	}
	props["id"] = a.SegmentID
	for metric, v := range a.Averages {
		if v == nil {
			props[AverageColumn(metric)] = nil
			continue
		}
		props[AverageColumn(metric)] = *v
	}
	props[ColumnAverageDistanceToRoad] = a.AverageDistanceToRoad
	props[ColumnNumberOfPoints] = a.NumberOfPoints
	props[ColumnNumberOfBoxes] = a.NumberOfBoxes
	if a.Histogram != nil {
		props[ColumnOvertakingHistogram] = *a.Histogram
	}
	return props
}
