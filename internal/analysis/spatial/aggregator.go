package spatial

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/spatial"
	"github.com/atrai/atrai-backend-go/internal/stats"
)

type segmentGroup struct {
	distances []float64
	boxes     map[string]struct{}
	values    map[string][]float64
	histogram *stats.Histogram
}

// Aggregate groups matches by segment and applies metrics to every group.
// Means skip null readings per metric only; a record missing one metric
// still counts towards the others. A segment's histogram is nil when no
// value reached it. Segment geometry is returned in the geographic
// reference, rows sorted by segment id.
func Aggregate(matches []Match, roads []models.RoadSegment, roadsCRS string, metrics []analysis.MetricPolicy) ([]models.MatchedAggregate, error) {
	groups := make(map[int]*segmentGroup)
	for _, m := range matches {
		g, ok := groups[m.Segment]
		if !ok {
			g = &segmentGroup{
				boxes:  make(map[string]struct{}),
				values: make(map[string][]float64),
			}
			groups[m.Segment] = g
		}

		g.distances = append(g.distances, m.Distance)
		g.boxes[m.Record.BoxID] = struct{}{}

		for _, metric := range metrics {
			if !metric.Accepts(m.Record) {
				continue
			}
			v, ok := m.Record.Reading(metric.Metric)
			if !ok {
				continue
			}
			switch metric.Kind {
			case analysis.AggregateMean:
				g.values[metric.Metric] = append(g.values[metric.Metric], v)
			case analysis.AggregateHistogram:
				if g.histogram == nil {
					g.histogram = stats.NewHistogram(metric.Edges)
				}
				g.histogram.Add(v)
			}
		}
	}

	positions := make([]int, 0, len(groups))
	for pos := range groups {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	normalizer := spatial.DefaultNormalizer()
	rows := make([]models.MatchedAggregate, 0, len(groups))
	for _, pos := range positions {
		g := groups[pos]
		road := roads[pos]
		geom, err := normalizer.GeographicLine(road.Geometry, roadsCRS)
		if err != nil {
			return nil, err
		}

		row := models.MatchedAggregate{
			SegmentID:             road.ID,
			Geometry:              geom,
			Attributes:            road.Attributes(),
			Averages:              make(map[string]*float64),
			AverageDistanceToRoad: stats.Mean(g.distances),
			NumberOfPoints:        len(g.distances),
			NumberOfBoxes:         len(g.boxes),
		}
		for _, metric := range metrics {
			if metric.Kind != analysis.AggregateMean {
				continue
			}
			if mean, ok := stats.NullableMean(g.values[metric.Metric]); ok {
				row.Averages[metric.Metric] = &mean
			} else {
				row.Averages[metric.Metric] = nil
			}
		}
		if g.histogram != nil && g.histogram.Total() > 0 {
			s := g.histogram.String()
			row.Histogram = &s
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].SegmentID < rows[j].SegmentID
	})
	return rows, nil
}

// Extent returns the bounding box of the aggregate geometries.
func Extent(rows []models.MatchedAggregate) orb.Bound {
	var b orb.Bound
	for i, r := range rows {
		if i == 0 {
			b = r.Geometry.Bound()
			continue
		}
		b = b.Union(r.Geometry.Bound())
	}
	return b
}
