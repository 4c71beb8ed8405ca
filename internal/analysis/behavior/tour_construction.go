package behavior

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/atrai/atrai-backend-go/internal/analysis/foundation"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/spatial"
)

// TourOptions are the thresholds of tour construction
type TourOptions struct {
	Interval            time.Duration // inactivity gap that ends a tour
	ClusterRadiusMeters float64
	MinDurationSeconds  float64
	MinDistanceMeters   float64
	MinPoints           int // counted after decluttering
}

// OptionsFromPolicy picks the tour thresholds out of p.
func OptionsFromPolicy(p config.Policy) TourOptions {
	return TourOptions{
		Interval:            p.TourInterval(),
		ClusterRadiusMeters: p.ClusterRadiusMeters,
		MinDurationSeconds:  p.MinTourDurationSeconds,
		MinDistanceMeters:   p.MinTourDistanceMeters,
		MinPoints:           p.MinTourPoints,
	}
}

// Candidate is a run of one box's records between inactivity gaps
type Candidate struct {
	BoxID   string
	Index   int // from 0 per box
	Records []models.PointRecord
}

// SplitTours sorts one box's records by time and cuts them wherever two
// consecutive records are more than interval apart; a gap equal to the
// interval does not split. Records without a position or timestamp are
// dropped before gaps are measured.
func SplitTours(records []models.PointRecord, interval time.Duration) []Candidate {
	valid := foundation.DropInvalid(records)
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].CreatedAt.Before(valid[j].CreatedAt)
	})

	runs := foundation.SplitOnGap(valid, interval)
	candidates := make([]Candidate, len(runs))
	for i, run := range runs {
		candidates[i] = Candidate{BoxID: run[0].BoxID, Index: i, Records: run}
	}
	return candidates
}

// BuildTour turns a candidate into a tour. ok is false when the decluttered
// positions cannot form a line or the tour misses any minimum bound. A
// candidate spread wider than the cluster radius that declutters to a single
// vertex keeps its raw positions instead.
// Speed and energy are left for the statistics stage.
func BuildTour(c Candidate, opts TourOptions) (tour models.Tour, ok bool) {
	if len(c.Records) == 0 {
		return models.Tour{}, false
	}

	positions := make([]orb.Point, len(c.Records))
	for i, r := range c.Records {
		positions[i] = *r.Position
	}
	vertices := foundation.Declutter(positions, opts.ClusterRadiusMeters)
	if distinctCount(vertices) < 2 && spreadMeters(positions) > opts.ClusterRadiusMeters {
		// single link chains a densely sampled ride into one cluster;
		// only a stationary run may collapse
		vertices = dropRepeats(positions)
	}
	if distinctCount(vertices) < 2 {
		return models.Tour{}, false
	}

	line := orb.LineString(vertices)
	first, last := c.Records[0], c.Records[len(c.Records)-1]
	tour = models.Tour{
		Campaign:        first.Campaign,
		BoxID:           c.BoxID,
		TourIndex:       c.Index,
		Geometry:        line,
		StartTime:       first.CreatedAt,
		EndTime:         last.CreatedAt,
		DurationSeconds: last.CreatedAt.Sub(first.CreatedAt).Seconds(),
		DistanceMeters:  spatial.LineLengthMeters(line),
		PointCount:      len(vertices),
	}

	if tour.DurationSeconds < opts.MinDurationSeconds ||
		tour.DistanceMeters < opts.MinDistanceMeters ||
		tour.PointCount < opts.MinPoints {
		return models.Tour{}, false
	}
	return tour, true
}

// BuildTours splits one box's records and keeps the tours passing the bounds.
func BuildTours(records []models.PointRecord, opts TourOptions) []models.Tour {
	var tours []models.Tour
	for _, c := range SplitTours(records, opts.Interval) {
		if t, ok := BuildTour(c, opts); ok {
			tours = append(tours, t)
		}
	}
	return tours
}

// BuildAllTours runs BuildTours for every box with up to workers boxes in
// flight. Output is ordered by box id, then tour index, whatever the
// completion order.
func BuildAllTours(ctx context.Context, records []models.PointRecord, opts TourOptions, workers int) ([]models.Tour, error) {
	boxes, groups := foundation.GroupByBox(records)
	results := make([][]models.Tour, len(boxes))

	g, ctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, box := range boxes {
		i, box := i, box
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = BuildTours(groups[box], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tours []models.Tour
	for _, r := range results {
		tours = append(tours, r...)
	}
	return tours, nil
}

func distinctCount(points []orb.Point) int {
	seen := make(map[orb.Point]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// spreadMeters is the diagonal of the bounding box of points in the same
// degree metric the declutter radius uses.
func spreadMeters(points []orb.Point) float64 {
	b := orb.MultiPoint(points).Bound()
	return spatial.DegreesToMeters(math.Hypot(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]))
}

// dropRepeats removes consecutive duplicate positions.
func dropRepeats(points []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(points))
	for i, p := range points {
		if i > 0 && p == points[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
