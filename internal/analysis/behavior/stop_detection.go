package behavior

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/analysis/foundation"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/models"
)

// StopsAnalyzerName is the traffic stop detection process; its single
// layer carries the same name.
const StopsAnalyzerName = "traffic_stops"

// stop timestamps are rendered without fractional seconds
const stopTimeLayout = "2006-01-02T15:04:05Z"

// StopOptions are the thresholds of stop detection
type StopOptions struct {
	MaxDiameterMeters float64
	MinDuration       time.Duration
	RideGap           time.Duration // records further apart belong to different rides
}

// StopOptionsFor picks the stop thresholds out of p, letting the request
// override them.
func StopOptionsFor(p config.Policy, req analysis.Request) StopOptions {
	opts := StopOptions{
		MaxDiameterMeters: p.StopMaxDiameterMeters,
		MinDuration:       p.StopMinDuration(),
		RideGap:           foundation.RideGap,
	}
	if req.StopMaxDiameterMeters > 0 {
		opts.MaxDiameterMeters = req.StopMaxDiameterMeters
	}
	if req.StopMinDurationMinutes > 0 {
		opts.MinDuration = time.Duration(req.StopMinDurationMinutes * float64(time.Minute))
	}
	return opts
}

// Stop is a stretch of one ride spent inside a small circle
type Stop struct {
	BoxID  string
	Start  time.Time
	End    time.Time
	Center orb.Point
	Points int
}

// Duration is the dwell time of the stop.
func (s Stop) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// diameterMeters is the geodesic diagonal of b, an upper bound of the
// largest distance between two points inside it.
func diameterMeters(b orb.Bound) float64 {
	return geo.Distance(b.Min, b.Max)
}

// DetectStops scans one box's time sorted records ride by ride. From each
// record it grows the longest run whose extent stays within
// MaxDiameterMeters; a run lasting at least MinDuration is a stop and the
// scan resumes after it. Stops never span a gap longer than RideGap.
func DetectStops(records []models.PointRecord, opts StopOptions) []Stop {
	var stops []Stop
	for _, ride := range foundation.SplitOnGap(foundation.DropInvalid(records), opts.RideGap) {
		for i := 0; i < len(ride); {
			b := ride[i].Position.Bound()
			j := i
			for j+1 < len(ride) {
				next := b.Extend(*ride[j+1].Position)
				if diameterMeters(next) > opts.MaxDiameterMeters {
					break
				}
				b, j = next, j+1
			}

			if j > i && ride[j].CreatedAt.Sub(ride[i].CreatedAt) >= opts.MinDuration {
				stops = append(stops, newStop(ride[i:j+1]))
				i = j + 1
				continue
			}
			i++
		}
	}
	return stops
}

func newStop(run []models.PointRecord) Stop {
	mp := make(orb.MultiPoint, len(run))
	for i, r := range run {
		mp[i] = *r.Position
	}
	center, _ := planar.CentroidArea(mp)
	return Stop{
		BoxID:  run[0].BoxID,
		Start:  run[0].CreatedAt,
		End:    run[len(run)-1].CreatedAt,
		Center: center,
		Points: len(run),
	}
}

// DetectAllStops runs DetectStops for every box with up to workers boxes in
// flight. Output is ordered by box id, then start time.
func DetectAllStops(ctx context.Context, records []models.PointRecord, opts StopOptions, workers int) ([]Stop, error) {
	boxes, groups := foundation.GroupByBox(records)
	results := make([][]Stop, len(boxes))

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
			results[i] = DetectStops(groups[box], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var stops []Stop
	for _, r := range results {
		stops = append(stops, r...)
	}
	return stops, nil
}

// StopFeature renders a stop as a point feature.
func StopFeature(s Stop) models.PointFeature {
	start := s.Start.UTC().Format(stopTimeLayout)
	return models.PointFeature{
		BoxID:    s.BoxID,
		Position: s.Center,
		Properties: map[string]any{
			"stop_id":     s.BoxID + "_" + start,
			"traj_id":     s.BoxID,
			"start_time":  start,
			"end_time":    s.End.UTC().Format(stopTimeLayout),
			"duration_s":  s.Duration().Seconds(),
			"point_count": s.Points,
		},
	}
}

var stopSchema = map[string]string{
	"id":          "integer",
	"box_id":      "string",
	"stop_id":     "string",
	"traj_id":     "string",
	"start_time":  "string",
	"end_time":    "string",
	"duration_s":  "number",
	"point_count": "integer",
}

// TrafficStopsAnalyzer detects where riders stood still
type TrafficStopsAnalyzer struct {
	*analysis.BaseAnalyzer
}

// NewTrafficStopsAnalyzer creates a new traffic stops analyzer
func NewTrafficStopsAnalyzer(deps analysis.Deps) analysis.Analyzer {
	return &TrafficStopsAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer(deps, StopsAnalyzerName),
	}
}

// Analyze detects the stops of the selected boxes and replaces the layer
func (a *TrafficStopsAnalyzer) Analyze(ctx context.Context, taskID int64, req analysis.Request) (*analysis.Result, error) {
	started := time.Now()
	key := req.OutputKey()
	opts := StopOptionsFor(a.Policy, req)
	a.Logger.Info("starting analysis",
		zap.Int64("task_id", taskID),
		zap.String("key", key),
		zap.Float64("max_diameter_m", opts.MaxDiameterMeters),
		zap.Duration("min_duration", opts.MinDuration),
	)

	points, err := a.LoadPoints(ctx, req)
	if err != nil {
		return nil, err
	}
	records, err := a.RunStages(ctx, taskID, points,
		analysis.Stage{Name: "drop_invalid", Run: foundation.DropInvalid},
	)
	if err != nil {
		return nil, err
	}

	stops, err := DetectAllStops(ctx, records, opts, a.Workers)
	if err != nil {
		return nil, err
	}
	features := make([]models.PointFeature, len(stops))
	for i, s := range stops {
		features[i] = StopFeature(s)
	}

	if err := a.Features.ReplaceFeatures(ctx, key, StopsAnalyzerName, features); err != nil {
		return nil, fmt.Errorf("failed to store stops: %w", err)
	}
	if len(features) > 0 {
		if err := a.RegisterCollection(ctx, req, FeatureBound(features), stopSchema); err != nil {
			return nil, err
		}
	}

	a.Logger.Info("analysis completed", zap.Int("stops", len(stops)), zap.Duration("elapsed", time.Since(started)))

	message := fmt.Sprintf("Successfully detected %d stops.", len(stops))
	if len(stops) == 0 {
		message = fmt.Sprintf("No stops detected with criteria: %gm / %gmin.", opts.MaxDiameterMeters, opts.MinDuration.Minutes())
	}
	return &analysis.Result{
		Rows: len(stops),
		Summary: map[string]any{
			"points_loaded":  len(points),
			"stops":          len(stops),
			"max_diameter_m": opts.MaxDiameterMeters,
			"min_duration_s": opts.MinDuration.Seconds(),
			"message":        message,
			"policy_version": a.Policy.Version,
		},
	}, nil
}

func init() {
	analysis.RegisterAnalyzer(StopsAnalyzerName, NewTrafficStopsAnalyzer)
	analysis.RegisterLayer(analysis.Layer{Name: StopsAnalyzerName, Analyzer: StopsAnalyzerName, Title: "Traffic stops"})
}
