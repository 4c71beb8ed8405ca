package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/analysis/behavior"
	"github.com/atrai/atrai-backend-go/internal/analysis/foundation"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/spatial"
)

// AnalyzerName is the registered name of the statistics analyzer.
const AnalyzerName = "statistics"

// StatisticsAnalyzer cuts a tag's point stream into tours and stores them
// together with the overall and periodic ride statistics of the tag.
type StatisticsAnalyzer struct {
	*analysis.BaseAnalyzer
}

// NewStatisticsAnalyzer creates a new statistics analyzer
func NewStatisticsAnalyzer(deps analysis.Deps) analysis.Analyzer {
	return &StatisticsAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer(deps, AnalyzerName),
	}
}

// tourSchema describes the columns of a published tour collection
var tourSchema = map[string]string{
	"id":                "integer",
	"box_id":            "string",
	"tour_index":        "integer",
	"start_time":        "string",
	"end_time":          "string",
	"duration_s":        "number",
	"distance_m":        "number",
	"average_speed_kmh": "number",
	"kcal":              "number",
	"point_count":       "integer",
}

// Analyze builds the tours of the selection and upserts its statistics row.
func (a *StatisticsAnalyzer) Analyze(ctx context.Context, taskID int64, req analysis.Request) (*analysis.Result, error) {
	started := time.Now()
	tag := req.OutputKey()
	a.Logger.Info("starting analysis", zap.Int64("task_id", taskID), zap.String("tag", tag))

	points, err := a.LoadPoints(ctx, req)
	if err != nil {
		return nil, err
	}

	records, err := a.RunStages(ctx, taskID, points, analysis.Stage{Name: "drop_invalid", Run: foundation.DropInvalid})
	if err != nil {
		return nil, err
	}

	tours, err := behavior.BuildAllTours(ctx, records, behavior.OptionsFromPolicy(a.Policy), a.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to build tours: %w", err)
	}
	tours = Annotate(tours, a.Policy)
	for i := range tours {
		tours[i].Campaign = tag
	}

	positions := make([]orb.Point, len(records))
	for i, r := range records {
		positions[i] = *r.Position
	}

	summary := Summarize(tours)
	rec := models.StatisticsRecord{
		Tag:        tag,
		Statistics: summary,
		Geometry:   spatial.ConvexHull(positions),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := a.Statistics.StoreStatistics(ctx, rec, tours); err != nil {
		return nil, fmt.Errorf("failed to store statistics: %w", err)
	}

	if len(tours) > 0 {
		bbox := orb.MultiLineString(tourLines(tours)).Bound()
		if err := a.RegisterCollection(ctx, req, bbox, tourSchema); err != nil {
			return nil, err
		}
	}

	a.Logger.Info("analysis completed",
		zap.Int("points", len(records)),
		zap.Int("tours", len(tours)),
		zap.String("granularity", summary.Granularity),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &analysis.Result{
		Rows: len(tours),
		Summary: map[string]any{
			"points_loaded":   len(points),
			"points_prepared": len(records),
			"tours":           len(tours),
			"granularity":     summary.Granularity,
			"buckets":         len(summary.PeriodicStats),
			"policy_version":  a.Policy.Version,
		},
	}, nil
}

func tourLines(tours []models.Tour) []orb.LineString {
	lines := make([]orb.LineString, len(tours))
	for i, t := range tours {
		lines[i] = t.Geometry
	}
	return lines
}

func init() {
	analysis.RegisterAnalyzer(AnalyzerName, NewStatisticsAnalyzer)
}
