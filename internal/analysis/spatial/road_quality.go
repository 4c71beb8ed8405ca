package spatial

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/analysis/foundation"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/models"
)

// Profile is one road quality process: how records are prepared and which
// metrics are aggregated per segment.
type Profile struct {
	Name        string
	Title       string
	DedupeRoads bool // drop reversed duplicate segments before matching

	Build func(policy config.Policy) ([]analysis.Stage, []analysis.MetricPolicy, error)
}

// Profiles are registered as analyzers under their name.
var Profiles = []Profile{
	{
		Name:  "bumpy_roads",
		Title: "Road roughness",
		Build: func(policy config.Policy) ([]analysis.Stage, []analysis.MetricPolicy, error) {
			stages := []analysis.Stage{
				requireStage(models.SurfaceMetrics...),
				{Name: "roughness", Run: foundation.WithRoughness},
				{Name: "roughness_normalized", Run: foundation.WithRoughnessNormalized},
				requireStage(models.MetricRoughnessNormalized),
			}
			return stages, []analysis.MetricPolicy{
				analysis.Mean(models.MetricRoughness),
				analysis.Mean(models.MetricRoughnessNormalized),
			}, nil
		},
	},
	{
		Name:  "distances_flowmap",
		Title: "Overtaking distances",
		Build: func(policy config.Policy) ([]analysis.Stage, []analysis.MetricPolicy, error) {
			edges, err := policy.HistogramEdges()
			if err != nil {
				return nil, nil, err
			}
			stages := []analysis.Stage{
				requireStage(models.MetricOvertakingDistance),
				{Name: "overtaking_events", Run: func(r []models.PointRecord) []models.PointRecord {
					return foundation.Where(r, func(p models.PointRecord) bool {
						m, ok := p.Reading(models.MetricOvertakingManoeuvre)
						d, _ := p.Reading(models.MetricOvertakingDistance)
						return ok && m > 0.05 && d > 0
					})
				}},
				{Name: "normalized_distance", Run: foundation.WithNormalizedOvertakingDistance},
			}
			return stages, []analysis.MetricPolicy{
				analysis.Mean(models.MetricOvertakingDistance),
				analysis.Mean(models.MetricOvertakingManoeuvre),
				analysis.Mean(models.MetricNormalizedOvertakingDistance),
				analysis.Histogram(models.MetricOvertakingDistance, edges, nil),
			}, nil
		},
	},
	{
		Name:  "speed_map",
		Title: "Cycling speed",
		Build: func(policy config.Policy) ([]analysis.Stage, []analysis.MetricPolicy, error) {
			stages := []analysis.Stage{
				minDevicePointsStage(policy.MinDevicePoints),
				{Name: "non_negative_speed", Run: func(r []models.PointRecord) []models.PointRecord {
					return foundation.ReadingAtLeast(r, models.MetricSpeed, 0)
				}},
				{Name: "normalized_speed", Run: foundation.WithNormalizedSpeed},
				{Name: "speed_kmh", Run: foundation.WithSpeedKmh},
			}
			return stages, []analysis.MetricPolicy{
				analysis.Mean(models.MetricNormalizedSpeed),
				analysis.Mean(models.MetricSpeedKmh),
			}, nil
		},
	},
	{
		Name:  "traffic_flow",
		Title: "Traffic flow",
		Build: func(policy config.Policy) ([]analysis.Stage, []analysis.MetricPolicy, error) {
			stages := []analysis.Stage{
				{Name: "trim_standing", Run: func(r []models.PointRecord) []models.PointRecord {
					return foundation.TrimStanding(r, foundation.StandingThreshold, foundation.RideGap)
				}},
				{Name: "non_negative_speed", Run: func(r []models.PointRecord) []models.PointRecord {
					return foundation.ReadingAtLeast(r, models.MetricSpeed, 0)
				}},
				{Name: "normalized_speed", Run: foundation.WithNormalizedSpeed},
				{Name: "traffic_flow", Run: foundation.WithTrafficFlow},
			}
			return stages, []analysis.MetricPolicy{
				analysis.Mean(models.MetricTrafficFlow),
			}, nil
		},
	},
	{
		Name:  "pm_analysis",
		Title: "Particulate matter",
		Build: func(policy config.Policy) ([]analysis.Stage, []analysis.MetricPolicy, error) {
			stages := []analysis.Stage{
				minDevicePointsStage(policy.MinDevicePoints),
				{Name: "humidity", Run: func(r []models.PointRecord) []models.PointRecord {
					return foundation.ReadingAtMost(r, models.MetricHumidity, 75)
				}},
			}
			metrics := make([]analysis.MetricPolicy, 0, len(models.PMMetrics))
			for _, pm := range models.PMMetrics {
				pm := pm
				stages = append(stages, analysis.Stage{
					Name: "outliers_" + pm,
					Run: func(r []models.PointRecord) []models.PointRecord {
						return foundation.NullOutliersByDevice(r, pm)
					},
				})
				metrics = append(metrics, analysis.Mean(pm))
			}
			return stages, metrics, nil
		},
	},
	{
		Name:        "annotate_roads",
		Title:       "Annotated road network",
		DedupeRoads: true,
		Build: func(policy config.Policy) ([]analysis.Stage, []analysis.MetricPolicy, error) {
			edges, err := policy.HistogramEdges()
			if err != nil {
				return nil, nil, err
			}
			stages := []analysis.Stage{
				{Name: "normalized_speed", Run: foundation.WithNormalizedSpeed},
				{Name: "traffic_flow", Run: foundation.WithTrafficFlow},
				{Name: "speed_kmh", Run: foundation.WithSpeedKmh},
				{Name: "roughness", Run: foundation.WithRoughness},
				{Name: "danger_zone", Run: foundation.WithDangerZone},
			}
			nonNegativeSpeed := func(r models.PointRecord) bool {
				v, ok := r.Reading(models.MetricSpeed)
				return ok && v >= 0
			}
			// the mean and the histogram of overtaking distances see the same records
			overtaking := analysis.AllOf(foundation.IsOvertaking, analysis.InRange(models.MetricOvertakingDistance, edges))
			return stages, []analysis.MetricPolicy{
				analysis.MeanWhere(models.MetricSpeedKmh, nonNegativeSpeed),
				analysis.MeanWhere(models.MetricOvertakingDistance, overtaking),
				analysis.Mean(models.MetricTrafficFlow),
				analysis.Mean(models.MetricRoughness),
				analysis.Mean(models.MetricDangerZoneTraffic),
				analysis.Histogram(models.MetricOvertakingDistance, edges, overtaking),
			}, nil
		},
	},
}

func requireStage(names ...string) analysis.Stage {
	return analysis.Stage{
		Name: "require_readings",
		Run: func(r []models.PointRecord) []models.PointRecord {
			return foundation.RequireReadings(r, names...)
		},
	}
}

func minDevicePointsStage(min int) analysis.Stage {
	return analysis.Stage{
		Name: "min_device_points",
		Run: func(r []models.PointRecord) []models.PointRecord {
			return foundation.MinDevicePoints(r, min)
		},
	}
}

// RoadQualityAnalyzer matches a campaign's records onto the road network
// and stores one aggregate row per segment
type RoadQualityAnalyzer struct {
	*analysis.BaseAnalyzer
	Profile Profile
}

// NewRoadQualityAnalyzer creates the analyzer for profile
func NewRoadQualityAnalyzer(deps analysis.Deps, profile Profile) *RoadQualityAnalyzer {
	return &RoadQualityAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer(deps, profile.Name),
		Profile:      profile,
	}
}

// Analyze runs the profile for one campaign or box selection
func (a *RoadQualityAnalyzer) Analyze(ctx context.Context, taskID int64, req analysis.Request) (*analysis.Result, error) {
	started := time.Now()
	key := req.OutputKey()
	a.Logger.Info("starting analysis", zap.Int64("task_id", taskID), zap.String("key", key))

	stages, metrics, err := a.Profile.Build(a.Policy)
	if err != nil {
		return nil, err
	}

	points, err := a.LoadPoints(ctx, req)
	if err != nil {
		return nil, err
	}
	loaded := len(points)

	stages = append([]analysis.Stage{{Name: "drop_invalid", Run: foundation.DropInvalid}}, stages...)
	records, err := a.RunStages(ctx, taskID, points, stages...)
	if err != nil {
		return nil, err
	}

	roads, err := a.Roads.ListRoads(ctx, req.Filter.Campaign)
	if err != nil {
		return nil, fmt.Errorf("failed to load roads: %w", err)
	}
	if a.Profile.DedupeRoads {
		roads = DedupeUndirected(roads)
	}
	a.Logger.Info("loaded input",
		zap.Int("points", loaded),
		zap.Int("prepared", len(records)),
		zap.Int("roads", len(roads)),
	)

	matches, err := NewMatcher(a.Policy.MaxMatchDistance).Match(records, roads, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to match points: %w", err)
	}

	rows, err := Aggregate(matches, roads, "", metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate segments: %w", err)
	}
	for i := range rows {
		rows[i].Campaign = key
		rows[i].Analyzer = a.Name
	}

	if err := a.Aggregates.ReplaceAggregates(ctx, key, a.Name, rows); err != nil {
		return nil, fmt.Errorf("failed to store aggregates: %w", err)
	}
	if len(rows) > 0 {
		if err := a.RegisterCollection(ctx, req, Extent(rows), analysis.Schema(metrics)); err != nil {
			return nil, err
		}
	}

	a.Logger.Info("analysis completed",
		zap.Int("matched", len(matches)),
		zap.Int("segments", len(rows)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &analysis.Result{
		Rows: len(rows),
		Summary: map[string]any{
			"points_loaded":    loaded,
			"points_prepared":  len(records),
			"points_matched":   len(matches),
			"road_segments":    len(roads),
			"segments_written": len(rows),
			"policy_version":   a.Policy.Version,
			"title":            a.Profile.Title,
		},
	}, nil
}

func init() {
	for _, p := range Profiles {
		p := p
		analysis.RegisterAnalyzer(p.Name, func(deps analysis.Deps) analysis.Analyzer {
			return NewRoadQualityAnalyzer(deps, p)
		})
	}
}
