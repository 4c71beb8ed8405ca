package behavior

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/analysis/foundation"
	"github.com/atrai/atrai-backend-go/internal/models"
)

// DangerAnalyzerName is the process scoring dangerous places.
const DangerAnalyzerName = "dangerous_places"

// Layers written by the dangerous places process.
const (
	LayerDangerZones   = "danger_zones"
	LayerDangerZonesPM = "danger_zones_PM"
)

// Output columns of the danger layers.
const (
	ColumnRiskIndexOvertaking = "Risk Index Overtaking"
	ColumnRiskIndex           = "Risk Index"
)

const (
	// any detected manoeuvre counts, not only confident overtakes
	riskManoeuvreMin = 0.05
	pmHumidityMax    = 75
)

// pmRiskWeights weigh each normalized particulate size in the PM risk index.
var pmRiskWeights = map[string]float64{
	models.MetricPM1:  0.2,
	models.MetricPM25: 0.15,
	models.MetricPM4:  0.1,
	models.MetricPM10: 0.05,
}

func normalizedPM(metric string) string {
	return "Normalized " + metric
}

// DangerZones scores overtaking records:
// 0.3 * manoeuvre + 0.7 * clip(1 - distance/400, 0, 1).
// Records with a manoeuvre of 0.05 or less or without a distance yield no
// feature.
func DangerZones(records []models.PointRecord) []models.PointFeature {
	features := make([]models.PointFeature, 0)
	for _, r := range records {
		m, ok := r.Reading(models.MetricOvertakingManoeuvre)
		if !ok || m <= riskManoeuvreMin {
			continue
		}
		d, ok := r.Reading(models.MetricOvertakingDistance)
		if !ok {
			continue
		}
		risk := 0.3*m + 0.7*foundation.OvertakingCloseness(d)
		features = append(features, riskFeature(r, ColumnRiskIndexOvertaking, risk))
	}
	return features
}

// PMDangerZones adds fine dust to the overtaking risk. Records above 75 %
// humidity are dropped, per box outliers of each PM size are nulled, and
// every size is scaled by its maximum over the remaining records. Records
// missing any input yield no feature.
func PMDangerZones(records []models.PointRecord) []models.PointFeature {
	records = foundation.ReadingAtMost(records, models.MetricHumidity, pmHumidityMax)
	for _, pm := range models.PMMetrics {
		records = foundation.NullOutliersByDevice(records, pm)
		records = foundation.WithMaxNormalized(records, pm, normalizedPM(pm))
	}

	features := make([]models.PointFeature, 0)
	for _, r := range records {
		m, ok := r.Reading(models.MetricOvertakingManoeuvre)
		if !ok {
			continue
		}
		d, ok := r.Reading(models.MetricOvertakingDistance)
		if !ok {
			continue
		}
		risk := 0.15*m + 0.35*foundation.OvertakingCloseness(d)
		complete := true
		for _, pm := range models.PMMetrics {
			v, ok := r.Reading(normalizedPM(pm))
			if !ok {
				complete = false
				break
			}
			risk += pmRiskWeights[pm] * v
		}
		if complete {
			features = append(features, riskFeature(r, ColumnRiskIndex, risk))
		}
	}
	return features
}

func riskFeature(r models.PointRecord, column string, risk float64) models.PointFeature {
	p := *r.Position
	return models.PointFeature{
		Campaign: r.Campaign,
		BoxID:    r.BoxID,
		Position: p,
		Properties: map[string]any{
			"lng":  p.Lon(),
			"lat":  p.Lat(),
			column: risk,
		},
	}
}

// FeatureBound returns the bounding box of the feature positions.
func FeatureBound(features []models.PointFeature) orb.Bound {
	mp := make(orb.MultiPoint, len(features))
	for i, f := range features {
		mp[i] = f.Position
	}
	return mp.Bound()
}

func riskSchema(column string) map[string]string {
	return map[string]string{
		"id":     "integer",
		"box_id": "string",
		"lng":    "number",
		"lat":    "number",
		column:   "number",
	}
}

// DangerousPlacesAnalyzer writes the danger_zones and danger_zones_PM layers
type DangerousPlacesAnalyzer struct {
	*analysis.BaseAnalyzer
}

// NewDangerousPlacesAnalyzer creates a new dangerous places analyzer
func NewDangerousPlacesAnalyzer(deps analysis.Deps) analysis.Analyzer {
	return &DangerousPlacesAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer(deps, DangerAnalyzerName),
	}
}

// Analyze scores the selected records and replaces both layers
func (a *DangerousPlacesAnalyzer) Analyze(ctx context.Context, taskID int64, req analysis.Request) (*analysis.Result, error) {
	started := time.Now()
	key := req.OutputKey()
	a.Logger.Info("starting analysis", zap.Int64("task_id", taskID), zap.String("key", key))

	points, err := a.LoadPoints(ctx, req)
	if err != nil {
		return nil, err
	}
	records, err := a.RunStages(ctx, taskID, points,
		analysis.Stage{Name: "drop_invalid", Run: foundation.DropInvalid},
		analysis.Stage{Name: "min_device_points", Run: func(r []models.PointRecord) []models.PointRecord {
			return foundation.MinDevicePoints(r, a.Policy.MinDevicePoints)
		}},
	)
	if err != nil {
		return nil, err
	}

	layers := []struct {
		name     string
		column   string
		features []models.PointFeature
	}{
		{LayerDangerZones, ColumnRiskIndexOvertaking, DangerZones(records)},
		{LayerDangerZonesPM, ColumnRiskIndex, PMDangerZones(records)},
	}

	summary := map[string]any{
		"points_loaded":   len(points),
		"points_prepared": len(records),
		"policy_version":  a.Policy.Version,
	}
	rows := 0
	for _, l := range layers {
		if err := a.Features.ReplaceFeatures(ctx, key, l.name, l.features); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", l.name, err)
		}
		if len(l.features) > 0 {
			if err := a.RegisterLayerCollection(ctx, req, l.name, FeatureBound(l.features), riskSchema(l.column)); err != nil {
				return nil, err
			}
		}
		summary[l.name] = len(l.features)
		rows += len(l.features)
	}

	a.Logger.Info("analysis completed",
		zap.Int(LayerDangerZones, len(layers[0].features)),
		zap.Int(LayerDangerZonesPM, len(layers[1].features)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return &analysis.Result{Rows: rows, Summary: summary}, nil
}

func init() {
	analysis.RegisterAnalyzer(DangerAnalyzerName, NewDangerousPlacesAnalyzer)
	analysis.RegisterLayer(analysis.Layer{Name: LayerDangerZones, Analyzer: DangerAnalyzerName, Title: "Overtaking danger zones"})
	analysis.RegisterLayer(analysis.Layer{Name: LayerDangerZonesPM, Analyzer: DangerAnalyzerName, Title: "Overtaking and fine dust danger zones"})
}
