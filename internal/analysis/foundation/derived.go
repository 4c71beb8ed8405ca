package foundation

import (
	"math"

	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/stats"
)

// Roughness weights per surface class, smooth to rough.
var roughnessWeights = map[string]float64{
	models.MetricSurfaceAsphalt:   1,
	models.MetricSurfacePaving:    2,
	models.MetricSurfaceCompacted: 3,
	models.MetricSurfaceSett:      4,
}

const (
	speedQuantile         = 0.999
	dangerManoeuvreMin    = 0.5
	dangerMaxDistanceCm   = 400
	overtakingNormalizeCm = 200
)

func mapRecords(records []models.PointRecord, fn func(models.PointRecord) models.PointRecord) []models.PointRecord {
	out := make([]models.PointRecord, len(records))
	for i, r := range records {
		out[i] = fn(r)
	}
	return out
}

// WithRoughness adds Roughness, the surface weighted sum, to records that
// carry all four surface fractions.
func WithRoughness(records []models.PointRecord) []models.PointRecord {
	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		if !r.HasReadings(models.SurfaceMetrics...) {
			return r
		}
		var score float64
		for _, m := range models.SurfaceMetrics {
			v, _ := r.Reading(m)
			score += roughnessWeights[m] * v
		}
		return r.With(models.MetricRoughness, score)
	})
}

// WithRoughnessNormalized scales Roughness to percent of the batch maximum.
func WithRoughnessNormalized(records []models.PointRecord) []models.PointRecord {
	max := math.Inf(-1)
	for _, r := range records {
		if v, ok := r.Reading(models.MetricRoughness); ok && v > max {
			max = v
		}
	}
	if max <= 0 || math.IsInf(max, -1) {
		return records
	}
	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		v, ok := r.Reading(models.MetricRoughness)
		if !ok {
			return r
		}
		return r.With(models.MetricRoughnessNormalized, v/max*100)
	})
}

// WithSpeedKmh converts Speed from m/s.
func WithSpeedKmh(records []models.PointRecord) []models.PointRecord {
	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		v, ok := r.Reading(models.MetricSpeed)
		if !ok {
			return r
		}
		return r.With(models.MetricSpeedKmh, v*3.6)
	})
}

// WithNormalizedSpeed adds Speed divided by the batch's 99.9th speed
// percentile, capped at 1. Only records with Speed >= 0 take part.
func WithNormalizedSpeed(records []models.PointRecord) []models.PointRecord {
	var speeds []float64
	for _, r := range records {
		if v, ok := r.Reading(models.MetricSpeed); ok && v >= 0 {
			speeds = append(speeds, v)
		}
	}
	if len(speeds) == 0 {
		return records
	}
	limit := stats.Quantile(speeds, speedQuantile)
	if limit <= 0 {
		return records
	}

	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		v, ok := r.Reading(models.MetricSpeed)
		if !ok || v < 0 {
			return r
		}
		return r.With(models.MetricNormalizedSpeed, math.Min(v/limit, 1))
	})
}

// WithTrafficFlow adds Normalized_Speed * (1 - Standing^2). Run
// WithNormalizedSpeed first.
func WithTrafficFlow(records []models.PointRecord) []models.PointRecord {
	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		ns, ok := r.Reading(models.MetricNormalizedSpeed)
		if !ok {
			return r
		}
		standing, ok := r.Reading(models.MetricStanding)
		if !ok {
			return r
		}
		return r.With(models.MetricTrafficFlow, ns*(1-standing*standing))
	})
}

// IsOvertaking reports whether r recorded an overtaking manoeuvre with a
// confidence of at least 0.5.
func IsOvertaking(r models.PointRecord) bool {
	m, ok := r.Reading(models.MetricOvertakingManoeuvre)
	return ok && m >= dangerManoeuvreMin
}

// WithDangerZone scores overtaking records:
// 0.7 * clip(1 - distance/400, 0, 1) + 0.3 * manoeuvre.
func WithDangerZone(records []models.PointRecord) []models.PointRecord {
	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		if !IsOvertaking(r) {
			return r
		}
		d, ok := r.Reading(models.MetricOvertakingDistance)
		if !ok {
			return r
		}
		m, _ := r.Reading(models.MetricOvertakingManoeuvre)
		return r.With(models.MetricDangerZoneTraffic, 0.7*OvertakingCloseness(d)+0.3*m)
	})
}

// WithNormalizedOvertakingDistance adds min(distance/200, 1).
func WithNormalizedOvertakingDistance(records []models.PointRecord) []models.PointRecord {
	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		d, ok := r.Reading(models.MetricOvertakingDistance)
		if !ok {
			return r
		}
		return r.With(models.MetricNormalizedOvertakingDistance, math.Min(d/overtakingNormalizeCm, 1))
	})
}

// OvertakingCloseness maps a passing distance in cm to clip(1 - d/400, 0, 1):
// 1 for contact, 0 from 4 m on.
func OvertakingCloseness(distanceCm float64) float64 {
	return math.Max(0, math.Min(1, 1-distanceCm/dangerMaxDistanceCm))
}

// WithMaxNormalized adds target = metric / max(metric) over records. Nothing
// is added when no record carries a positive value.
func WithMaxNormalized(records []models.PointRecord, metric, target string) []models.PointRecord {
	peak := math.Inf(-1)
	for _, r := range records {
		if v, ok := r.Reading(metric); ok && v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return records
	}
	return mapRecords(records, func(r models.PointRecord) models.PointRecord {
		v, ok := r.Reading(metric)
		if !ok {
			return r
		}
		return r.With(target, v/peak)
	})
}
