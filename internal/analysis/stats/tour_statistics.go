package stats

import (
	"sort"
	"time"

	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/models"
)

// Kcal estimates the energy spent riding for durationS seconds at the given
// MET value and body mass, using MET × mass × 3.5 / 200 per minute.
func Kcal(durationS, met, massKg float64) float64 {
	return met * massKg * 3.5 / 200 * durationS / 60
}

// SpeedKmh returns distance over duration in km/h, nil for zero duration.
func SpeedKmh(distanceM, durationS float64) *float64 {
	if durationS <= 0 {
		return nil
	}
	v := distanceM / durationS * 3.6
	return &v
}

// Annotate returns copies of tours with average speed and energy filled in.
func Annotate(tours []models.Tour, policy config.Policy) []models.Tour {
	out := make([]models.Tour, len(tours))
	for i, t := range tours {
		t.AverageSpeedKmh = SpeedKmh(t.DistanceMeters, t.DurationSeconds)
		t.Kcal = Kcal(t.DurationSeconds, policy.MET, policy.BodyMassKg)
		out[i] = t
	}
	return out
}

// Summarize computes the statistics of a batch of tours: overall figures
// plus one bucket per week when the tours span at least two ISO weeks,
// otherwise one bucket per day. Buckets are ordered by period start.
func Summarize(tours []models.Tour) models.TourStatistics {
	singles := make([]models.PeriodicStatBucket, len(tours))
	for i, t := range tours {
		singles[i] = tourBucket(t)
	}

	total := merge(singles)
	latest := models.LatestStats{TripAggregate: total}
	if total.TripCount > 0 {
		latest.AverageDistancePerTripM = total.TotalDistanceM / float64(total.TripCount)
	}

	granularity := Granularity(singles)
	buckets := rebucket(singles, granularity)
	weekly := make([]models.PeriodicStatBucket, len(buckets))
	copy(weekly, buckets)
	return models.TourStatistics{
		LatestStats:   latest,
		Granularity:   granularity,
		PeriodicStats: buckets,
		WeeklyStats:   weekly,
	}
}

// Granularity picks weekly buckets when the periods span two or more ISO
// weeks, daily ones otherwise.
func Granularity(buckets []models.PeriodicStatBucket) string {
	weeks := make(map[[2]int]struct{})
	for _, b := range buckets {
		y, w := b.PeriodStart.UTC().ISOWeek()
		weeks[[2]int{y, w}] = struct{}{}
		if len(weeks) >= 2 {
			return models.GranularityWeek
		}
	}
	return models.GranularityDay
}

// Rebucket regroups buckets by the same granularity rule Summarize uses.
// Rebucketing its own output returns equal buckets.
func Rebucket(buckets []models.PeriodicStatBucket) []models.PeriodicStatBucket {
	return rebucket(buckets, Granularity(buckets))
}

// PeriodStart truncates t to 00:00 UTC of its day, or of the Monday of its
// ISO week.
func PeriodStart(t time.Time, granularity string) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if granularity != models.GranularityWeek {
		return day
	}
	offset := (int(day.Weekday()) + 6) % 7 // days since Monday
	return day.AddDate(0, 0, -offset)
}

func rebucket(buckets []models.PeriodicStatBucket, granularity string) []models.PeriodicStatBucket {
	groups := make(map[time.Time][]models.PeriodicStatBucket)
	for _, b := range buckets {
		start := PeriodStart(b.PeriodStart, granularity)
		groups[start] = append(groups[start], b)
	}

	out := make([]models.PeriodicStatBucket, 0, len(groups))
	for start, group := range groups {
		out = append(out, models.PeriodicStatBucket{PeriodStart: start, TripAggregate: merge(group)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}

func tourBucket(t models.Tour) models.PeriodicStatBucket {
	return models.PeriodicStatBucket{
		PeriodStart: t.StartTime,
		TripAggregate: models.TripAggregate{
			TripCount:      1,
			TotalDurationS: t.DurationSeconds,
			MaxDurationS:   t.DurationSeconds,
			MinDurationS:   t.DurationSeconds,
			TotalDistanceM: t.DistanceMeters,
			MaxDistanceM:   t.DistanceMeters,
			MinDistanceM:   t.DistanceMeters,
			TotalKcal:      t.Kcal,
		},
	}
}

// merge combines bucket aggregates; averages and speed are recomputed from
// the merged totals.
func merge(buckets []models.PeriodicStatBucket) models.TripAggregate {
	var agg models.TripAggregate
	for i, b := range buckets {
		a := b.TripAggregate
		if i == 0 {
			agg = a
			continue
		}
		agg.TripCount += a.TripCount
		agg.TotalDurationS += a.TotalDurationS
		agg.TotalDistanceM += a.TotalDistanceM
		agg.TotalKcal += a.TotalKcal
		agg.MaxDurationS = max(agg.MaxDurationS, a.MaxDurationS)
		agg.MinDurationS = min(agg.MinDurationS, a.MinDurationS)
		agg.MaxDistanceM = max(agg.MaxDistanceM, a.MaxDistanceM)
		agg.MinDistanceM = min(agg.MinDistanceM, a.MinDistanceM)
	}

	if agg.TripCount > 0 {
		agg.AverageDurationS = agg.TotalDurationS / float64(agg.TripCount)
		agg.AverageDistanceM = agg.TotalDistanceM / float64(agg.TripCount)
	}
	agg.AverageSpeedKmh = SpeedKmh(agg.TotalDistanceM, agg.TotalDurationS)
	return agg
}
