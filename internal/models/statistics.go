package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Bucket granularities of the periodic rollup
const (
	GranularityDay  = "day"
	GranularityWeek = "week"
)

// TripAggregate holds the counts, sums and extremes over a set of tours
type TripAggregate struct {
	TripCount int `json:"trip_count"`

	TotalDurationS   float64 `json:"total_duration_s"`
	AverageDurationS float64 `json:"average_duration_s"`
	MaxDurationS     float64 `json:"max_duration_s"`
	MinDurationS     float64 `json:"min_duration_s"`

	TotalDistanceM   float64 `json:"total_distance_m"`
	AverageDistanceM float64 `json:"average_distance_m"`
	MaxDistanceM     float64 `json:"max_distance_m"`
	MinDistanceM     float64 `json:"min_distance_m"`

	// AverageSpeedKmh is total distance over total duration; nil when the
	// bucket has no duration
	AverageSpeedKmh *float64 `json:"average_speed_kmh"`
	TotalKcal       float64  `json:"total_kcal"`
}

// PeriodicStatBucket aggregates the tours starting inside one day or week
type PeriodicStatBucket struct {
	PeriodStart time.Time `json:"period_start"`
	TripAggregate
}

// LatestStats are the same figures taken over every tour of the batch
type LatestStats struct {
	TripAggregate
	AverageDistancePerTripM float64 `json:"average_distance_per_trip_m"`
}

// TourStatistics is the statistics object stored per tag
type TourStatistics struct {
	LatestStats   LatestStats          `json:"latest_stats"`
	Granularity   string               `json:"granularity"`
	PeriodicStats []PeriodicStatBucket `json:"periodic_stats"`

	// Deprecated: WeeklyStats mirrors PeriodicStats for older consumers.
	WeeklyStats []PeriodicStatBucket `json:"weekly_stats"`
}

// StatisticsRecord is one row of the statistics table, keyed by tag
type StatisticsRecord struct {
	Tag        string         `json:"tag" db:"tag"`
	Statistics TourStatistics `json:"statistics" db:"statistics"`
	Geometry   orb.Polygon    `json:"-" db:"geometry"` // convex hull of the tag's points
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}
