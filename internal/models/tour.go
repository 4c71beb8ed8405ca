package models

import (
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Tour is one trip cut out of a box's point stream
type Tour struct {
	ID        int64  `json:"id" db:"id"`
	Campaign  string `json:"campaign" db:"campaign"`
	BoxID     string `json:"box_id" db:"box_id"`
	TourIndex int    `json:"tour_index" db:"tour_index"` // per box, from 0

	Geometry orb.LineString `json:"-" db:"geometry"` // decluttered lon/lat

	StartTime       time.Time `json:"start_time" db:"start_time"`
	EndTime         time.Time `json:"end_time" db:"end_time"`
	DurationSeconds float64   `json:"duration_s" db:"duration_s"`
	DistanceMeters  float64   `json:"distance_m" db:"distance_m"`
	AverageSpeedKmh *float64  `json:"average_speed_kmh" db:"average_speed_kmh"` // nil for zero duration
	Kcal            float64   `json:"kcal" db:"kcal"`
	PointCount      int       `json:"point_count" db:"point_count"`
}

// Name is the display label of the tour, e.g. "tour_3".
func (t Tour) Name() string {
	return "tour_" + strconv.Itoa(t.TourIndex)
}

// TourFilter represents filter parameters for querying tours
type TourFilter struct {
	Campaign string `form:"campaign"`
	BoxID    string `form:"box_id"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// ToursResponse represents a paginated response of tours
type ToursResponse struct {
	Data       []Tour `json:"data"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}
