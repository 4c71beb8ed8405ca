package models

import (
	"time"

	"github.com/paulmach/orb"
)

// PointFeature is one point output of a per-record process, e.g. a scored
// danger zone or a detected traffic stop. Layer names the collection the
// feature belongs to.
type PointFeature struct {
	ID       int64  `json:"id" db:"id"`
	Campaign string `json:"campaign" db:"campaign"`
	Layer    string `json:"layer" db:"layer"`
	BoxID    string `json:"box_id" db:"box_id"`

	Position   orb.Point      `json:"-" db:"geometry"` // lon/lat
	Properties map[string]any `json:"properties" db:"properties"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
