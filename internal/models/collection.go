package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Collection describes a published result set, e.g. "bumpy_roads_muenster"
type Collection struct {
	Name        string            `json:"name" db:"name"`
	Title       string            `json:"title" db:"title"`
	Description string            `json:"description,omitempty" db:"description"`
	Analyzer    string            `json:"analyzer" db:"analyzer"`
	Campaign    string            `json:"campaign" db:"campaign"`
	BBox        orb.Bound         `json:"-" db:"-"`
	Schema      map[string]string `json:"schema" db:"schema"` // column -> type
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// Extent returns the bbox as [minLon, minLat, maxLon, maxLat].
func (c Collection) Extent() [4]float64 {
	return [4]float64{c.BBox.Min[0], c.BBox.Min[1], c.BBox.Max[0], c.BBox.Max[1]}
}
