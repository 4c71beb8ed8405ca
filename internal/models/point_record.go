package models

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// PointRecord is one timestamped observation of a bike box
type PointRecord struct {
	ID        int64     `json:"id" db:"id"`
	Campaign  string    `json:"campaign" db:"campaign"` // grouptag of the box
	BoxID     string    `json:"box_id" db:"box_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Position is nil when the box had no GPS fix
	Position *orb.Point `json:"position,omitempty" db:"-"`

	// Readings holds the named sensor values. A missing key or NaN is null.
	Readings map[string]float64 `json:"readings,omitempty" db:"readings"`
}

// Reading returns the named value and whether it is non-null.
func (p PointRecord) Reading(name string) (float64, bool) {
	v, ok := p.Readings[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// HasReadings reports whether every named value is non-null.
func (p PointRecord) HasReadings(names ...string) bool {
	for _, n := range names {
		if _, ok := p.Reading(n); !ok {
			return false
		}
	}
	return true
}

// With returns a copy of p carrying an extra reading. p is left unchanged.
func (p PointRecord) With(name string, v float64) PointRecord {
	readings := make(map[string]float64, len(p.Readings)+1)
	for k, val := range p.Readings {
		readings[k] = val
	}
	readings[name] = v
	p.Readings = readings
	return p
}

// Without returns a copy of p with the named reading nulled.
func (p PointRecord) Without(name string) PointRecord {
	return p.With(name, math.NaN())
}

// PointFilter selects the records an analysis run works on
type PointFilter struct {
	Campaign string     `json:"campaign,omitempty" form:"campaign"`
	BoxIDs   []string   `json:"box_ids,omitempty" form:"box_id"` // wins over Campaign
	Start    *time.Time `json:"t_start,omitempty" form:"t_start"`
	End      *time.Time `json:"t_end,omitempty" form:"t_end"`
}
