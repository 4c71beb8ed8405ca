package models

import "github.com/paulmach/orb"

// RoadSegment is one edge of the bike road network
type RoadSegment struct {
	ID       int64          `json:"id" db:"id"`
	Region   string         `json:"region,omitempty" db:"region"`
	WayID    string         `json:"way_id,omitempty" db:"way_id"`
	Name     string         `json:"name,omitempty" db:"name"`
	Surface  string         `json:"surface,omitempty" db:"surface"`
	Highway  string         `json:"highway,omitempty" db:"highway"`
	Geometry orb.LineString `json:"-" db:"geometry"` // lon/lat
}

// Attributes returns the descriptive columns copied onto aggregate rows.
func (r RoadSegment) Attributes() map[string]any {
	attrs := make(map[string]any, 4)
	if r.WayID != "" {
		attrs["way_id"] = r.WayID
	}
	if r.Name != "" {
		attrs["name"] = r.Name
	}
	if r.Surface != "" {
		attrs["surface"] = r.Surface
	}
	if r.Highway != "" {
		attrs["highway"] = r.Highway
	}
	return attrs
}
