package spatial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// CRS identifies a coordinate reference system by its EPSG code.
type CRS string

const (
	// WGS84 is the geographic lon/lat reference every input defaults to.
	WGS84 CRS = "EPSG:4326"
	// WebMercator is the projected reference distances are measured in.
	WebMercator CRS = "EPSG:3857"
)

// ErrUnknownCRS is returned for references the normalizer cannot convert.
var ErrUnknownCRS = errors.New("unknown coordinate reference system")

// ParseCRS resolves a user supplied reference. An empty string means WGS84.
func ParseCRS(s string) (CRS, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "EPSG:4326", "4326", "WGS84", "CRS84", "OGC:CRS84":
		return WGS84, nil
	case "EPSG:3857", "3857", "WEB_MERCATOR", "EPSG:900913":
		return WebMercator, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCRS, s)
}

// Transformation returns the projection converting from one CRS to another.
func Transformation(from, to CRS) (orb.Projection, error) {
	switch {
	case from == to:
		return func(p orb.Point) orb.Point { return p }, nil
	case from == WGS84 && to == WebMercator:
		return project.WGS84.ToMercator, nil
	case from == WebMercator && to == WGS84:
		return project.Mercator.ToWGS84, nil
	}
	return nil, fmt.Errorf("%w: no transformation %s -> %s", ErrUnknownCRS, from, to)
}

// Normalizer reprojects point and line sets into one shared projected
// reference before distance work, and back to geographic at the end.
// Inputs are never modified.
type Normalizer struct {
	Projected  CRS
	Geographic CRS
}

// DefaultNormalizer projects into Web Mercator and returns WGS84.
func DefaultNormalizer() Normalizer {
	return Normalizer{Projected: WebMercator, Geographic: WGS84}
}

// ProjectPoints copies points tagged with crs into the projected reference.
func (n Normalizer) ProjectPoints(points []orb.Point, crs string) ([]orb.Point, error) {
	proj, err := n.transform(crs, n.Projected)
	if err != nil {
		return nil, err
	}

	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = proj(p)
	}
	return out, nil
}

// ProjectLines copies lines tagged with crs into the projected reference.
func (n Normalizer) ProjectLines(lines []orb.LineString, crs string) ([]orb.LineString, error) {
	proj, err := n.transform(crs, n.Projected)
	if err != nil {
		return nil, err
	}

	out := make([]orb.LineString, len(lines))
	for i, ls := range lines {
		out[i] = project.LineString(ls.Clone(), proj)
	}
	return out, nil
}

// GeographicLine copies a line tagged with crs into the geographic reference.
func (n Normalizer) GeographicLine(ls orb.LineString, crs string) (orb.LineString, error) {
	proj, err := n.transform(crs, n.Geographic)
	if err != nil {
		return nil, err
	}
	return project.LineString(ls.Clone(), proj), nil
}

func (n Normalizer) transform(crs string, to CRS) (orb.Projection, error) {
	from, err := ParseCRS(crs)
	if err != nil {
		return nil, err
	}
	return Transformation(from, to)
}
