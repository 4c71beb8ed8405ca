package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// BoundingBox calculates the bounding box of a set of points.
// ok is false when points is empty.
func BoundingBox(points []orb.Point) (orb.Bound, bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	return orb.MultiPoint(points).Bound(), true
}

// LineLengthMeters returns the planar length of a lon/lat line converted to
// meters with MetersPerDegree.
func LineLengthMeters(ls orb.LineString) float64 {
	return DegreesToMeters(planar.Length(ls))
}

// ClipLine clips ls to b and returns the surviving pieces.
// Pieces with fewer than two points are dropped.
func ClipLine(b orb.Bound, ls orb.LineString) []orb.LineString {
	clipped := clip.LineString(b, ls)
	pieces := make([]orb.LineString, 0, len(clipped))
	for _, piece := range clipped {
		if len(piece) < 2 {
			continue
		}
		pieces = append(pieces, piece)
	}
	return pieces
}

// boundDistance is the euclidean distance from p to the closest point of b
// (0 when p is inside).
func boundDistance(b orb.Bound, p orb.Point) float64 {
	dx := math.Max(math.Max(b.Min[0]-p[0], 0), p[0]-b.Max[0])
	dy := math.Max(math.Max(b.Min[1]-p[1], 0), p[1]-b.Max[1])
	return math.Hypot(dx, dy)
}

// ReverseLine returns a reversed copy of ls.
func ReverseLine(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}
