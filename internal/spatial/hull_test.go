package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvexHullSquare(t *testing.T) {
	pts := []orb.Point{
		{7.60, 51.95}, {7.62, 51.95}, {7.62, 51.97}, {7.60, 51.97},
		{7.61, 51.96}, // interior
	}

	hull := ConvexHull(pts)
	require.Len(t, hull, 1)
	ring := hull[0]
	assert.True(t, ring.Closed())
	assert.Len(t, ring, 5, "four corners plus closing point")

	for _, p := range pts {
		assert.True(t, planar.PolygonContains(orb.Polygon{padRing(ring, 1e-6)}, p), "%v", p)
	}
}

func TestConvexHullDegenerate(t *testing.T) {
	assert.Nil(t, ConvexHull(nil))

	hull := ConvexHull([]orb.Point{{1, 1}, {2, 2}, {1, 1}})
	require.Len(t, hull, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}}, hull.Bound())
}

// padRing grows a ring around its bound center so boundary points test as inside.
func padRing(r orb.Ring, d float64) orb.Ring {
	c := r.Bound().Center()
	out := make(orb.Ring, len(r))
	for i, p := range r {
		dx, dy := p[0]-c[0], p[1]-c[1]
		out[i] = orb.Point{p[0] + sign(dx)*d, p[1] + sign(dy)*d}
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
