package foundation

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrai/atrai-backend-go/internal/spatial"
)

func offset(p orb.Point, meters float64) orb.Point {
	return orb.Point{p[0] + spatial.MetersToDegrees(meters), p[1]}
}

func TestDeclutterMergesClosePoints(t *testing.T) {
	a := orb.Point{7.62, 51.96}
	b := offset(a, 3)

	out := Declutter([]orb.Point{a, b}, 10)
	require.Len(t, out, 1)
	assert.InDelta(t, (a[0]+b[0])/2, out[0][0], 1e-12)
	assert.InDelta(t, a[1], out[0][1], 1e-12)
}

func TestDeclutterKeepsDistantPoints(t *testing.T) {
	a := orb.Point{7.62, 51.96}
	b := offset(a, 50)

	out := Declutter([]orb.Point{a, b}, 10)
	require.Len(t, out, 2)
	assert.Equal(t, a, out[0])
	assert.Equal(t, b, out[1])
}

func TestDeclutterSingleLinkChains(t *testing.T) {
	// each hop is 8m, end to end 16m: one cluster under single link
	a := orb.Point{0, 0}
	pts := []orb.Point{a, offset(a, 8), offset(a, 16)}

	labels, n := ClusterLabels(pts, spatial.MetersToDegrees(10))
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{0, 0, 0}, labels)
}

func TestDeclutterOrdersByFirstMember(t *testing.T) {
	stop := orb.Point{1, 1}
	other := offset(stop, 500)
	pts := []orb.Point{stop, other, offset(stop, 2), offset(other, 1)}

	labels, n := ClusterLabels(pts, spatial.MetersToDegrees(10))
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 1, 0, 1}, labels)

	out := Declutter(pts, 10)
	require.Len(t, out, 2)
	assert.Less(t, out[0][0], out[1][0])
}

func TestDeclutterZeroRadiusMergesDuplicatesOnly(t *testing.T) {
	a := orb.Point{1, 2}
	out := Declutter([]orb.Point{a, a, offset(a, 0.5)}, 0)
	assert.Len(t, out, 2)
}

func TestDeclutterEmpty(t *testing.T) {
	assert.Nil(t, Declutter(nil, 10))
}
