package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bruteNearest(lines []IndexedLine, p orb.Point) (int, float64) {
	best := math.Inf(1)
	bestKey := -1
	for _, l := range lines {
		d := planar.DistanceFrom(l.Line, p)
		if d < best || (d == best && l.Key < bestKey) {
			best, bestKey = d, l.Key
		}
	}
	return bestKey, best
}

func TestRTreeEmpty(t *testing.T) {
	tree := NewRTree(nil)
	_, _, ok := tree.Nearest(orb.Point{0, 0})
	assert.False(t, ok)
}

func TestRTreeNearestSimple(t *testing.T) {
	lines := []IndexedLine{
		{Key: 0, Line: orb.LineString{{0, 0}, {10, 0}}},
		{Key: 1, Line: orb.LineString{{0, 10}, {10, 10}}},
		{Key: 2, Line: orb.LineString{{20, 0}, {20, 10}}},
	}
	tree := NewRTree(lines)

	key, dist, ok := tree.Nearest(orb.Point{5, 2})
	require.True(t, ok)
	assert.Equal(t, 0, key)
	assert.InDelta(t, 2.0, dist, 1e-9)

	key, dist, ok = tree.Nearest(orb.Point{19, 5})
	require.True(t, ok)
	assert.Equal(t, 2, key)
	assert.InDelta(t, 1.0, dist, 1e-9)
}

func TestRTreeTieBreaksOnSmallestKey(t *testing.T) {
	lines := []IndexedLine{
		{Key: 7, Line: orb.LineString{{0, 10}, {10, 10}}},
		{Key: 3, Line: orb.LineString{{0, 0}, {10, 0}}},
	}
	tree := NewRTree(lines)

	key, dist, ok := tree.Nearest(orb.Point{5, 5})
	require.True(t, ok)
	assert.Equal(t, 3, key)
	assert.InDelta(t, 5.0, dist, 1e-9)
}

func TestRTreeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var lines []IndexedLine
	for i := 0; i < 500; i++ {
		x, y := rng.Float64()*1000, rng.Float64()*1000
		ls := orb.LineString{{x, y}}
		for j := 0; j < 1+rng.Intn(4); j++ {
			x += rng.Float64()*40 - 20
			y += rng.Float64()*40 - 20
			ls = append(ls, orb.Point{x, y})
		}
		lines = append(lines, IndexedLine{Key: i, Line: ls})
	}
	tree := NewRTree(lines)

	for i := 0; i < 300; i++ {
		p := orb.Point{rng.Float64() * 1000, rng.Float64() * 1000}
		wantKey, wantDist := bruteNearest(lines, p)
		key, dist, ok := tree.Nearest(p)
		require.True(t, ok)
		assert.InDelta(t, wantDist, dist, 1e-9)
		assert.Equal(t, wantKey, key)
	}
}

func TestRTreeSinglePointLine(t *testing.T) {
	tree := NewRTree([]IndexedLine{{Key: 4, Line: orb.LineString{{3, 4}}}})
	key, dist, ok := tree.Nearest(orb.Point{0, 0})
	require.True(t, ok)
	assert.Equal(t, 4, key)
	assert.InDelta(t, 5.0, dist, 1e-9)
}
