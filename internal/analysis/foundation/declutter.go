package foundation

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/atrai/atrai-backend-go/internal/spatial"
)

// Declutter collapses near-duplicate positions, e.g. fixes recorded while
// waiting at a traffic light. Positions are clustered single-link with a
// radius of radiusMeters (converted with spatial.MetersPerDegree) and every
// cluster, singletons included, is replaced by its centroid. Clusters come
// out in the order of their first member in points.
func Declutter(points []orb.Point, radiusMeters float64) []orb.Point {
	if len(points) == 0 {
		return nil
	}

	labels, n := ClusterLabels(points, spatial.MetersToDegrees(radiusMeters))

	sums := make([]orb.Point, n)
	counts := make([]int, n)
	for i, p := range points {
		l := labels[i]
		sums[l][0] += p[0]
		sums[l][1] += p[1]
		counts[l]++
	}

	out := make([]orb.Point, n)
	for l := range out {
		c := float64(counts[l])
		out[l] = orb.Point{sums[l][0] / c, sums[l][1] / c}
	}
	return out
}

// ClusterLabels is DBSCAN with minPts=1: two points are linked when their
// euclidean distance is at most eps and clusters are the connected
// components of that graph. Labels run from 0 in order of first appearance;
// the second return value is the number of clusters.
//
// Points are bucketed into a uniform grid of cell size eps so each point
// only compares against the 3x3 neighborhood of its cell, giving O(n) work
// for evenly spread input.
func ClusterLabels(points []orb.Point, eps float64) ([]int, int) {
	uf := newUnionFind(len(points))

	if eps <= 0 || math.IsNaN(eps) {
		// only identical positions link
		seen := make(map[orb.Point]int, len(points))
		for i, p := range points {
			if j, ok := seen[p]; ok {
				uf.union(i, j)
				continue
			}
			seen[p] = i
		}
	} else {
		grid := make(map[[2]int64][]int)
		cellOf := func(p orb.Point) [2]int64 {
			return [2]int64{int64(math.Floor(p[0] / eps)), int64(math.Floor(p[1] / eps))}
		}
		for i, p := range points {
			c := cellOf(p)
			for dx := int64(-1); dx <= 1; dx++ {
				for dy := int64(-1); dy <= 1; dy++ {
					for _, j := range grid[[2]int64{c[0] + dx, c[1] + dy}] {
						if math.Hypot(p[0]-points[j][0], p[1]-points[j][1]) <= eps {
							uf.union(i, j)
						}
					}
				}
			}
			grid[c] = append(grid[c], i)
		}
	}

	labels := make([]int, len(points))
	byRoot := make(map[int]int)
	for i := range points {
		r := uf.find(i)
		l, ok := byRoot[r]
		if !ok {
			l = len(byRoot)
			byRoot[r] = l
		}
		labels[i] = l
	}
	return labels, len(byRoot)
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
