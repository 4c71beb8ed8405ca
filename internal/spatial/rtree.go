package spatial

import (
	"container/heap"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const rtreeNodeCapacity = 16

// IndexedLine is a line stored in the RTree under a caller chosen key.
// Several lines may share a key (e.g. the clipped pieces of one segment).
type IndexedLine struct {
	Key  int
	Line orb.LineString
}

type rtreeEdge struct {
	a, b  orb.Point
	bound orb.Bound
	key   int
}

type rtreeNode struct {
	bound    orb.Bound
	children []*rtreeNode
	edges    []rtreeEdge
}

// RTree is a static Sort-Tile-Recursive R-tree over the edges of a set of
// lines, answering nearest-line queries in planar coordinates.
//
// Build is O(n log n) in the number of edges; a nearest query visits
// O(log n) nodes for well distributed data.
type RTree struct {
	root *rtreeNode
}

// NewRTree bulk loads the edges of lines. Lines with no points are skipped;
// single-point lines are indexed as a zero length edge.
func NewRTree(lines []IndexedLine) *RTree {
	var edges []rtreeEdge
	for _, l := range lines {
		switch len(l.Line) {
		case 0:
			continue
		case 1:
			p := l.Line[0]
			edges = append(edges, rtreeEdge{a: p, b: p, bound: orb.Bound{Min: p, Max: p}, key: l.Key})
			continue
		}
		for i := 1; i < len(l.Line); i++ {
			a, b := l.Line[i-1], l.Line[i]
			edges = append(edges, rtreeEdge{
				a:     a,
				b:     b,
				bound: orb.Bound{Min: a, Max: a}.Extend(b),
				key:   l.Key,
			})
		}
	}

	t := &RTree{}
	if len(edges) == 0 {
		return t
	}

	leaves := packSTR(edges, func(e rtreeEdge) orb.Bound { return e.bound })
	level := make([]*rtreeNode, len(leaves))
	for i, group := range leaves {
		n := &rtreeNode{edges: group, bound: group[0].bound}
		for _, e := range group[1:] {
			n.bound = n.bound.Union(e.bound)
		}
		level[i] = n
	}

	for len(level) > 1 {
		groups := packSTR(level, func(n *rtreeNode) orb.Bound { return n.bound })
		next := make([]*rtreeNode, len(groups))
		for i, group := range groups {
			n := &rtreeNode{children: group, bound: group[0].bound}
			for _, c := range group[1:] {
				n.bound = n.bound.Union(c.bound)
			}
			next[i] = n
		}
		level = next
	}

	t.root = level[0]
	return t
}

// Nearest returns the key of the line closest to p and the distance to it.
// When several lines are equally close the smallest key wins, independent
// of tree shape. ok is false for an empty tree.
func (t *RTree) Nearest(p orb.Point) (key int, dist float64, ok bool) {
	if t.root == nil {
		return 0, 0, false
	}

	q := &rtreeQueue{}
	heap.Push(q, rtreeItem{dist: boundDistance(t.root.bound, p), node: t.root})

	best := math.Inf(1)
	bestKey := 0
	found := false

	for q.Len() > 0 {
		item := heap.Pop(q).(rtreeItem)
		if item.dist > best {
			break
		}

		if item.node == nil {
			if !found || item.dist < best || (item.dist == best && item.key < bestKey) {
				best, bestKey, found = item.dist, item.key, true
			}
			continue
		}

		for _, c := range item.node.children {
			if d := boundDistance(c.bound, p); d <= best {
				heap.Push(q, rtreeItem{dist: d, node: c})
			}
		}
		for _, e := range item.node.edges {
			if boundDistance(e.bound, p) > best {
				continue
			}
			d := planar.DistanceFromSegment(e.a, e.b, p)
			if d <= best {
				heap.Push(q, rtreeItem{dist: d, key: e.key})
			}
		}
	}

	return bestKey, best, found
}

// packSTR groups items into runs of at most rtreeNodeCapacity using
// Sort-Tile-Recursive ordering: vertical slices by center x, then y.
func packSTR[T any](items []T, bound func(T) orb.Bound) [][]T {
	sorted := make([]T, len(items))
	copy(sorted, items)

	center := func(it T) orb.Point { return bound(it).Center() }

	sort.SliceStable(sorted, func(i, j int) bool {
		return center(sorted[i])[0] < center(sorted[j])[0]
	})

	nodeCount := int(math.Ceil(float64(len(sorted)) / rtreeNodeCapacity))
	slices := int(math.Ceil(math.Sqrt(float64(nodeCount))))
	sliceSize := slices * rtreeNodeCapacity

	var groups [][]T
	for start := 0; start < len(sorted); start += sliceSize {
		end := min(start+sliceSize, len(sorted))
		slice := sorted[start:end]
		sort.SliceStable(slice, func(i, j int) bool {
			return center(slice[i])[1] < center(slice[j])[1]
		})
		for g := 0; g < len(slice); g += rtreeNodeCapacity {
			groups = append(groups, slice[g:min(g+rtreeNodeCapacity, len(slice))])
		}
	}
	return groups
}

type rtreeItem struct {
	dist float64
	node *rtreeNode // nil for an edge candidate
	key  int
}

type rtreeQueue []rtreeItem

func (q rtreeQueue) Len() int { return len(q) }
func (q rtreeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	// expand nodes before settling ties between edges
	if (q[i].node == nil) != (q[j].node == nil) {
		return q[i].node != nil
	}
	return q[i].key < q[j].key
}
func (q rtreeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *rtreeQueue) Push(x any)   { *q = append(*q, x.(rtreeItem)) }
func (q *rtreeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
