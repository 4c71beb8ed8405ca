package stats

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Scheme names a versioned set of histogram bin edges.
type Scheme string

const (
	// AbsoluteCentimeters bins overtaking distances recorded in centimeters.
	AbsoluteCentimeters Scheme = "absolute-cm"
	// FractionalMeters bins the same distances expressed in meters.
	FractionalMeters Scheme = "fractional-m"
)

var schemeEdges = map[Scheme][]float64{
	AbsoluteCentimeters: {0, 50, 100, 150, 200, math.Inf(1)},
	FractionalMeters:    {0, 0.5, 1, 1.5, 2, math.Inf(1)},
}

// Edges returns a copy of the bin edges of s.
func Edges(s Scheme) ([]float64, error) {
	edges, ok := schemeEdges[s]
	if !ok {
		return nil, fmt.Errorf("unknown histogram scheme %q", s)
	}
	return append([]float64(nil), edges...), nil
}

// Schemes lists the known scheme names in sorted order.
func Schemes() []string {
	names := make([]string, 0, len(schemeEdges))
	for s := range schemeEdges {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Histogram counts values into fixed bins. Bin i covers [edges[i], edges[i+1])
// except the last bin, which also includes its upper edge. Values outside
// the edges and NaN are not counted.
type Histogram struct {
	Edges  []float64
	Counts []int
}

// NewHistogram creates an empty histogram over edges, which must be
// ascending and hold at least two values.
func NewHistogram(edges []float64) *Histogram {
	bins := 0
	if len(edges) > 1 {
		bins = len(edges) - 1
	}
	return &Histogram{Edges: edges, Counts: make([]int, bins)}
}

// Add counts v and reports whether it fell into a bin.
func (h *Histogram) Add(v float64) bool {
	i := binIndex(h.Edges, v)
	if i < 0 {
		return false
	}
	h.Counts[i]++
	return true
}

// Total returns the number of counted values.
func (h *Histogram) Total() int {
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// String joins the bin counts with ", ".
func (h *Histogram) String() string {
	parts := make([]string, len(h.Counts))
	for i, c := range h.Counts {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ", ")
}

func binIndex(edges []float64, v float64) int {
	n := len(edges)
	if n < 2 || math.IsNaN(v) || v < edges[0] || v > edges[n-1] {
		return -1
	}
	if v == edges[n-1] {
		return n - 2
	}
	// first edge strictly greater than v closes the bin
	return sort.SearchFloat64s(edges, math.Nextafter(v, math.Inf(1))) - 1
}
