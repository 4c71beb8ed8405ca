package spatial

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/spatial"
)

// Match is one point record assigned to its nearest road segment.
type Match struct {
	Record   models.PointRecord
	Segment  int     // position of the segment in the roads slice
	Distance float64 // in projected units
}

// Matcher snaps point records onto the nearest road segment within
// MaxDistance. Both inputs are projected into the normalizer's projected
// reference first, so MaxDistance is in projected units.
type Matcher struct {
	Normalizer  spatial.Normalizer
	MaxDistance float64
}

// NewMatcher returns a Matcher projecting into Web Mercator.
func NewMatcher(maxDistance float64) *Matcher {
	return &Matcher{
		Normalizer:  spatial.DefaultNormalizer(),
		MaxDistance: maxDistance,
	}
}

// Match assigns every record to its nearest segment and drops assignments
// farther than MaxDistance. Records without a position are skipped.
//
// Roads are clipped to the extent of the points, padded by MaxDistance, and
// the surviving pieces are indexed once in an R-tree. Equally near segments
// resolve to the lowest position in roads. An empty network after clipping
// yields no matches, not an error. Only an unknown CRS fails.
func (m *Matcher) Match(records []models.PointRecord, roads []models.RoadSegment, pointsCRS, roadsCRS string) ([]Match, error) {
	located := make([]models.PointRecord, 0, len(records))
	positions := make([]orb.Point, 0, len(records))
	for _, r := range records {
		if r.Position == nil {
			continue
		}
		located = append(located, r)
		positions = append(positions, *r.Position)
	}

	projected, err := m.Normalizer.ProjectPoints(positions, pointsCRS)
	if err != nil {
		return nil, err
	}

	lines := make([]orb.LineString, len(roads))
	for i, r := range roads {
		lines[i] = r.Geometry
	}
	projectedRoads, err := m.Normalizer.ProjectLines(lines, roadsCRS)
	if err != nil {
		return nil, err
	}

	extent, ok := spatial.BoundingBox(projected)
	if !ok {
		return nil, nil
	}
	extent = extent.Pad(m.MaxDistance)

	var indexed []spatial.IndexedLine
	for i, ls := range projectedRoads {
		for _, piece := range spatial.ClipLine(extent, ls) {
			indexed = append(indexed, spatial.IndexedLine{Key: i, Line: piece})
		}
	}
	if len(indexed) == 0 {
		return nil, nil
	}
	tree := spatial.NewRTree(indexed)

	matches := make([]Match, 0, len(located))
	for i, p := range projected {
		seg, dist, ok := tree.Nearest(p)
		if !ok || dist > m.MaxDistance {
			continue
		}
		matches = append(matches, Match{Record: located[i], Segment: seg, Distance: dist})
	}
	return matches, nil
}

// DedupeUndirected drops segments whose geometry repeats an earlier
// segment's, in the same or reversed direction. The first one is kept.
func DedupeUndirected(roads []models.RoadSegment) []models.RoadSegment {
	seen := make(map[string]bool, len(roads))
	out := make([]models.RoadSegment, 0, len(roads))
	for _, r := range roads {
		key := undirectedKey(r.Geometry)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func undirectedKey(ls orb.LineString) string {
	fwd := lineKey(ls)
	rev := lineKey(spatial.ReverseLine(ls))
	if rev < fwd {
		return rev
	}
	return fwd
}

func lineKey(ls orb.LineString) string {
	var b strings.Builder
	for _, p := range ls {
		b.WriteString(strconv.FormatFloat(p[0], 'g', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p[1], 'g', -1, 64))
		b.WriteByte(',')
	}
	return b.String()
}
