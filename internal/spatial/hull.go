package spatial

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// ConvexHull returns the spherical convex hull of lon/lat points as a closed
// polygon. Fewer than three distinct points fall back to their bounding box.
func ConvexHull(points []orb.Point) orb.Polygon {
	b, ok := BoundingBox(points)
	if !ok {
		return nil
	}

	distinct := make(map[orb.Point]struct{}, 3)
	for _, p := range points {
		distinct[p] = struct{}{}
		if len(distinct) >= 3 {
			break
		}
	}
	if len(distinct) < 3 {
		return b.ToPolygon()
	}

	q := s2.NewConvexHullQuery()
	for _, p := range points {
		q.AddPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon())))
	}
	loop := q.ConvexHull()
	if loop.IsEmpty() || loop.IsFull() || loop.NumVertices() < 3 {
		return b.ToPolygon()
	}

	ring := make(orb.Ring, 0, loop.NumVertices()+1)
	for _, v := range loop.Vertices() {
		ll := s2.LatLngFromPoint(v)
		ring = append(ring, orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
