package source

import (
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// ReadRoadsGeoJSON parses a road network FeatureCollection. LineString
// features become one segment, MultiLineString features one segment per
// part; other geometries are ignored. Features carrying a numeric "id"
// property keep it when they have a single part, the rest are numbered
// after the largest id seen.
func ReadRoadsGeoJSON(r io.Reader) ([]models.RoadSegment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read road network: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse road network: %w", err)
	}

	var (
		segments []models.RoadSegment
		maxID    int64
		unset    []int
	)
	for _, f := range fc.Features {
		var parts []orb.LineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			parts = []orb.LineString{g}
		case orb.MultiLineString:
			parts = g
		default:
			continue
		}

		id, hasID := featureID(f)
		for _, part := range parts {
			if len(part) < 2 {
				continue
			}
			seg := models.RoadSegment{
				WayID:    propString(f.Properties, "osm_id", "way_id"),
				Name:     propString(f.Properties, "name"),
				Surface:  propString(f.Properties, "surface"),
				Highway:  propString(f.Properties, "highway"),
				Geometry: part,
			}
			if hasID && len(parts) == 1 {
				seg.ID = id
				maxID = max(maxID, id)
			} else {
				unset = append(unset, len(segments))
			}
			segments = append(segments, seg)
		}
	}

	for _, i := range unset {
		maxID++
		segments[i].ID = maxID
	}
	return segments, nil
}

func featureID(f *geojson.Feature) (int64, bool) {
	for _, v := range []any{f.Properties["id"], f.ID} {
		switch id := v.(type) {
		case float64:
			return int64(id), true
		case string:
			if n, err := strconv.ParseInt(id, 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func propString(props geojson.Properties, keys ...string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
