package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// ErrNotFound is returned when a single row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrStaleStatus is returned when a status update finds the row in a
// state other than the one it expected, e.g. a run completing a task
// that was cancelled meanwhile.
var ErrStaleStatus = errors.New("task status changed concurrently")

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func encodeGeometry(g orb.Geometry) ([]byte, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}
	return data, nil
}

func decodeLine(data []byte) (orb.LineString, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	ls, ok := g.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("failed to decode geometry: expected LineString, got %s", g.GeoJSONType())
	}
	return ls, nil
}

func decodePolygon(data []byte) (orb.Polygon, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	p, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("failed to decode geometry: expected Polygon, got %s", g.GeoJSONType())
	}
	return p, nil
}

// encodeReadings writes the non-null readings as a JSON object; JSON has no
// NaN so nulls are simply left out.
func encodeReadings(readings map[string]float64) (string, error) {
	clean := make(map[string]float64, len(readings))
	for k, v := range readings {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		clean[k] = v
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("failed to encode readings: %w", err)
	}
	return string(data), nil
}

func decodeJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode json column: %w", err)
	}
	return nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(data), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
