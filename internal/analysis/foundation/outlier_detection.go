package foundation

import (
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/stats"
)

// NullOutliersByDevice nulls values of metric lying outside the Tukey fences
// (Q1 - 1.5 IQR, Q3 + 1.5 IQR) of the same box. Fences are computed per box
// over its non-null values; records are kept, only the reading is cleared.
func NullOutliersByDevice(records []models.PointRecord, metric string) []models.PointRecord {
	values := make(map[string][]float64)
	for _, r := range records {
		if v, ok := r.Reading(metric); ok {
			values[r.BoxID] = append(values[r.BoxID], v)
		}
	}

	type fence struct{ lower, upper float64 }
	fences := make(map[string]fence, len(values))
	for box, vs := range values {
		lower, upper := stats.OutlierBounds(vs)
		fences[box] = fence{lower, upper}
	}

	out := make([]models.PointRecord, len(records))
	for i, r := range records {
		v, ok := r.Reading(metric)
		f := fences[r.BoxID]
		if ok && (v < f.lower || v > f.upper) {
			r = r.Without(metric)
		}
		out[i] = r
	}
	return out
}
