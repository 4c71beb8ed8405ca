package foundation

import (
	"sort"
	"time"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// Where keeps the records accepted by keep.
func Where(records []models.PointRecord, keep func(models.PointRecord) bool) []models.PointRecord {
	out := make([]models.PointRecord, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// DropInvalid removes records without a position or timestamp.
func DropInvalid(records []models.PointRecord) []models.PointRecord {
	return Where(records, func(r models.PointRecord) bool {
		return r.Position != nil && !r.CreatedAt.IsZero()
	})
}

// RequireReadings keeps records where every named reading is non-null.
func RequireReadings(records []models.PointRecord, names ...string) []models.PointRecord {
	return Where(records, func(r models.PointRecord) bool {
		return r.HasReadings(names...)
	})
}

// ReadingAtLeast keeps records whose reading is present and >= min.
func ReadingAtLeast(records []models.PointRecord, name string, min float64) []models.PointRecord {
	return Where(records, func(r models.PointRecord) bool {
		v, ok := r.Reading(name)
		return ok && v >= min
	})
}

// ReadingAtMost keeps records whose reading is present and <= max.
func ReadingAtMost(records []models.PointRecord, name string, max float64) []models.PointRecord {
	return Where(records, func(r models.PointRecord) bool {
		v, ok := r.Reading(name)
		return ok && v <= max
	})
}

// MinDevicePoints drops every box that contributed fewer than min records.
func MinDevicePoints(records []models.PointRecord, min int) []models.PointRecord {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.BoxID]++
	}
	return Where(records, func(r models.PointRecord) bool {
		return counts[r.BoxID] >= min
	})
}

// GroupByBox splits records per box, each group sorted by time. Box ids
// are returned in sorted order.
func GroupByBox(records []models.PointRecord) ([]string, map[string][]models.PointRecord) {
	groups := make(map[string][]models.PointRecord)
	for _, r := range records {
		groups[r.BoxID] = append(groups[r.BoxID], r)
	}

	boxes := make([]string, 0, len(groups))
	for box, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].CreatedAt.Before(g[j].CreatedAt)
		})
		boxes = append(boxes, box)
	}
	sort.Strings(boxes)
	return boxes, groups
}

// SplitOnGap cuts a time sorted sequence wherever consecutive records are
// more than gap apart.
func SplitOnGap(records []models.PointRecord, gap time.Duration) [][]models.PointRecord {
	if len(records) == 0 {
		return nil
	}

	var runs [][]models.PointRecord
	start := 0
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.Sub(records[i-1].CreatedAt) > gap {
			runs = append(runs, records[start:i])
			start = i
		}
	}
	return append(runs, records[start:])
}

// Standing trim defaults.
const (
	StandingThreshold = 0.9
	RideGap           = 10 * time.Minute
)

// TrimStanding removes the stationary head and tail of every ride. A ride is
// a run of one box's records with no gap above rideGap; leading and trailing
// records with Standing above threshold are dropped. Records without a
// Standing reading are dropped first. The result is ordered by box, then time.
func TrimStanding(records []models.PointRecord, threshold float64, rideGap time.Duration) []models.PointRecord {
	records = RequireReadings(records, models.MetricStanding)
	boxes, groups := GroupByBox(records)

	standing := func(r models.PointRecord) bool {
		v, _ := r.Reading(models.MetricStanding)
		return v > threshold
	}

	out := make([]models.PointRecord, 0, len(records))
	for _, box := range boxes {
		for _, ride := range SplitOnGap(groups[box], rideGap) {
			lo, hi := 0, len(ride)
			for lo < hi && standing(ride[lo]) {
				lo++
			}
			for hi > lo && standing(ride[hi-1]) {
				hi--
			}
			out = append(out, ride[lo:hi]...)
		}
	}
	return out
}
