package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/spatial"
)

var stopOpts = StopOptions{MaxDiameterMeters: 50, MinDuration: 2 * time.Minute, RideGap: 10 * time.Minute}

// fix returns a record meters east of the origin, seconds after start.
func fix(box string, seconds int, meters float64) models.PointRecord {
	p := orb.Point{7.6 + spatial.MetersToDegrees(meters), 51.96}
	return models.PointRecord{
		Campaign:  "muenster",
		BoxID:     box,
		CreatedAt: start.Add(time.Duration(seconds) * time.Second),
		Position:  &p,
	}
}

// rideWithStop rides to a light, waits there for waitPoints fixes 30 s
// apart, then rides on. Riding fixes are 100 degree-meters and 10 s apart.
func rideWithStop(box string, waitPoints int) []models.PointRecord {
	var records []models.PointRecord
	for i := 0; i < 5; i++ {
		records = append(records, fix(box, 10*i, 100*float64(i)))
	}
	for i := 0; i < waitPoints; i++ {
		records = append(records, fix(box, 60+30*i, 400+float64(i%3)))
	}
	last := 60 + 30*(waitPoints-1)
	for i := 1; i <= 5; i++ {
		records = append(records, fix(box, last+10*i, 400+100*float64(i)))
	}
	return records
}

func TestDetectStops(t *testing.T) {
	stops := DetectStops(rideWithStop("a", 7), stopOpts)
	require.Len(t, stops, 1)

	s := stops[0]
	assert.Equal(t, "a", s.BoxID)
	// the last riding fix at 400 m sits inside the stop circle too
	assert.GreaterOrEqual(t, s.Points, 7)
	assert.GreaterOrEqual(t, s.Duration(), 3*time.Minute)
	assert.InDelta(t, 51.96, s.Center.Lat(), 1e-9)
	assert.InDelta(t, 400, spatial.DegreesToMeters(s.Center.Lon()-7.6), 5)
}

func TestDetectStopsTooShort(t *testing.T) {
	// three fixes half a minute apart: one minute of waiting
	assert.Empty(t, DetectStops(rideWithStop("a", 3), stopOpts))
}

func TestDetectStopsIgnoresMovingRides(t *testing.T) {
	var records []models.PointRecord
	for i := 0; i < 30; i++ {
		records = append(records, fix("a", 30*i, 100*float64(i)))
	}
	assert.Empty(t, DetectStops(records, stopOpts))
}

func TestDetectStopsDoesNotSpanGaps(t *testing.T) {
	// same spot before and after a half hour pause, one minute each side
	records := []models.PointRecord{
		fix("a", 0, 0),
		fix("a", 60, 0),
		fix("a", 1860, 0),
		fix("a", 1920, 0),
	}
	assert.Empty(t, DetectStops(records, stopOpts))

	wide := stopOpts
	wide.RideGap = time.Hour
	assert.Len(t, DetectStops(records, wide), 1)
}

func TestStopOptionsFor(t *testing.T) {
	p := config.DefaultPolicy()
	opts := StopOptionsFor(p, analysis.Request{})
	assert.Equal(t, 50.0, opts.MaxDiameterMeters)
	assert.Equal(t, 2*time.Minute, opts.MinDuration)

	opts = StopOptionsFor(p, analysis.Request{StopMaxDiameterMeters: 20, StopMinDurationMinutes: 0.5})
	assert.Equal(t, 20.0, opts.MaxDiameterMeters)
	assert.Equal(t, 30*time.Second, opts.MinDuration)
}

func TestTrafficStopsAnalyzer(t *testing.T) {
	points := append(rideWithStop("a", 7), rideWithStop("b", 2)...)
	store := newFeatureStore(points...)

	a, err := analysis.GetAnalyzer(StopsAnalyzerName, store.deps())
	require.NoError(t, err)
	result, err := a.Analyze(context.Background(), 1, analysis.Request{Filter: models.PointFilter{Campaign: "muenster"}, CreateCollection: true})
	require.NoError(t, err)

	features := store.features["muenster/"+StopsAnalyzerName]
	require.Len(t, features, 1)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, "a", features[0].BoxID)
	assert.Equal(t, "a", features[0].Properties["traj_id"])
	assert.Equal(t, "2025-06-02T07:30:40Z", features[0].Properties["start_time"])
	assert.Equal(t, "a_2025-06-02T07:30:40Z", features[0].Properties["stop_id"])
	assert.Equal(t, []string{"traffic_stops_muenster"}, store.collections)

	// a tighter duration from the request finds b's short wait as well
	store = newFeatureStore(points...)
	a = NewTrafficStopsAnalyzer(store.deps())
	_, err = a.Analyze(context.Background(), 2, analysis.Request{
		Filter:                 models.PointFilter{Campaign: "muenster"},
		StopMinDurationMinutes: 0.5,
	})
	require.NoError(t, err)
	assert.Len(t, store.features["muenster/"+StopsAnalyzerName], 2)
	assert.Empty(t, store.collections, "no collection without col_create")
}
