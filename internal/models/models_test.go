package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointRecordReadings(t *testing.T) {
	p := PointRecord{Readings: map[string]float64{MetricSpeed: 4.2, MetricStanding: math.NaN()}}

	v, ok := p.Reading(MetricSpeed)
	assert.True(t, ok)
	assert.Equal(t, 4.2, v)

	_, ok = p.Reading(MetricStanding)
	assert.False(t, ok, "NaN reads as null")
	_, ok = p.Reading(MetricPM10)
	assert.False(t, ok, "missing key reads as null")

	assert.True(t, p.HasReadings(MetricSpeed))
	assert.False(t, p.HasReadings(MetricSpeed, MetricStanding))
}

func TestPointRecordWithCopies(t *testing.T) {
	p := PointRecord{Readings: map[string]float64{MetricSpeed: 1}}
	q := p.With(MetricTrafficFlow, 0.5)

	_, ok := p.Reading(MetricTrafficFlow)
	assert.False(t, ok)
	v, ok := q.Reading(MetricTrafficFlow)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)

	r := q.Without(MetricSpeed)
	_, ok = r.Reading(MetricSpeed)
	assert.False(t, ok)
	_, ok = q.Reading(MetricSpeed)
	assert.True(t, ok)
}

func TestMatchedAggregateProperties(t *testing.T) {
	mean := 2.5
	hist := "1, 0, 0, 0, 0"
	a := MatchedAggregate{
		SegmentID:             9,
		Attributes:            map[string]any{"name": "Hafenweg"},
		Averages:              map[string]*float64{MetricRoughness: &mean, MetricSpeed: nil},
		AverageDistanceToRoad: 3.2,
		NumberOfPoints:        4,
		NumberOfBoxes:         2,
		Histogram:             &hist,
	}

	props := a.Properties()
	assert.Equal(t, int64(9), props["id"])
	assert.Equal(t, "Hafenweg", props["name"])
	assert.Equal(t, 2.5, props["Average Roughness"])
	assert.Contains(t, props, "Average Speed")
	assert.Nil(t, props["Average Speed"])
	assert.Equal(t, 3.2, props[ColumnAverageDistanceToRoad])
	assert.Equal(t, 4, props[ColumnNumberOfPoints])
	assert.Equal(t, 2, props[ColumnNumberOfBoxes])
	assert.Equal(t, hist, props[ColumnOvertakingHistogram])
}

func TestTourStatisticsJSON(t *testing.T) {
	speed := 18.0
	stats := TourStatistics{
		LatestStats: LatestStats{
			TripAggregate:           TripAggregate{TripCount: 2, AverageSpeedKmh: &speed},
			AverageDistancePerTripM: 1500,
		},
		Granularity: GranularityDay,
	}

	raw, err := json.Marshal(stats)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	latest := decoded["latest_stats"].(map[string]any)
	assert.Equal(t, 2.0, latest["trip_count"])
	assert.Equal(t, 18.0, latest["average_speed_kmh"])
	assert.Equal(t, 1500.0, latest["average_distance_per_trip_m"])
	assert.NotContains(t, latest, "period_start")
}

func TestTourName(t *testing.T) {
	assert.Equal(t, "tour_3", Tour{TourIndex: 3}.Name())
}
