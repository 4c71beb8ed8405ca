package source

import (
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrai/atrai-backend-go/internal/models"
)

func TestReadPointsCSV(t *testing.T) {
	input := strings.Join([]string{
		"createdAt,boxId,lng,lat,Speed,Standing,Overtaking Distance",
		"2025-05-12T09:00:00Z,box-1,7.62,51.96,4.5,0,",
		"2025-05-12 09:00:05+00,box-1,,,4.7,0.2,120",
		"not a time,box-1,7.62,51.96,1,1,1",
		"2025-05-12T09:00:10.250Z,box-2,7.63,51.97,n/a,1,80",
	}, "\n")

	records, skipped, err := ReadPointsCSV(strings.NewReader(input), "muenster")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "muenster", first.Campaign)
	assert.Equal(t, "box-1", first.BoxID)
	assert.Equal(t, time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC), first.CreatedAt)
	require.NotNil(t, first.Position)
	assert.Equal(t, orb.Point{7.62, 51.96}, *first.Position)
	v, ok := first.Reading(models.MetricSpeed)
	assert.True(t, ok)
	assert.Equal(t, 4.5, v)
	_, ok = first.Reading(models.MetricOvertakingDistance)
	assert.False(t, ok, "empty cells are null")

	assert.Nil(t, records[1].Position)
	assert.Equal(t, time.Date(2025, 5, 12, 9, 0, 5, 0, time.UTC), records[1].CreatedAt)

	_, ok = records[2].Reading(models.MetricSpeed)
	assert.False(t, ok)
	assert.Equal(t, 250*time.Millisecond, records[2].CreatedAt.Sub(time.Date(2025, 5, 12, 9, 0, 10, 0, time.UTC)))
}

func TestReadPointsCSVCampaignColumn(t *testing.T) {
	input := "created_at,box_id,grouptag,lon,lat\n2025-05-12T09:00:00Z,b,bonn,7.1,50.7\n"
	records, _, err := ReadPointsCSV(strings.NewReader(input), "fallback")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bonn", records[0].Campaign)
}

func TestReadPointsCSVMissingColumns(t *testing.T) {
	_, _, err := ReadPointsCSV(strings.NewReader("boxId,lat,lng\n"), "x")
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, _, err = ReadPointsCSV(strings.NewReader("createdAt,lat,lng\n"), "x")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadRoadsGeoJSON(t *testing.T) {
	input := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"id": 5, "name": "Ring", "highway": "cycleway", "osm_id": 123},
			 "geometry": {"type": "LineString", "coordinates": [[7.6, 51.9], [7.61, 51.9]]}},
			{"type": "Feature", "properties": {"surface": "asphalt"},
			 "geometry": {"type": "MultiLineString", "coordinates": [
				[[7.6, 51.91], [7.61, 51.91]],
				[[7.62, 51.91], [7.63, 51.91]],
				[[7.64, 51.91]]
			 ]}},
			{"type": "Feature", "properties": {},
			 "geometry": {"type": "Point", "coordinates": [7.6, 51.9]}}
		]
	}`

	roads, err := ReadRoadsGeoJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, roads, 3)

	assert.Equal(t, int64(5), roads[0].ID)
	assert.Equal(t, "Ring", roads[0].Name)
	assert.Equal(t, "123", roads[0].WayID)
	assert.Equal(t, "cycleway", roads[0].Highway)

	assert.Equal(t, int64(6), roads[1].ID)
	assert.Equal(t, int64(7), roads[2].ID)
	assert.Equal(t, "asphalt", roads[2].Surface)
	assert.Equal(t, orb.LineString{{7.62, 51.91}, {7.63, 51.91}}, roads[2].Geometry)
}

func TestPointsQuery(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	query, args := pointsQuery("osem_bike_data", models.PointFilter{Campaign: "muenster", BoxIDs: []string{"a", "b"}, Start: &start})
	assert.Contains(t, query, `"boxId" = ANY($1)`)
	assert.Contains(t, query, `"createdAt" >= $2`)
	assert.NotContains(t, query, "LIKE")
	assert.Equal(t, []any{[]string{"a", "b"}, start}, args)

	query, args = pointsQuery("osem_bike_data", models.PointFilter{Campaign: "muenster"})
	assert.Contains(t, query, "grouptag LIKE $1")
	assert.Equal(t, []any{"%muenster%"}, args)
}

func TestReadingsFromJSON(t *testing.T) {
	readings := readingsFromJSON(map[string]any{
		"Speed":    4.2,
		"Standing": nil,
		"name":     "box",
	})
	assert.Equal(t, map[string]float64{"Speed": 4.2}, readings)
}
