package behavior

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/models"
)

type featureStore struct {
	points      []models.PointRecord
	features    map[string][]models.PointFeature // campaign/layer
	collections []string
}

func newFeatureStore(points ...models.PointRecord) *featureStore {
	return &featureStore{points: points, features: make(map[string][]models.PointFeature)}
}

func (s *featureStore) ListPoints(_ context.Context, f models.PointFilter) ([]models.PointRecord, error) {
	var out []models.PointRecord
	for _, p := range s.points {
		if p.Campaign == f.Campaign {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *featureStore) ReplaceFeatures(_ context.Context, campaign, layer string, features []models.PointFeature) error {
	s.features[campaign+"/"+layer] = features
	return nil
}

func (s *featureStore) Register(_ context.Context, name string, _ orb.Bound, _ map[string]string) error {
	s.collections = append(s.collections, name)
	return nil
}

func (s *featureStore) deps() analysis.Deps {
	return analysis.Deps{
		Points:      s,
		Features:    s,
		Collections: s,
		Policy:      config.DefaultPolicy(),
		Workers:     2,
	}
}

func withReadings(r models.PointRecord, readings map[string]float64) models.PointRecord {
	r.Readings = readings
	return r
}

func TestDangerZonesRiskIndex(t *testing.T) {
	om, od := models.MetricOvertakingManoeuvre, models.MetricOvertakingDistance
	records := []models.PointRecord{
		withReadings(point("a", 0, 7.6, 51.9), map[string]float64{om: 1, od: 0}),
		withReadings(point("a", 1, 7.6, 51.9), map[string]float64{om: 0.5, od: 200}),
		withReadings(point("a", 2, 7.6, 51.9), map[string]float64{om: 0.05, od: 10}), // below the manoeuvre floor
		withReadings(point("a", 3, 7.6, 51.9), map[string]float64{om: 0.9}),          // no distance
		withReadings(point("a", 4, 7.6, 51.9), map[string]float64{om: 0.2, od: 800}),
	}

	features := DangerZones(records)
	require.Len(t, features, 3)
	assert.InDelta(t, 1.0, features[0].Properties[ColumnRiskIndexOvertaking], 1e-12)
	assert.InDelta(t, 0.3*0.5+0.7*0.5, features[1].Properties[ColumnRiskIndexOvertaking], 1e-12)
	assert.InDelta(t, 0.06, features[2].Properties[ColumnRiskIndexOvertaking], 1e-12)
	assert.Equal(t, 7.6, features[0].Properties["lng"])
	assert.Equal(t, orb.Point{7.6, 51.9}, features[0].Position)
}

func TestPMDangerZones(t *testing.T) {
	om, od, hum := models.MetricOvertakingManoeuvre, models.MetricOvertakingDistance, models.MetricHumidity
	pm := func(v float64) map[string]float64 {
		return map[string]float64{
			om: 0, od: 400, hum: 60,
			models.MetricPM1: v, models.MetricPM25: v, models.MetricPM4: v, models.MetricPM10: v,
		}
	}
	humid := pm(10)
	humid[hum] = 90
	missing := pm(10)
	delete(missing, models.MetricPM4)

	records := []models.PointRecord{
		withReadings(point("a", 0, 7.6, 51.9), pm(10)),
		withReadings(point("a", 1, 7.6, 51.9), pm(5)),
		withReadings(point("a", 2, 7.6, 51.9), humid),
		withReadings(point("a", 3, 7.6, 51.9), missing),
	}

	features := PMDangerZones(records)
	require.Len(t, features, 2)
	// no manoeuvre, no closeness: the PM weights alone, scaled by the column max
	assert.InDelta(t, 0.5, features[0].Properties[ColumnRiskIndex], 1e-12)
	assert.InDelta(t, 0.25, features[1].Properties[ColumnRiskIndex], 1e-12)
}

func TestDangerousPlacesAnalyzer(t *testing.T) {
	om, od := models.MetricOvertakingManoeuvre, models.MetricOvertakingDistance
	var points []models.PointRecord
	for i := 0; i < 12; i++ {
		points = append(points, withReadings(point("a", float64(i), 7.6+float64(i)*0.001, 51.9), map[string]float64{om: 0.9, od: 100}))
	}
	// too few records for a device
	points = append(points, withReadings(point("b", 0, 7.7, 51.9), map[string]float64{om: 0.9, od: 100}))
	store := newFeatureStore(points...)

	a, err := analysis.GetAnalyzer(DangerAnalyzerName, store.deps())
	require.NoError(t, err)
	result, err := a.Analyze(context.Background(), 1, analysis.Request{Filter: models.PointFilter{Campaign: "muenster"}, CreateCollection: true})
	require.NoError(t, err)

	assert.Len(t, store.features["muenster/"+LayerDangerZones], 12)
	assert.Empty(t, store.features["muenster/"+LayerDangerZonesPM], "no humidity readings")
	assert.Equal(t, 12, result.Rows)
	assert.Equal(t, 12, result.Summary[LayerDangerZones])
	assert.Equal(t, []string{"danger_zones_muenster"}, store.collections)

	_, err = a.Analyze(context.Background(), 2, analysis.Request{Filter: models.PointFilter{Campaign: "berlin"}})
	assert.ErrorIs(t, err, analysis.ErrNoData)
}

func TestDangerLayersRegistered(t *testing.T) {
	for _, name := range []string{LayerDangerZones, LayerDangerZonesPM, StopsAnalyzerName} {
		assert.True(t, analysis.IsLayer(name), name)
	}
	assert.Equal(t, DangerAnalyzerName, analysis.LayerRegistry[LayerDangerZonesPM].Analyzer)
	assert.Contains(t, analysis.CollectionPrefixes(), LayerDangerZonesPM)
	assert.Contains(t, analysis.CollectionPrefixes(), DangerAnalyzerName)
}
