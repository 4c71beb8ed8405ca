package repository

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/database"
	"github.com/atrai/atrai-backend-go/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)

func TestPointRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPointRepository(newTestDB(t))

	pos := orb.Point{7.62, 51.96}
	records := []models.PointRecord{
		{Campaign: "muenster", BoxID: "b", CreatedAt: base.Add(time.Minute), Position: &pos,
			Readings: map[string]float64{models.MetricSpeed: 4.2, models.MetricStanding: math.NaN()}},
		{Campaign: "muenster", BoxID: "a", CreatedAt: base, Position: nil},
		{Campaign: "muenster", BoxID: "a", CreatedAt: base.Add(2 * time.Minute), Position: &pos},
		{Campaign: "berlin", BoxID: "c", CreatedAt: base, Position: &pos},
	}
	n, err := repo.InsertPoints(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := repo.ListPoints(ctx, models.PointFilter{Campaign: "muenster"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].BoxID)
	assert.Nil(t, got[0].Position)
	assert.Equal(t, "b", got[2].BoxID)
	require.NotNil(t, got[2].Position)
	assert.Equal(t, pos, *got[2].Position)
	assert.Equal(t, base.Add(time.Minute), got[2].CreatedAt)

	v, ok := got[2].Reading(models.MetricSpeed)
	assert.True(t, ok)
	assert.Equal(t, 4.2, v)
	_, ok = got[2].Reading(models.MetricStanding)
	assert.False(t, ok, "NaN is stored as null")

	// box ids win over the campaign
	got, err = repo.ListPoints(ctx, models.PointFilter{Campaign: "muenster", BoxIDs: []string{"c"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "berlin", got[0].Campaign)

	start, end := base.Add(30*time.Second), base.Add(90*time.Second)
	got, err = repo.ListPoints(ctx, models.PointFilter{Campaign: "muenster", Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].BoxID)

	campaigns, err := repo.Campaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"muenster": 3, "berlin": 1}, campaigns)
}

func TestRoadRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRoadRepository(newTestDB(t))

	line := orb.LineString{{7.6, 51.9}, {7.61, 51.91}}
	require.NoError(t, repo.ReplaceRoads(ctx, "muenster", []models.RoadSegment{
		{ID: 10, WayID: "w1", Name: "Ring", Highway: "cycleway", Geometry: line},
		{ID: 11, Geometry: line},
	}))
	require.NoError(t, repo.ReplaceRoads(ctx, "", []models.RoadSegment{{ID: 1, Geometry: line}}))
	require.NoError(t, repo.ReplaceRoads(ctx, "berlin", []models.RoadSegment{{ID: 20, Geometry: line}}))

	roads, err := repo.ListRoads(ctx, "muenster")
	require.NoError(t, err)
	require.Len(t, roads, 3)
	assert.Equal(t, int64(1), roads[0].ID)
	assert.Equal(t, "Ring", roads[1].Name)
	assert.Equal(t, line, roads[1].Geometry)

	all, err := repo.ListRoads(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// replacing a region drops its previous segments
	require.NoError(t, repo.ReplaceRoads(ctx, "muenster", nil))
	roads, err = repo.ListRoads(ctx, "muenster")
	require.NoError(t, err)
	assert.Len(t, roads, 1)
}

func TestAggregateRepositoryReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewAggregateRepository(newTestDB(t))

	mean := 2.5
	hist := "1, 0, 0, 0, 0"
	first := []models.MatchedAggregate{{
		SegmentID:             7,
		Geometry:              orb.LineString{{7.6, 51.9}, {7.61, 51.9}},
		Attributes:            map[string]any{"name": "Ring"},
		Averages:              map[string]*float64{models.MetricRoughness: &mean, models.MetricSpeed: nil},
		AverageDistanceToRoad: 3.2,
		NumberOfPoints:        4,
		NumberOfBoxes:         2,
		Histogram:             &hist,
	}}
	require.NoError(t, repo.ReplaceAggregates(ctx, "muenster", "bumpy_roads", first))
	require.NoError(t, repo.ReplaceAggregates(ctx, "muenster", "speed_map", first))

	rows, err := repo.ListAggregates(ctx, models.AggregateFilter{Analyzer: "bumpy_roads", Campaign: "muenster"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, int64(7), row.SegmentID)
	assert.Equal(t, "Ring", row.Attributes["name"])
	require.NotNil(t, row.Averages[models.MetricRoughness])
	assert.Equal(t, 2.5, *row.Averages[models.MetricRoughness])
	assert.Nil(t, row.Averages[models.MetricSpeed])
	require.NotNil(t, row.Histogram)
	assert.Equal(t, hist, *row.Histogram)

	require.NoError(t, repo.ReplaceAggregates(ctx, "muenster", "bumpy_roads", nil))
	rows, err = repo.ListAggregates(ctx, models.AggregateFilter{Analyzer: "bumpy_roads"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = repo.ListAggregates(ctx, models.AggregateFilter{Analyzer: "speed_map"})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "other analyzers are untouched")
}

func TestTourRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTourRepository(db)
	stats := NewStatisticsRepository(db)
	rec := models.StatisticsRecord{Tag: "muenster"}

	speed := 18.0
	tours := []models.Tour{
		{BoxID: "a", TourIndex: 0, Geometry: orb.LineString{{7.6, 51.9}, {7.61, 51.9}},
			StartTime: base, EndTime: base.Add(10 * time.Minute), DurationSeconds: 600,
			DistanceMeters: 3000, AverageSpeedKmh: &speed, Kcal: 79.625, PointCount: 12},
		{BoxID: "a", TourIndex: 1, Geometry: orb.LineString{{7.6, 51.9}, {7.6, 51.91}},
			StartTime: base.Add(time.Hour), EndTime: base.Add(time.Hour), PointCount: 10},
		{BoxID: "b", TourIndex: 0, Geometry: orb.LineString{{7.6, 51.9}, {7.62, 51.9}},
			StartTime: base, EndTime: base.Add(time.Minute), DurationSeconds: 60, PointCount: 10},
	}
	require.NoError(t, stats.StoreStatistics(ctx, rec, tours))

	got, total, err := repo.ListTours(ctx, models.TourFilter{Campaign: "muenster", BoxID: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, got, 2)
	assert.Equal(t, "muenster", got[0].Campaign)
	require.NotNil(t, got[0].AverageSpeedKmh)
	assert.Equal(t, 18.0, *got[0].AverageSpeedKmh)
	assert.Nil(t, got[1].AverageSpeedKmh)
	assert.Equal(t, base.Add(10*time.Minute), got[0].EndTime)

	page, total, err := repo.ListTours(ctx, models.TourFilter{Campaign: "muenster", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].BoxID)

	require.NoError(t, stats.StoreStatistics(ctx, rec, tours[:1]))
	_, total, err = repo.ListTours(ctx, models.TourFilter{Campaign: "muenster"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestStatisticsRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewStatisticsRepository(newTestDB(t))

	_, err := repo.GetStatistics(ctx, "muenster")
	assert.ErrorIs(t, err, ErrNotFound)

	hull := orb.Polygon{{{7.6, 51.9}, {7.7, 51.9}, {7.7, 52.0}, {7.6, 51.9}}}
	rec := models.StatisticsRecord{
		Tag:       "muenster",
		Geometry:  hull,
		UpdatedAt: base,
		Statistics: models.TourStatistics{
			Granularity:   models.GranularityDay,
			LatestStats:   models.LatestStats{TripAggregate: models.TripAggregate{TripCount: 3}},
			PeriodicStats: []models.PeriodicStatBucket{{PeriodStart: base}},
		},
	}
	require.NoError(t, repo.StoreStatistics(ctx, rec, nil))

	rec.Statistics.LatestStats.TripCount = 5
	rec.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, repo.StoreStatistics(ctx, rec, nil))

	got, err := repo.GetStatistics(ctx, "muenster")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Statistics.LatestStats.TripCount)
	assert.Equal(t, base.Add(time.Hour), got.UpdatedAt)
	assert.Equal(t, hull, got.Geometry)
	require.Len(t, got.Statistics.PeriodicStats, 1)
	assert.True(t, got.Statistics.PeriodicStats[0].PeriodStart.Equal(base))
}

func TestStatisticsRepositoryStoreIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewStatisticsRepository(db)
	tours := NewTourRepository(db)

	line := orb.LineString{{7.6, 51.9}, {7.61, 51.9}}
	first := []models.Tour{
		{BoxID: "a", TourIndex: 0, Geometry: line, StartTime: base, EndTime: base.Add(time.Minute), PointCount: 10},
		{BoxID: "a", TourIndex: 1, Geometry: line, StartTime: base.Add(time.Hour), EndTime: base.Add(time.Hour), PointCount: 10},
	}
	rec := models.StatisticsRecord{Tag: "muenster", UpdatedAt: base,
		Statistics: models.TourStatistics{LatestStats: models.LatestStats{TripAggregate: models.TripAggregate{TripCount: 2}}}}
	require.NoError(t, repo.StoreStatistics(ctx, rec, first))

	got, total, err := tours.ListTours(ctx, models.TourFilter{Campaign: "muenster"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "muenster", got[0].Campaign)

	// NaN cannot be encoded, so the statistics write fails after the
	// tours were replaced inside the transaction
	broken := rec
	broken.UpdatedAt = base.Add(time.Hour)
	broken.Statistics.LatestStats.TotalKcal = math.NaN()
	err = repo.StoreStatistics(ctx, broken, first[:1])
	require.Error(t, err)

	_, total, err = tours.ListTours(ctx, models.TourFilter{Campaign: "muenster"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "tours roll back with the statistics")

	stored, err := repo.GetStatistics(ctx, "muenster")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Statistics.LatestStats.TripCount)
	assert.Equal(t, base, stored.UpdatedAt)

	require.NoError(t, repo.DeleteStatistics(ctx, "muenster"))
	_, err = repo.GetStatistics(ctx, "muenster")
	assert.ErrorIs(t, err, ErrNotFound)
	_, total, err = tours.ListTours(ctx, models.TourFilter{Campaign: "muenster"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestFeatureRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFeatureRepository(newTestDB(t))

	features := []models.PointFeature{
		{BoxID: "a", Position: orb.Point{7.6, 51.9}, Properties: map[string]any{"Risk Index Overtaking": 0.8}},
		{BoxID: "b", Position: orb.Point{7.7, 51.9}, Properties: map[string]any{"Risk Index Overtaking": 0.4}},
	}
	require.NoError(t, repo.ReplaceFeatures(ctx, "muenster", "danger_zones", features))
	require.NoError(t, repo.ReplaceFeatures(ctx, "muenster", "danger_zones_PM", features[:1]))

	got, err := repo.ListFeatures(ctx, models.FeatureFilter{Layer: "danger_zones", Campaign: "muenster"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].BoxID)
	assert.Equal(t, orb.Point{7.6, 51.9}, got[0].Position)
	assert.Equal(t, 0.8, got[0].Properties["Risk Index Overtaking"])
	assert.Equal(t, "danger_zones", got[0].Layer)

	got, err = repo.ListFeatures(ctx, models.FeatureFilter{Layer: "danger_zones", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// replacing one layer leaves the other alone
	require.NoError(t, repo.ReplaceFeatures(ctx, "muenster", "danger_zones", nil))
	got, err = repo.ListFeatures(ctx, models.FeatureFilter{Layer: "danger_zones"})
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = repo.ListFeatures(ctx, models.FeatureFilter{Layer: "danger_zones_PM"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCollectionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(newTestDB(t))

	c := models.Collection{
		Name:     "bumpy_roads_muenster",
		Title:    "Road roughness",
		Analyzer: "bumpy_roads",
		Campaign: "muenster",
		BBox:     orb.Bound{Min: orb.Point{7.5, 51.8}, Max: orb.Point{7.7, 52.0}},
		Schema:   map[string]string{"Number of Points": "integer"},
	}
	require.NoError(t, repo.Upsert(ctx, c))
	c.Title = "Roughness"
	require.NoError(t, repo.Upsert(ctx, c))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Roughness", list[0].Title)
	assert.Equal(t, [4]float64{7.5, 51.8, 7.7, 52.0}, list[0].Extent())

	got, err := repo.Get(ctx, c.Name)
	require.NoError(t, err)
	assert.Equal(t, c.Schema, got.Schema)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, c.Name))
	_, err = repo.Get(ctx, c.Name)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, c.Name), ErrNotFound)
}

func TestAnalysisTaskRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisTaskRepository(newTestDB(t))

	task := &models.AnalysisTask{RunID: "run-1", AnalyzerName: "speed_map", Campaign: "muenster", Status: models.TaskStatusPending}
	require.NoError(t, repo.Create(ctx, task))
	require.NotZero(t, task.ID)

	require.NoError(t, repo.MarkAsRunning(ctx, task.ID))
	require.NoError(t, repo.UpdateProgress(ctx, task.ID, analysis.Progress{Processed: 80, Total: 100, Dropped: 20}))
	require.NoError(t, repo.MarkAsCompleted(ctx, task.ID, `{"rows":3}`))

	got, err := repo.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
	assert.Equal(t, 100, got.TotalPoints)
	assert.Equal(t, 20, got.DroppedPoints)
	assert.NotZero(t, got.StartTime)
	assert.Equal(t, `{"rows":3}`, got.ResultSummary)

	other := &models.AnalysisTask{RunID: "run-2", AnalyzerName: "statistics", Status: models.TaskStatusPending}
	require.NoError(t, repo.Create(ctx, other))
	require.NoError(t, repo.MarkAsFailed(ctx, other.ID, "no data"))

	failed, err := repo.List(ctx, models.TaskFilter{Status: models.TaskStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "no data", failed[0].ErrorMessage)

	all, err := repo.List(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-2", all[0].RunID)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalysisTaskRepositoryStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisTaskRepository(newTestDB(t))

	task := &models.AnalysisTask{RunID: "run-1", AnalyzerName: "statistics", Status: models.TaskStatusPending}
	require.NoError(t, repo.Create(ctx, task))

	// a pending task cannot complete
	assert.ErrorIs(t, repo.MarkAsCompleted(ctx, task.ID, `{}`), ErrStaleStatus)

	require.NoError(t, repo.MarkAsRunning(ctx, task.ID))
	assert.ErrorIs(t, repo.MarkAsRunning(ctx, task.ID), ErrStaleStatus)

	// cancelled while running, then the run reports success
	require.NoError(t, repo.MarkAsFailed(ctx, task.ID, "task cancelled"))
	assert.ErrorIs(t, repo.MarkAsCompleted(ctx, task.ID, `{"rows":3}`), ErrStaleStatus)
	assert.ErrorIs(t, repo.MarkAsFailed(ctx, task.ID, "boom"), ErrStaleStatus)

	got, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Equal(t, "task cancelled", got.ErrorMessage)
	assert.Empty(t, got.ResultSummary)

	assert.ErrorIs(t, repo.MarkAsRunning(ctx, 999), ErrStaleStatus)
}
