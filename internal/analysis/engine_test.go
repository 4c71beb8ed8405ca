package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrai/atrai-backend-go/internal/models"
)

type fakePoints []models.PointRecord

func (f fakePoints) ListPoints(context.Context, models.PointFilter) ([]models.PointRecord, error) {
	return f, nil
}

type progressLog []Progress

func (p *progressLog) UpdateProgress(_ context.Context, _ int64, pr Progress) error {
	*p = append(*p, pr)
	return nil
}

func TestOutputKey(t *testing.T) {
	assert.Equal(t, "muenster", Request{Filter: models.PointFilter{Campaign: "muenster"}}.OutputKey())
	assert.Equal(t, "boxes:a,b", Request{Filter: models.PointFilter{BoxIDs: []string{"b", "a"}}}.OutputKey())
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "bumpy_roads_muenster", CollectionName("bumpy_roads", "Muenster"))
	assert.Equal(t, "speed_map_boxes_a_b", CollectionName("speed_map", "boxes:a,b"))
	assert.Equal(t, "speed_map", CollectionName("speed_map", ""))
}

func TestGetAnalyzerUnknown(t *testing.T) {
	_, err := GetAnalyzer("does-not-exist", Deps{})
	assert.ErrorIs(t, err, ErrUnknownAnalyzer)
}

func TestLoadPointsNoData(t *testing.T) {
	a := NewBaseAnalyzer(Deps{Points: fakePoints(nil)}, "test")
	_, err := a.LoadPoints(context.Background(), Request{Filter: models.PointFilter{Campaign: "empty"}})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRunStagesReportsProgress(t *testing.T) {
	var log progressLog
	a := NewBaseAnalyzer(Deps{Progress: &log}, "test")

	records := make([]models.PointRecord, 4)
	dropOne := Stage{Name: "drop_one", Run: func(r []models.PointRecord) []models.PointRecord { return r[1:] }}

	out, err := a.RunStages(context.Background(), 1, records, dropOne, dropOne)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, progressLog{{Processed: 3, Total: 4, Dropped: 1}, {Processed: 2, Total: 4, Dropped: 2}}, log)
	assert.Len(t, records, 4, "input is untouched")
}

func TestRunStagesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewBaseAnalyzer(Deps{}, "test")
	_, err := a.RunStages(ctx, 1, nil, Stage{Name: "noop", Run: func(r []models.PointRecord) []models.PointRecord { return r }})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSchema(t *testing.T) {
	schema := Schema([]MetricPolicy{
		Mean(models.MetricSpeed),
		Histogram(models.MetricOvertakingDistance, []float64{0, 100}, nil),
	})
	assert.Equal(t, "number", schema[models.AverageColumn(models.MetricSpeed)])
	assert.Equal(t, "string", schema[models.ColumnOvertakingHistogram])
	assert.Equal(t, "integer", schema[models.ColumnNumberOfBoxes])
	assert.Equal(t, "mean", AggregateMean.String())
}
