package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// Stage is one step of record preprocessing. Stages return new slices and
// never modify the records they receive.
type Stage struct {
	Name string
	Run  func([]models.PointRecord) []models.PointRecord
}

// RunStages feeds records through stages in order, logging how many each
// one drops, and reports progress after every stage.
func (a *BaseAnalyzer) RunStages(ctx context.Context, taskID int64, records []models.PointRecord, stages ...Stage) ([]models.PointRecord, error) {
	total := len(records)
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		before := len(records)
		records = s.Run(records)
		if dropped := before - len(records); dropped > 0 {
			a.Logger.Debug("stage dropped records",
				zap.String("stage", s.Name),
				zap.Int("dropped", dropped),
				zap.Int("remaining", len(records)),
			)
		}

		a.ReportProgress(ctx, taskID, Progress{
			Processed: len(records),
			Total:     total,
			Dropped:   total - len(records),
		})
	}
	return records, nil
}
