package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/repository"
	"github.com/atrai/atrai-backend-go/internal/source"
)

// ErrInvalidRequest wraps process request validation failures.
var ErrInvalidRequest = errors.New("invalid process request")

// AnalysisTaskService runs registered analyzers as tracked tasks
type AnalysisTaskService struct {
	repo   *repository.AnalysisTaskRepository
	deps   analysis.Deps
	logger *zap.Logger

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
	wg      sync.WaitGroup
}

// NewAnalysisTaskService creates a new analysis task service. The task
// repository doubles as the progress reporter of every analyzer run.
func NewAnalysisTaskService(repo *repository.AnalysisTaskRepository, deps analysis.Deps, logger *zap.Logger) *AnalysisTaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Progress = repo
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &AnalysisTaskService{
		repo:    repo,
		deps:    deps,
		logger:  logger.With(zap.String("component", "tasks")),
		cancels: make(map[int64]context.CancelFunc),
	}
}

// BuildRequest validates a process request. Either a campaign or box ids
// must be given, box ids winning; t_start and t_end are optional but must
// be ordered when both are set.
func BuildRequest(req models.ProcessRequest) (analysis.Request, error) {
	out := analysis.Request{CreateCollection: req.ColCreate}

	switch {
	case len(req.BoxIDs) > 0:
		out.Filter.BoxIDs = req.BoxIDs
	case req.Campaign != "":
		out.Filter.Campaign = req.Campaign
	default:
		return out, fmt.Errorf("%w: campaign or boxId is required", ErrInvalidRequest)
	}

	if req.TStart != "" {
		t, err := source.ParseTime(req.TStart)
		if err != nil {
			return out, fmt.Errorf("%w: t_start: %v", ErrInvalidRequest, err)
		}
		out.Filter.Start = &t
	}
	if req.TEnd != "" {
		t, err := source.ParseTime(req.TEnd)
		if err != nil {
			return out, fmt.Errorf("%w: t_end: %v", ErrInvalidRequest, err)
		}
		out.Filter.End = &t
	}
	if out.Filter.Start != nil && out.Filter.End != nil && !out.Filter.Start.Before(*out.Filter.End) {
		return out, fmt.Errorf("%w: t_start %s is not before t_end %s", ErrInvalidRequest, req.TStart, req.TEnd)
	}

	if req.MaxDiameter != nil {
		if *req.MaxDiameter <= 0 {
			return out, fmt.Errorf("%w: maxDiameter must be positive", ErrInvalidRequest)
		}
		out.StopMaxDiameterMeters = *req.MaxDiameter
	}
	if req.MinDuration != nil {
		if *req.MinDuration <= 0 {
			return out, fmt.Errorf("%w: minDuration must be positive", ErrInvalidRequest)
		}
		out.StopMinDurationMinutes = *req.MinDuration
	}
	return out, nil
}

// CreateTask validates the request, stores a pending task and runs it in
// the background.
func (s *AnalysisTaskService) CreateTask(ctx context.Context, name string, req models.ProcessRequest, createdBy string) (*models.AnalysisTask, error) {
	task, request, err := s.prepare(ctx, name, req, createdBy)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.track(task.ID, cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.untrack(task.ID)
		s.run(runCtx, task, name, request)
	}()

	return task, nil
}

// Execute validates the request and runs the task to completion. The
// returned task carries the final status; a failed run is not an error.
func (s *AnalysisTaskService) Execute(ctx context.Context, name string, req models.ProcessRequest, createdBy string) (*models.AnalysisTask, error) {
	task, request, err := s.prepare(ctx, name, req, createdBy)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.track(task.ID, cancel)
	defer s.untrack(task.ID)
	s.run(runCtx, task, name, request)

	return s.repo.GetByID(context.WithoutCancel(ctx), task.ID)
}

// Wait blocks until every background run has finished.
func (s *AnalysisTaskService) Wait() {
	s.wg.Wait()
}

func (s *AnalysisTaskService) prepare(ctx context.Context, name string, req models.ProcessRequest, createdBy string) (*models.AnalysisTask, analysis.Request, error) {
	if _, ok := analysis.AnalyzerRegistry[name]; !ok {
		return nil, analysis.Request{}, fmt.Errorf("%w: %s", analysis.ErrUnknownAnalyzer, name)
	}
	request, err := BuildRequest(req)
	if err != nil {
		return nil, request, err
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, request, fmt.Errorf("failed to serialize params: %w", err)
	}

	task := &models.AnalysisTask{
		RunID:        uuid.NewString(),
		AnalyzerName: name,
		Campaign:     request.OutputKey(),
		Status:       models.TaskStatusPending,
		ParamsJSON:   string(params),
		CreatedBy:    createdBy,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, request, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created",
		zap.Int64("task_id", task.ID),
		zap.String("run_id", task.RunID),
		zap.String("analyzer", name),
		zap.String("key", task.Campaign),
	)
	return task, request, nil
}

// run drives one task through its lifecycle. Store failures are logged;
// the analyzer error becomes the task's error message.
func (s *AnalysisTaskService) run(ctx context.Context, task *models.AnalysisTask, name string, request analysis.Request) {
	// status writes must land even after the run was cancelled
	store := context.WithoutCancel(ctx)
	logger := s.logger.With(zap.Int64("task_id", task.ID), zap.String("analyzer", name))

	if ctx.Err() != nil {
		return
	}
	machine := NewTaskMachine(task.Status)
	if _, err := machine.Fire(store, EventStart); err != nil {
		logger.Error("task cannot start", zap.Error(err))
		return
	}
	if err := s.repo.MarkAsRunning(store, task.ID); err != nil {
		// cancelled before it started
		logger.Warn("task not started", zap.Error(err))
		return
	}

	started := time.Now()
	result, err := s.analyze(ctx, task.ID, name, request)

	if ctx.Err() != nil {
		s.abandon(store, task.ID)
		logger.Info("task cancelled")
		return
	}
	if err != nil {
		logger.Warn("task failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		if _, ferr := machine.Fire(store, EventFail); ferr != nil {
			logger.Error("task cannot fail", zap.Error(ferr))
			return
		}
		s.finish(logger, s.repo.MarkAsFailed(store, task.ID, err.Error()))
		return
	}

	summary := result.Summary
	if summary == nil {
		summary = map[string]any{}
	}
	summary["rows"] = result.Rows
	payload, err := json.Marshal(summary)
	if err != nil {
		payload = []byte(`{}`)
	}

	if _, err := machine.Fire(store, EventComplete); err != nil {
		logger.Error("task cannot complete", zap.Error(err))
		return
	}
	if !s.finish(logger, s.repo.MarkAsCompleted(store, task.ID, string(payload))) {
		return
	}
	logger.Info("task completed", zap.Int("rows", result.Rows), zap.Duration("elapsed", time.Since(started)))
}

// finish logs the outcome of a final status write and reports whether it
// landed. A stale status means CancelTask got there first; its outcome
// stands and the run's result is dropped.
func (s *AnalysisTaskService) finish(logger *zap.Logger, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, repository.ErrStaleStatus):
		logger.Info("task already finished, result discarded", zap.Error(err))
	default:
		logger.Error("failed to store task status", zap.Error(err))
	}
	return false
}

// abandon fails a cancelled run unless CancelTask already did.
func (s *AnalysisTaskService) abandon(ctx context.Context, id int64) {
	err := s.repo.MarkAsFailed(ctx, id, "task cancelled")
	if err != nil && !errors.Is(err, repository.ErrStaleStatus) {
		s.logger.Error("failed to mark task as failed", zap.Int64("task_id", id), zap.Error(err))
	}
}

func (s *AnalysisTaskService) analyze(ctx context.Context, taskID int64, name string, request analysis.Request) (result *analysis.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("analyzer %s panicked: %v", name, p)
		}
	}()

	analyzer, err := analysis.GetAnalyzer(name, s.deps)
	if err != nil {
		return nil, err
	}
	return analyzer.Analyze(ctx, taskID, request)
}

func (s *AnalysisTaskService) track(id int64, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *AnalysisTaskService) untrack(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}

// GetTask retrieves a task by ID
func (s *AnalysisTaskService) GetTask(ctx context.Context, id int64) (*models.AnalysisTask, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTaskByRunID retrieves a task by the run id handed to the caller
func (s *AnalysisTaskService) GetTaskByRunID(ctx context.Context, runID string) (*models.AnalysisTask, error) {
	return s.repo.GetByRunID(ctx, runID)
}

// ListTasks retrieves tasks with optional filters
func (s *AnalysisTaskService) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.AnalysisTask, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// CancelTask fails a pending or running task and stops its run.
func (s *AnalysisTaskService) CancelTask(ctx context.Context, id int64) (*models.AnalysisTask, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := NewTaskMachine(task.Status).Fire(ctx, EventCancel); err != nil {
		return nil, err
	}
	if err := s.repo.MarkAsFailed(ctx, id, "task cancelled"); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// finished between the read and the write
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}

	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
	}
	s.mu.Unlock()

	s.logger.Info("task cancelled", zap.Int64("task_id", id))
	return s.repo.GetByID(ctx, id)
}
