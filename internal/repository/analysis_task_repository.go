package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/models"
)

// AnalysisTaskRepository handles database operations for analysis tasks
type AnalysisTaskRepository struct {
	db *sql.DB
}

// NewAnalysisTaskRepository creates a new analysis task repository
func NewAnalysisTaskRepository(db *sql.DB) *AnalysisTaskRepository {
	return &AnalysisTaskRepository{db: db}
}

const taskColumns = `
	id, run_id, analyzer, campaign, status, progress_percent, params_json,
	total_points, processed_points, dropped_points, start_time, end_time,
	result_summary, error_message, created_by, created_at, updated_at`

// Create creates a new analysis task
func (r *AnalysisTaskRepository) Create(ctx context.Context, task *models.AnalysisTask) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_tasks (
			run_id, analyzer, campaign, status, progress_percent, params_json,
			total_points, processed_points, dropped_points, start_time, end_time,
			result_summary, error_message, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.RunID,
		task.AnalyzerName,
		task.Campaign,
		task.Status,
		task.ProgressPercent,
		task.ParamsJSON,
		task.TotalPoints,
		task.ProcessedPoints,
		task.DroppedPoints,
		task.StartTime,
		task.EndTime,
		task.ResultSummary,
		task.ErrorMessage,
		task.CreatedBy,
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	task.CreatedAt = fromMillis(toMillis(now))
	task.UpdatedAt = task.CreatedAt
	return nil
}

func scanTask(row rowScanner) (*models.AnalysisTask, error) {
	task := &models.AnalysisTask{}
	var createdAt, updatedAt int64
	err := row.Scan(
		&task.ID,
		&task.RunID,
		&task.AnalyzerName,
		&task.Campaign,
		&task.Status,
		&task.ProgressPercent,
		&task.ParamsJSON,
		&task.TotalPoints,
		&task.ProcessedPoints,
		&task.DroppedPoints,
		&task.StartTime,
		&task.EndTime,
		&task.ResultSummary,
		&task.ErrorMessage,
		&task.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)
	return task, nil
}

// GetByID retrieves an analysis task by ID
func (r *AnalysisTaskRepository) GetByID(ctx context.Context, id int64) (*models.AnalysisTask, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM analysis_tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis task: %w", err)
	}
	return task, nil
}

// GetByRunID retrieves an analysis task by its run id
func (r *AnalysisTaskRepository) GetByRunID(ctx context.Context, runID string) (*models.AnalysisTask, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM analysis_tasks WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis task %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis task: %w", err)
	}
	return task, nil
}

// List retrieves analysis tasks with optional filters, newest first
func (r *AnalysisTaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.AnalysisTask, error) {
	query := `SELECT ` + taskColumns + ` FROM analysis_tasks WHERE 1=1`

	args := []any{}
	if filter.Analyzer != "" {
		query += " AND analyzer = ?"
		args = append(args, filter.Analyzer)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.AnalysisTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateProgress records the point counts of a running task.
func (r *AnalysisTaskRepository) UpdateProgress(ctx context.Context, taskID int64, p analysis.Progress) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET total_points = ?, processed_points = ?, dropped_points = ?, updated_at = ?
		WHERE id = ?
	`, p.Total, p.Processed, p.Dropped, toMillis(time.Now()), taskID)
	if err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

// MarkAsRunning moves a pending task to running.
func (r *AnalysisTaskRepository) MarkAsRunning(ctx context.Context, id int64) error {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET status = ?, start_time = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.TaskStatusRunning, now.Unix(), toMillis(now), id, models.TaskStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark task as running: %w", err)
	}
	return expectTransition(result, id, models.TaskStatusRunning)
}

// MarkAsCompleted moves a running task to completed with result summary.
func (r *AnalysisTaskRepository) MarkAsCompleted(ctx context.Context, id int64, resultSummary string) error {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET status = ?, end_time = ?, result_summary = ?,
			progress_percent = 100, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.TaskStatusCompleted, now.Unix(), resultSummary, toMillis(now), id, models.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark task as completed: %w", err)
	}
	return expectTransition(result, id, models.TaskStatusCompleted)
}

// MarkAsFailed moves a pending or running task to failed with an error
// message. A task that already finished keeps its outcome.
func (r *AnalysisTaskRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET status = ?, end_time = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, models.TaskStatusFailed, now.Unix(), errorMessage, toMillis(now), id,
		models.TaskStatusPending, models.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark task as failed: %w", err)
	}
	return expectTransition(result, id, models.TaskStatusFailed)
}

// expectTransition turns an update that matched no row into ErrStaleStatus.
func expectTransition(result sql.Result, id int64, to string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("analysis task %d to %s: %w", id, to, ErrStaleStatus)
	}
	return nil
}
