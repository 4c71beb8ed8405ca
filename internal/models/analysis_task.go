package models

import "time"

// AnalysisTask represents one execution of a registered analyzer
type AnalysisTask struct {
	ID    int64  `json:"id" db:"id"`
	RunID string `json:"run_id" db:"run_id"` // uuid handed to the caller

	// Task identification
	AnalyzerName string `json:"analyzer" db:"analyzer"`
	Campaign     string `json:"campaign,omitempty" db:"campaign"`

	// Status
	Status          string `json:"status" db:"status"` // pending, running, completed, failed
	ProgressPercent int    `json:"progress_percent" db:"progress_percent"`

	// Input parameters
	ParamsJSON string `json:"params_json,omitempty" db:"params_json"`

	// Execution info
	TotalPoints     int   `json:"total_points,omitempty" db:"total_points"`
	ProcessedPoints int   `json:"processed_points" db:"processed_points"`
	DroppedPoints   int   `json:"dropped_points" db:"dropped_points"`
	StartTime       int64 `json:"start_time,omitempty" db:"start_time"` // Unix timestamp
	EndTime         int64 `json:"end_time,omitempty" db:"end_time"`     // Unix timestamp

	// Results
	ResultSummary string `json:"result_summary,omitempty" db:"result_summary"` // JSON object
	ErrorMessage  string `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskStatus constants
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// ProcessRequest is the body of a process execution call
type ProcessRequest struct {
	Campaign  string   `json:"campaign"`
	BoxIDs    []string `json:"boxId"`
	TStart    string   `json:"t_start"`
	TEnd      string   `json:"t_end"`
	ColCreate bool     `json:"col_create"`

	// traffic_stops only: meters and minutes
	MaxDiameter *float64 `json:"maxDiameter,omitempty"`
	MinDuration *float64 `json:"minDuration,omitempty"`
}
