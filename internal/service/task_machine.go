package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// Task lifecycle events
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventFail     = "fail"
	EventCancel   = "cancel"
)

// ErrInvalidTransition is returned for events the current task state does
// not allow.
var ErrInvalidTransition = errors.New("invalid task state transition")

// TaskMachine guards the status changes of one analysis task:
// pending -> running -> completed | failed, and cancel from pending or
// running to failed.
type TaskMachine struct {
	fsm *fsm.FSM
}

// NewTaskMachine creates a machine starting at status.
func NewTaskMachine(status string) *TaskMachine {
	if status == "" {
		status = models.TaskStatusPending
	}
	return &TaskMachine{
		fsm: fsm.NewFSM(
			status,
			fsm.Events{
				{Name: EventStart, Src: []string{models.TaskStatusPending}, Dst: models.TaskStatusRunning},
				{Name: EventComplete, Src: []string{models.TaskStatusRunning}, Dst: models.TaskStatusCompleted},
				{Name: EventFail, Src: []string{models.TaskStatusRunning}, Dst: models.TaskStatusFailed},
				{Name: EventCancel, Src: []string{models.TaskStatusPending, models.TaskStatusRunning}, Dst: models.TaskStatusFailed},
			},
			fsm.Callbacks{},
		),
	}
}

// Current returns the current status
func (m *TaskMachine) Current() string {
	return m.fsm.Current()
}

// Can reports whether event is allowed in the current status.
func (m *TaskMachine) Can(event string) bool {
	return m.fsm.Can(event)
}

// Fire applies event and returns the new status.
func (m *TaskMachine) Fire(ctx context.Context, event string) (string, error) {
	from := m.fsm.Current()
	if err := m.fsm.Event(ctx, event); err != nil {
		return from, fmt.Errorf("%w: %s from %s: %v", ErrInvalidTransition, event, from, err)
	}
	return m.fsm.Current(), nil
}
