// File: internal/tasks/task.go

// Package tasks tracks login attempts as addressable tasks: creation,
// status transitions, termination and eventual cleanup, plus the runner
// that executes an attempt end to end with guaranteed session release.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/socialgenius/loginforge/internal/auth"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

// terminal reports whether a status can no longer change.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTerminated
}

// Task is one tracked login attempt. Result is nil until the task reaches
// a terminal status.
type Task struct {
	ID         string       `json:"task_id"`
	BusinessID string       `json:"business_id"`
	Status     Status       `json:"status"`
	Result     *auth.Result `json:"result,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`

	cancel context.CancelFunc
}

// AttemptDir is the per-attempt artifact directory component.
func (t *Task) AttemptDir() string {
	return t.BusinessID + "/" + t.ID
}

func newTask(businessID string, cancel context.CancelFunc) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		cancel:     cancel,
	}
}
