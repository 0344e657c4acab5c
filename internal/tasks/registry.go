// File: internal/tasks/registry.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/auth"
)

// Registry is the in-memory index of tasks. Terminal tasks are retained
// for a bounded window so callers can poll their outcome, then swept.
type Registry struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	retention time.Duration
	logger    *zap.Logger
}

// NewRegistry creates a Registry keeping finished tasks for the given
// retention window.
func NewRegistry(retention time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		tasks:     make(map[string]*Task),
		retention: retention,
		logger:    logger.Named("tasks"),
	}
}

// Create registers a new pending task bound to the given cancel function.
func (r *Registry) Create(businessID string, cancel context.CancelFunc) *Task {
	t := newTask(businessID, cancel)
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()
	r.logger.Info("Task created", zap.String("task_id", t.ID), zap.String("business_id", businessID))
	return t
}

// Get returns a snapshot of the task. The copy never exposes the cancel
// function or races with status transitions.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	snapshot := *t
	snapshot.cancel = nil
	return snapshot, true
}

// MarkRunning transitions a pending task to running.
func (r *Registry) MarkRunning(id string) {
	r.transition(id, func(t *Task) {
		if !t.Status.terminal() {
			t.Status = StatusRunning
		}
	})
}

// Complete stores the attempt result and the matching terminal status.
func (r *Registry) Complete(id string, result auth.Result) {
	r.transition(id, func(t *Task) {
		if t.Status.terminal() {
			return
		}
		res := result
		t.Result = &res
		if result.Success {
			t.Status = StatusCompleted
		} else {
			t.Status = StatusFailed
		}
	})
}

// Terminate cancels a running task. Returns false when the task is
// unknown or already terminal.
func (r *Registry) Terminate(id string) bool {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok || t.Status.terminal() {
		r.mu.Unlock()
		return false
	}
	t.Status = StatusTerminated
	t.UpdatedAt = time.Now().UTC()
	cancel := t.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.logger.Info("Task terminated", zap.String("task_id", id))
	return true
}

// Cleanup removes terminal tasks whose last update is older than the
// retention window. Returns the number removed.
func (r *Registry) Cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, t := range r.tasks {
		if t.Status.terminal() && now.Sub(t.UpdatedAt) > r.retention {
			delete(r.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("Swept finished tasks", zap.Int("removed", removed))
	}
	return removed
}

// StartJanitor sweeps expired tasks periodically until the context ends.
func (r *Registry) StartJanitor(ctx context.Context) {
	interval := r.retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Cleanup(now)
			}
		}
	}()
}

func (r *Registry) transition(id string, mutate func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return
	}
	mutate(t)
	t.UpdatedAt = time.Now().UTC()
}
