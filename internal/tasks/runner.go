// File: internal/tasks/runner.go
package tasks

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/socialgenius/loginforge/internal/auth"
	"github.com/socialgenius/loginforge/internal/browser"
	"github.com/socialgenius/loginforge/internal/config"
	"github.com/socialgenius/loginforge/internal/diagnostics"
	"github.com/socialgenius/loginforge/internal/humanoid"
	"github.com/socialgenius/loginforge/internal/identity"
	"github.com/socialgenius/loginforge/internal/observability"
)

// AttemptSession is the session surface the runner needs: the page the
// orchestrator drives, plus teardown.
type AttemptSession interface {
	auth.Page
	Close()
}

// AttemptFactory builds a fresh session and its input executor for one
// identity. The production factory wraps the browser builder; tests
// substitute fakes.
type AttemptFactory func(ctx context.Context, id identity.Identity) (AttemptSession, humanoid.Executor, error)

// Store is the persistence surface the runner reports outcomes to. All
// calls are best effort; persistence failure never changes the attempt
// result.
type Store interface {
	UpdateGoogleAuthStatus(ctx context.Context, businessID, status, email string) error
	LogBrowserTask(ctx context.Context, taskID, businessID, taskType string) error
	UpdateBrowserTaskStatus(ctx context.Context, taskID, status, message string) error
}

// Runner executes login attempts: one forged identity, one session, one
// orchestrator pass, with the session released on every exit path and the
// outcome recorded in the registry and the store. A weighted semaphore
// caps concurrent attempts.
type Runner struct {
	cfg      *config.Config
	registry *Registry
	factory  AttemptFactory
	forge    *identity.Forge
	recorder *diagnostics.Recorder
	store    Store
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// NewRunner wires a Runner. store may be nil when persistence is
// disabled.
func NewRunner(cfg *config.Config, registry *Registry, factory AttemptFactory, recorder *diagnostics.Recorder, store Store, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		registry: registry,
		factory:  factory,
		forge:    identity.NewForge(nil),
		recorder: recorder,
		store:    store,
		sem:      semaphore.NewWeighted(cfg.Server.MaxConcurrentAttempts),
		logger:   logger.Named("runner"),
	}
}

// BrowserFactory adapts the production browser builder to the runner.
func BrowserFactory(builder *browser.Builder) AttemptFactory {
	return func(ctx context.Context, id identity.Identity) (AttemptSession, humanoid.Executor, error) {
		session, err := builder.Build(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return session, browser.NewCDPExecutor(session), nil
	}
}

// Submit registers a task and starts its attempt in the background. The
// returned task is the caller's polling handle.
func (r *Runner) Submit(businessID string, creds auth.Credentials) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	task := r.registry.Create(businessID, cancel)

	if r.store != nil {
		if err := r.store.LogBrowserTask(context.Background(), task.ID, businessID, "google_auth"); err != nil {
			r.logger.Warn("Failed to log task", zap.String("task_id", task.ID), zap.Error(err))
		}
	}

	go func() {
		defer cancel()
		r.Run(ctx, task, creds)
	}()
	return task
}

// Run executes one attempt synchronously and returns its result. The
// session, when one was created, is closed exactly once regardless of how
// the attempt ends.
func (r *Runner) Run(ctx context.Context, task *Task, creds auth.Credentials) auth.Result {
	logger := r.logger.With(
		zap.String("task_id", task.ID),
		zap.String("business_id", task.BusinessID),
		zap.String("email", observability.MaskEmail(creds.Email)))

	if err := r.sem.Acquire(ctx, 1); err != nil {
		result := auth.Fail(auth.CodeAuthError, "attempt cancelled while waiting for a slot")
		r.finish(task, result, creds.Email, logger)
		return result
	}
	defer r.sem.Release(1)

	r.registry.MarkRunning(task.ID)
	logger.Info("Attempt started")

	result := r.attempt(ctx, task, creds, logger)
	r.finish(task, result, creds.Email, logger)
	return result
}

// attempt owns the session lifecycle for one pass of the state machine.
func (r *Runner) attempt(ctx context.Context, task *Task, creds auth.Credentials, logger *zap.Logger) auth.Result {
	id := r.forge.Forge()
	session, exec, err := r.factory(ctx, id)
	if err != nil {
		logger.Error("Session construction failed", zap.Error(err))
		return auth.Fail(auth.CodeAuthError, fmt.Sprintf("failed to build browser session: %v", err))
	}
	defer session.Close()

	sim := humanoid.NewSimulator(r.cfg.Humanoid, exec, logger, rand.New(rand.NewSource(rand.Int63())))
	orch := auth.NewOrchestrator(r.cfg.Auth, session, sim, r.recorder, task.AttemptDir(), logger)
	return orch.Authenticate(ctx, creds)
}

// finish records the outcome in the registry and, best effort, the store.
func (r *Runner) finish(task *Task, result auth.Result, email string, logger *zap.Logger) {
	r.registry.Complete(task.ID, result)

	logger.Info("Attempt finished",
		zap.Bool("success", result.Success),
		zap.String("error_code", string(result.Code)))

	if r.store == nil {
		return
	}
	ctx := context.Background()

	authStatus := "failed"
	if result.Success {
		authStatus = "authenticated"
	}
	if err := r.store.UpdateGoogleAuthStatus(ctx, task.BusinessID, authStatus, email); err != nil {
		logger.Warn("Failed to persist auth status", zap.Error(err))
	}

	taskStatus := string(StatusFailed)
	if result.Success {
		taskStatus = string(StatusCompleted)
	}
	if err := r.store.UpdateBrowserTaskStatus(ctx, task.ID, taskStatus, result.Message); err != nil {
		logger.Warn("Failed to persist task status", zap.Error(err))
	}
}
