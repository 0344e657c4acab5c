// File: internal/store/store.go

// Package store persists attempt outcomes to PostgreSQL: the per-business
// authentication status and the browser task audit log.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool surface the store uses, allowing the
// pool to be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL persistence layer.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// UpdateGoogleAuthStatus records the business entity's authentication
// state. An empty email leaves the stored email untouched.
func (s *Store) UpdateGoogleAuthStatus(ctx context.Context, businessID, status, email string) error {
	const query = `
		UPDATE businesses
		SET google_auth_status = $2,
		    google_auth_email = COALESCE(NULLIF($3, ''), google_auth_email),
		    google_auth_updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, businessID, status, email)
	if err != nil {
		return fmt.Errorf("failed to update google auth status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Warn("No business row matched auth status update", zap.String("business_id", businessID))
	}
	return nil
}

// LogBrowserTask inserts the audit record for a newly submitted task.
func (s *Store) LogBrowserTask(ctx context.Context, taskID, businessID, taskType string) error {
	const query = `
		INSERT INTO browser_tasks (id, business_id, task_type, status, created_at)
		VALUES ($1, $2, $3, 'pending', now())`

	if _, err := s.pool.Exec(ctx, query, taskID, businessID, taskType); err != nil {
		return fmt.Errorf("failed to log browser task: %w", err)
	}
	return nil
}

// UpdateBrowserTaskStatus advances a task's audit record.
func (s *Store) UpdateBrowserTaskStatus(ctx context.Context, taskID, status, message string) error {
	const query = `
		UPDATE browser_tasks
		SET status = $2, message = $3, updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, taskID, status, message)
	if err != nil {
		return fmt.Errorf("failed to update browser task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Warn("No task row matched status update", zap.String("task_id", taskID))
	}
	return nil
}
