// File: internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	s, err := New(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	return s, mock
}

func TestNewFailsWhenPingFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	_, err = New(context.Background(), mock, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}

func TestUpdateGoogleAuthStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE businesses")).
		WithArgs("biz-1", "authenticated", "owner@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateGoogleAuthStatus(context.Background(), "biz-1", "authenticated", "owner@example.com")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGoogleAuthStatusNoRowsIsNotAnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE businesses")).
		WithArgs("missing", "failed", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateGoogleAuthStatus(context.Background(), "missing", "failed", "")
	assert.NoError(t, err)
}

func TestUpdateGoogleAuthStatusQueryFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE businesses")).
		WithArgs("biz-1", "failed", "").
		WillReturnError(errors.New("relation does not exist"))

	err := s.UpdateGoogleAuthStatus(context.Background(), "biz-1", "failed", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google auth status")
}

func TestLogBrowserTask(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO browser_tasks")).
		WithArgs("task-1", "biz-1", "google_auth").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.LogBrowserTask(context.Background(), "task-1", "biz-1", "google_auth")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBrowserTaskStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE browser_tasks")).
		WithArgs("task-1", "completed", "signed in").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateBrowserTaskStatus(context.Background(), "task-1", "completed", "signed in")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
