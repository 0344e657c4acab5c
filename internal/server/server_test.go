// File: internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/auth"
	"github.com/socialgenius/loginforge/internal/config"
	"github.com/socialgenius/loginforge/internal/diagnostics"
	"github.com/socialgenius/loginforge/internal/humanoid"
	"github.com/socialgenius/loginforge/internal/identity"
	"github.com/socialgenius/loginforge/internal/tasks"
)

// challengePage terminates every attempt at the first challenge check, so
// API tests finish fast without a browser.
type challengePage struct {
	block <-chan struct{}
}

func (p *challengePage) Close() {}

func (p *challengePage) Navigate(ctx context.Context, url string) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
func (p *challengePage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return nil
}
func (p *challengePage) URL(ctx context.Context) (string, error) {
	return "https://accounts.google.com/ServiceLogin", nil
}
func (p *challengePage) Title(ctx context.Context) (string, error) { return "", nil }
func (p *challengePage) Text(ctx context.Context) (string, error) {
	return "We detected unusual activity", nil
}
func (p *challengePage) Visible(ctx context.Context, selector string) (bool, error) {
	return false, nil
}
func (p *challengePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return errors.New("not visible")
}
func (p *challengePage) ButtonTexts(ctx context.Context) ([]auth.LabeledElement, error) {
	return nil, nil
}
func (p *challengePage) ScanInputs(ctx context.Context) ([]auth.InputField, error) { return nil, nil }
func (p *challengePage) ClearField(ctx context.Context, selector string) error     { return nil }
func (p *challengePage) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, errors.New("no screenshots")
}

type nullExecutor struct{}

func (nullExecutor) Sleep(ctx context.Context, d time.Duration) error        { return ctx.Err() }
func (nullExecutor) MouseMove(ctx context.Context, x, y float64) error       { return nil }
func (nullExecutor) MousePress(ctx context.Context, x, y float64) error      { return nil }
func (nullExecutor) MouseRelease(ctx context.Context, x, y float64) error    { return nil }
func (nullExecutor) SendKeys(ctx context.Context, keys string) error         { return nil }
func (nullExecutor) ClickElement(ctx context.Context, selector string) error { return nil }
func (nullExecutor) ElementCenter(ctx context.Context, selector string) (humanoid.Vector2D, bool, error) {
	return humanoid.Vector2D{}, false, nil
}
func (nullExecutor) ViewportSize(ctx context.Context) (float64, float64, error) {
	return 1280, 800, nil
}
func (nullExecutor) ScrollBy(ctx context.Context, dy float64) error { return nil }
func (nullExecutor) RandomHoverTarget(ctx context.Context) (string, bool, error) {
	return "", false, nil
}

func newTestServer(t *testing.T, block <-chan struct{}, recorder *diagnostics.Recorder) (*Server, *tasks.Registry) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	registry := tasks.NewRegistry(cfg.Server.TaskRetention, zap.NewNop())
	factory := func(ctx context.Context, id identity.Identity) (tasks.AttemptSession, humanoid.Executor, error) {
		return &challengePage{block: block}, nullExecutor{}, nil
	}
	runner := tasks.NewRunner(cfg, registry, factory, recorder, nil, zap.NewNop())
	return New(cfg.Server, runner, registry, recorder, zap.NewNop()), registry
}

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestSubmitAndPollTask(t *testing.T) {
	srv, registry := newTestServer(t, nil, nil)

	w := postJSON(t, srv, "/v1/google-auth",
		`{"business_id": "biz-1", "email": "owner@example.com", "password": "pw"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp googleAuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TaskID)

	require.Eventually(t, func() bool {
		got, ok := registry.Get(resp.TaskID)
		return ok && got.Result != nil
	}, 5*time.Second, 10*time.Millisecond)

	poll := get(t, srv, "/v1/task/"+resp.TaskID)
	require.Equal(t, http.StatusOK, poll.Code)

	var task tasks.Task
	require.NoError(t, json.Unmarshal(poll.Body.Bytes(), &task))
	assert.Equal(t, tasks.StatusFailed, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, auth.CodeSecurityChallenge, task.Result.Code)
}

func TestSubmitValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing business id", `{"email": "a@b.c", "password": "pw"}`},
		{"missing email", `{"business_id": "biz", "password": "pw"}`},
		{"missing password", `{"business_id": "biz", "email": "a@b.c"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, srv, "/v1/google-auth", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTaskStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	w := get(t, srv, "/v1/task/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTerminateRunningTask(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	srv, registry := newTestServer(t, block, nil)

	w := postJSON(t, srv, "/v1/google-auth",
		`{"business_id": "biz-1", "email": "owner@example.com", "password": "pw"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp googleAuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	term := postJSON(t, srv, "/v1/terminate/"+resp.TaskID, "")
	require.Equal(t, http.StatusOK, term.Code)

	got, ok := registry.Get(resp.TaskID)
	require.True(t, ok)
	assert.Equal(t, tasks.StatusTerminated, got.Status)

	// Already terminal now.
	again := postJSON(t, srv, "/v1/terminate/"+resp.TaskID, "")
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestScreenshotEndpoints(t *testing.T) {
	recorder := diagnostics.NewRecorder(t.TempDir(), zap.NewNop())
	srv, _ := newTestServer(t, nil, recorder)

	// Empty attempt lists cleanly.
	w := get(t, srv, "/v1/screenshot/biz-1/task-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"screenshots":[]`)

	written := recorder.Capture(context.Background(), staticShot("png-bytes"), "biz-1/task-1", "step")
	require.NotEmpty(t, written)

	w = get(t, srv, "/v1/screenshot/biz-1/task-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "step")

	var listing struct {
		Screenshots []string `json:"screenshots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Screenshots, 1)

	file := get(t, srv, "/v1/screenshot/biz-1/task-1/"+listing.Screenshots[0])
	require.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "png-bytes", file.Body.String())

	missing := get(t, srv, "/v1/screenshot/biz-1/task-1/other.png")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

// staticShot adapts fixed bytes to the screenshot interface.
type staticShot string

func (s staticShot) Screenshot(ctx context.Context) ([]byte, error) { return []byte(s), nil }

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	w := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
