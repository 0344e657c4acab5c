// File: internal/diagnostics/diagnostics_test.go
package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScreenshotter struct {
	data []byte
	err  error
}

func (f *fakeScreenshotter) Screenshot(ctx context.Context) ([]byte, error) {
	return f.data, f.err
}

func TestCaptureWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, zap.NewNop())

	src := &fakeScreenshotter{data: []byte("png-bytes")}
	path := rec.Capture(context.Background(), src, "biz-1/task-1", "before_email")
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Contains(t, filepath.Base(path), "before_email")
}

func TestCaptureNeverErrors(t *testing.T) {
	rec := NewRecorder(t.TempDir(), zap.NewNop())

	// Screenshot failure.
	path := rec.Capture(context.Background(), &fakeScreenshotter{err: errors.New("page gone")}, "a", "x")
	assert.Empty(t, path)

	// Nil source.
	assert.Empty(t, rec.Capture(context.Background(), nil, "a", "x"))

	// Disabled recorder.
	disabled := NewRecorder("", zap.NewNop())
	assert.Empty(t, disabled.Capture(context.Background(), &fakeScreenshotter{data: []byte("x")}, "a", "x"))

	// Nil recorder.
	var nilRec *Recorder
	assert.Empty(t, nilRec.Capture(context.Background(), &fakeScreenshotter{data: []byte("x")}, "a", "x"))
}

func TestCaptureCreatesDirectoryLazily(t *testing.T) {
	base := filepath.Join(t.TempDir(), "not-yet")
	rec := NewRecorder(base, zap.NewNop())

	_, err := os.Stat(base)
	require.True(t, os.IsNotExist(err))

	path := rec.Capture(context.Background(), &fakeScreenshotter{data: []byte("x")}, "biz/task", "step")
	require.NotEmpty(t, path)
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestListReturnsSortedArtifacts(t *testing.T) {
	rec := NewRecorder(t.TempDir(), zap.NewNop())
	src := &fakeScreenshotter{data: []byte("x")}

	rec.Capture(context.Background(), src, "biz/task", "b_second")
	rec.Capture(context.Background(), src, "biz/task", "a_first")

	names, err := rec.List("biz/task")
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Less(t, names[0], names[1])
}

func TestListMissingAttemptIsEmpty(t *testing.T) {
	rec := NewRecorder(t.TempDir(), zap.NewNop())
	names, err := rec.List("never/happened")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPathRejectsTraversal(t *testing.T) {
	rec := NewRecorder(t.TempDir(), zap.NewNop())
	_, err := rec.Path("biz/task", "../../etc/passwd")
	assert.Error(t, err)
	_, err = rec.Path("biz/task", "..")
	assert.Error(t, err)
}

func TestPathResolvesExistingArtifact(t *testing.T) {
	rec := NewRecorder(t.TempDir(), zap.NewNop())
	written := rec.Capture(context.Background(), &fakeScreenshotter{data: []byte("x")}, "biz/task", "step")
	require.NotEmpty(t, written)

	resolved, err := rec.Path("biz/task", filepath.Base(written))
	require.NoError(t, err)
	assert.Equal(t, written, resolved)
}

func TestTraceAppendsInOrder(t *testing.T) {
	tr := NewTrace()
	tr.Mark("before_email", "")
	tr.Mark("after_next_button", "/tmp/shot.png")

	cps := tr.Checkpoints()
	require.Len(t, cps, 2)
	assert.Equal(t, "before_email", cps[0].Label)
	assert.Equal(t, "after_next_button", cps[1].Label)
	assert.Equal(t, "/tmp/shot.png", cps[1].ArtifactPath)
	assert.False(t, cps[1].At.Before(cps[0].At))

	assert.Equal(t, "before_email > after_next_button", tr.Summary())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "biz_task", sanitize("biz/task"))
	assert.Equal(t, "a-b_c.png", sanitize("a-b_c.png"))
	assert.Equal(t, "unnamed", sanitize("!!!"))
}
