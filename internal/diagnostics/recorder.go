// File: internal/diagnostics/recorder.go

// Package diagnostics captures audit artifacts for login attempts:
// timestamped screenshots and an append-only trace of named checkpoints.
// Nothing here is allowed to abort an attempt; failures are logged and
// swallowed.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Screenshotter is the slice of the page surface the recorder needs.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Recorder writes screenshot artifacts beneath a base directory, one
// subdirectory per attempt. The directory tree is created lazily so a
// recorder constructed for a read-only environment costs nothing until the
// first capture.
type Recorder struct {
	baseDir string
	logger  *zap.Logger
}

// NewRecorder creates a Recorder rooted at baseDir. An empty baseDir
// disables capture entirely; every call becomes a logged no-op.
func NewRecorder(baseDir string, logger *zap.Logger) *Recorder {
	return &Recorder{baseDir: baseDir, logger: logger.Named("diagnostics")}
}

// Capture grabs a screenshot from src and writes it under the attempt's
// directory as <timestamp>_<label>.png. It returns the written path, or ""
// when capture was skipped or failed. It never returns an error.
func (r *Recorder) Capture(ctx context.Context, src Screenshotter, attemptDir, label string) string {
	if r == nil || r.baseDir == "" || src == nil {
		return ""
	}

	data, err := src.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Screenshot capture failed", zap.String("label", label), zap.Error(err))
		return ""
	}

	dir := filepath.Join(r.baseDir, sanitize(attemptDir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Warn("Failed to create screenshot directory", zap.String("dir", dir), zap.Error(err))
		return ""
	}

	name := fmt.Sprintf("%s_%s.png", time.Now().UTC().Format("20060102T150405.000"), sanitize(label))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Warn("Failed to write screenshot", zap.String("path", path), zap.Error(err))
		return ""
	}

	r.logger.Debug("Captured screenshot", zap.String("label", label), zap.String("path", path))
	return path
}

// List returns the artifact filenames recorded for an attempt, sorted by
// name (which sorts by capture time given the timestamp prefix).
func (r *Recorder) List(attemptDir string) ([]string, error) {
	if r == nil || r.baseDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(filepath.Join(r.baseDir, sanitize(attemptDir)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("diagnostics: failed to list artifacts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path resolves an artifact filename within an attempt's directory,
// refusing anything that would escape the base directory.
func (r *Recorder) Path(attemptDir, name string) (string, error) {
	if r == nil || r.baseDir == "" {
		return "", fmt.Errorf("diagnostics: capture is disabled")
	}
	clean := filepath.Base(name)
	if clean != name || clean == "." || clean == ".." {
		return "", fmt.Errorf("diagnostics: invalid artifact name %q", name)
	}
	path := filepath.Join(r.baseDir, sanitize(attemptDir), clean)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("diagnostics: artifact not found: %w", err)
	}
	return path, nil
}

// BaseDir exposes the configured root, used by the HTTP layer to serve
// artifacts.
func (r *Recorder) BaseDir() string {
	if r == nil {
		return ""
	}
	return r.baseDir
}

// sanitize strips path separators and other awkward characters from a
// label or directory component so it is always safe to join.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == '/' || r == '\\' || r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
