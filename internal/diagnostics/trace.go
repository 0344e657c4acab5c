// File: internal/diagnostics/trace.go
package diagnostics

import (
	"strings"
	"sync"
	"time"
)

// Checkpoint is one named step in an attempt's trace, optionally tied to a
// captured artifact.
type Checkpoint struct {
	Label        string    `json:"label"`
	At           time.Time `json:"at"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
}

// Trace is an ordered, append-only record of the checkpoints an attempt
// passed through. It exists purely for audit; control flow never reads it.
type Trace struct {
	mu          sync.Mutex
	checkpoints []Checkpoint
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Mark appends a checkpoint. artifactPath may be empty.
func (t *Trace) Mark(label, artifactPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkpoints = append(t.checkpoints, Checkpoint{
		Label:        label,
		At:           time.Now().UTC(),
		ArtifactPath: artifactPath,
	})
}

// Checkpoints returns a copy of the recorded checkpoints in order.
func (t *Trace) Checkpoints() []Checkpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Checkpoint, len(t.checkpoints))
	copy(out, t.checkpoints)
	return out
}

// Summary renders the checkpoint labels as a single arrow-free path
// string, useful in log lines.
func (t *Trace) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	labels := make([]string, len(t.checkpoints))
	for i, c := range t.checkpoints {
		labels[i] = c.Label
	}
	return strings.Join(labels, " > ")
}
