// File: internal/humanoid/humanoid.go

// Package humanoid generates human-like browser input: curved pointer
// trajectories, imperfect typing cadence, and ambient "browsing" behavior.
// Provider-side risk engines score the velocity and linearity of pointer
// motion and the uniformity of keystroke timing; naturalistic variance is
// camouflage, never a correctness requirement.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/config"
)

// Executor is the narrow browser surface the simulator drives. The concrete
// implementation lives next to the session (CDP); tests supply a recorder.
type Executor interface {
	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error

	// MouseMove, MousePress and MouseRelease dispatch raw pointer events.
	MouseMove(ctx context.Context, x, y float64) error
	MousePress(ctx context.Context, x, y float64) error
	MouseRelease(ctx context.Context, x, y float64) error

	// SendKeys delivers keys to the currently focused element. The
	// backspace control character ("\b") deletes the previous character.
	SendKeys(ctx context.Context, keys string) error

	// ElementCenter returns the center of the first visible element
	// matching the selector. ok is false when the element exists but has
	// no usable bounding box.
	ElementCenter(ctx context.Context, selector string) (center Vector2D, ok bool, err error)

	// ClickElement performs a DOM-level click, used as the fallback when
	// pointer-path clicking is impossible.
	ClickElement(ctx context.Context, selector string) error

	// ViewportSize reports the current layout viewport.
	ViewportSize(ctx context.Context) (width, height float64, err error)

	// ScrollBy scrolls the page vertically by dy CSS pixels.
	ScrollBy(ctx context.Context, dy float64) error

	// RandomHoverTarget returns a selector for an arbitrary interactive or
	// text element, used by ambient exploration. ok is false when the page
	// offers nothing to hover.
	RandomHoverTarget(ctx context.Context) (selector string, ok bool, err error)
}

// Simulator produces human-like interactions through an Executor. One
// Simulator serves one session; it tracks the virtual pointer position
// between calls so consecutive movements chain naturally.
type Simulator struct {
	cfg      config.HumanoidConfig
	exec     Executor
	logger   *zap.Logger
	rng      *rand.Rand
	noiseX   *perlin.Perlin
	noiseY   *perlin.Perlin
	mu       sync.Mutex
	pos      Vector2D
	noiseOff float64
}

// NewSimulator creates a Simulator. A nil rng gets a time-seeded source.
func NewSimulator(cfg config.HumanoidConfig, exec Executor, logger *zap.Logger, rng *rand.Rand) *Simulator {
	seed := time.Now().UnixNano()
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}
	return &Simulator{
		cfg:    cfg,
		exec:   exec,
		logger: logger.Named("humanoid"),
		rng:    rng,
		noiseX: perlin.NewPerlin(2.0, 2.0, 3, seed),
		noiseY: perlin.NewPerlin(2.0, 2.0, 3, seed+1),
		// Start somewhere unremarkable rather than (0,0).
		pos: Vector2D{X: 120 + rand.New(rand.NewSource(seed)).Float64()*200, Y: 150 + rand.New(rand.NewSource(seed+2)).Float64()*200},
	}
}

// Position returns the simulator's current virtual pointer position.
func (s *Simulator) Position() Vector2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Pause sleeps for a jittered duration between min and max.
func (s *Simulator) Pause(ctx context.Context, min, max time.Duration) error {
	if max <= min {
		return s.exec.Sleep(ctx, min)
	}
	s.mu.Lock()
	d := min + time.Duration(s.rng.Int63n(int64(max-min)))
	s.mu.Unlock()
	return s.exec.Sleep(ctx, d)
}

// randFloat returns a uniform float in [0,1) under the simulator lock.
func (s *Simulator) randFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// randIntn returns a uniform int in [0,n) under the simulator lock.
func (s *Simulator) randIntn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
