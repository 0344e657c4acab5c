// File: internal/humanoid/movement.go
package humanoid

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// MoveTo moves the virtual pointer to the center of the element matching the
// selector along a curved, jittered path. When the element has no usable
// geometry the movement degrades to a direct jump; the caller's subsequent
// click still lands via the DOM fallback.
func (s *Simulator) MoveTo(ctx context.Context, selector string) error {
	center, ok, err := s.exec.ElementCenter(ctx, selector)
	if err != nil {
		return fmt.Errorf("humanoid: failed to locate element %q: %w", selector, err)
	}
	if !ok {
		s.logger.Debug("Element has no bounding box, skipping pointer path", zap.String("selector", selector))
		return nil
	}

	// Aim slightly off-center. Humans rarely hit the centroid.
	s.mu.Lock()
	target := center.Add(Vector2D{
		X: (s.rng.Float64() - 0.5) * 8,
		Y: (s.rng.Float64() - 0.5) * 6,
	})
	s.mu.Unlock()

	return s.MoveToPoint(ctx, target)
}

// MoveToPoint walks a cubic Bézier curve from the current pointer position
// to the target, dispatching a mouse-move per step with ease-in/ease-out
// pacing, Perlin drift and Gaussian tremor. On curve failure it falls back
// to a single direct jump.
func (s *Simulator) MoveToPoint(ctx context.Context, target Vector2D) error {
	s.mu.Lock()
	start := s.pos
	s.mu.Unlock()

	path := s.bezierPath(start, target)
	if len(path) == 0 {
		// Degenerate curve (zero distance or bad geometry): jump.
		if err := s.exec.MouseMove(ctx, target.X, target.Y); err != nil {
			return err
		}
		s.setPos(target)
		return nil
	}

	steps := len(path)
	for i, point := range path {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		perturbed := s.perturb(point, float64(i))

		// The final step must land on target, not on noise.
		if i == steps-1 {
			perturbed = target
		}

		if err := s.exec.MouseMove(ctx, perturbed.X, perturbed.Y); err != nil {
			// Mid-path dispatch failures degrade to a direct jump rather
			// than aborting the interaction.
			s.logger.Debug("Pointer path dispatch failed, jumping to target", zap.Error(err))
			if jumpErr := s.exec.MouseMove(ctx, target.X, target.Y); jumpErr != nil {
				return jumpErr
			}
			s.setPos(target)
			return nil
		}
		s.setPos(perturbed)

		if err := s.exec.Sleep(ctx, s.stepDelay(i, steps)); err != nil {
			return err
		}
	}

	s.setPos(target)
	return nil
}

// Click moves to the element, pauses as if deciding, then presses and
// releases with a jittered hold. Without geometry it clicks via the DOM.
func (s *Simulator) Click(ctx context.Context, selector string) error {
	center, ok, err := s.exec.ElementCenter(ctx, selector)
	if err != nil || !ok {
		if err != nil {
			s.logger.Debug("Geometry lookup failed, using DOM click", zap.String("selector", selector), zap.Error(err))
		}
		return s.exec.ClickElement(ctx, selector)
	}

	s.mu.Lock()
	target := center.Add(Vector2D{
		X: (s.rng.Float64() - 0.5) * 8,
		Y: (s.rng.Float64() - 0.5) * 6,
	})
	s.mu.Unlock()

	if err := s.MoveToPoint(ctx, target); err != nil {
		return err
	}

	// Decision pause before committing to the click.
	if err := s.Pause(ctx, 120*time.Millisecond, 350*time.Millisecond); err != nil {
		return err
	}

	if err := s.exec.MousePress(ctx, target.X, target.Y); err != nil {
		return s.exec.ClickElement(ctx, selector)
	}

	hold := time.Duration(s.cfg.ClickHoldMinMs) * time.Millisecond
	if s.cfg.ClickHoldMaxMs > s.cfg.ClickHoldMinMs {
		hold += time.Duration(s.randIntn(s.cfg.ClickHoldMaxMs-s.cfg.ClickHoldMinMs)) * time.Millisecond
	}
	if err := s.exec.Sleep(ctx, hold); err != nil {
		return err
	}

	return s.exec.MouseRelease(ctx, target.X, target.Y)
}

// bezierPath samples a cubic Bézier curve between start and end. The two
// control points sit a third and two thirds of the way along the straight
// line, pushed sideways by a random fraction of the distance, which is what
// produces the arc a real wrist describes.
func (s *Simulator) bezierPath(start, end Vector2D) []Vector2D {
	dist := start.Dist(end)
	if dist < 2.0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := end.Sub(start).Normalize()
	perp := dir.Perp()

	offset := dist * 0.25
	c1 := start.Add(dir.Mul(dist / 3)).Add(perp.Mul((s.rng.Float64() - 0.5) * offset))
	c2 := start.Add(dir.Mul(dist * 2 / 3)).Add(perp.Mul((s.rng.Float64() - 0.5) * offset))

	steps := s.cfg.MinSteps
	if s.cfg.MaxSteps > s.cfg.MinSteps {
		steps += s.rng.Intn(s.cfg.MaxSteps - s.cfg.MinSteps + 1)
	}
	if steps < 2 {
		steps = 2
	}

	path := make([]Vector2D, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		omt := 1 - t
		path[i] = start.Mul(omt * omt * omt).
			Add(c1.Mul(3 * omt * omt * t)).
			Add(c2.Mul(3 * omt * t * t)).
			Add(end.Mul(t * t * t))
	}
	return path
}

// stepDelay returns the per-step sleep: longer near the path's endpoints
// (acceleration and deceleration), shorter through the middle, always
// jittered.
func (s *Simulator) stepDelay(i, steps int) time.Duration {
	t := float64(i) / float64(steps-1)
	// 1.0 at the endpoints, 0.0 at the midpoint.
	endWeight := (2*t - 1) * (2*t - 1)

	s.mu.Lock()
	jitter := s.rng.Float64() * 6
	s.mu.Unlock()

	ms := 4 + jitter + endWeight*14
	return time.Duration(ms) * time.Millisecond
}

// perturb layers low-frequency Perlin drift and high-frequency Gaussian
// tremor onto a path point.
func (s *Simulator) perturb(point Vector2D, step float64) Vector2D {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.noiseOff += 0.13
	drift := Vector2D{
		X: s.noiseX.Noise1D(s.noiseOff) * s.cfg.PerlinAmplitude,
		Y: s.noiseY.Noise1D(s.noiseOff) * s.cfg.PerlinAmplitude,
	}
	tremor := Vector2D{
		X: s.rng.NormFloat64() * s.cfg.GaussianStrength,
		Y: s.rng.NormFloat64() * s.cfg.GaussianStrength,
	}
	out := point.Add(drift).Add(tremor)
	// Never a negative screen coordinate.
	out.X = math.Max(0, out.X)
	out.Y = math.Max(0, out.Y)
	return out
}

func (s *Simulator) setPos(p Vector2D) {
	s.mu.Lock()
	s.pos = p
	s.mu.Unlock()
}
