// File: internal/humanoid/explore.go
package humanoid

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Explore performs a short burst of ambient page interaction after a page
// settles: a scroll, a hover over some harmless element, an idle pause, or
// an aimless pointer move. None of it touches form state. Every action is
// best effort; failures are logged and swallowed so a paranoid page that
// blocks one probe cannot derail the session.
func (s *Simulator) Explore(ctx context.Context) {
	actions := 1 + s.randIntn(3)
	for i := 0; i < actions; i++ {
		if ctx.Err() != nil {
			return
		}
		var err error
		switch s.randIntn(4) {
		case 0:
			err = s.ambientScroll(ctx)
		case 1:
			err = s.ambientHover(ctx)
		case 2:
			err = s.Pause(ctx, 500*time.Millisecond, 1800*time.Millisecond)
		default:
			err = s.ambientWander(ctx)
		}
		if err != nil {
			s.logger.Debug("Ambient action failed", zap.Error(err))
		}
	}
}

// ambientScroll scrolls down a reading-sized amount and sometimes drifts
// partway back up.
func (s *Simulator) ambientScroll(ctx context.Context) error {
	down := 120 + s.randFloat()*360
	if err := s.exec.ScrollBy(ctx, down); err != nil {
		return err
	}
	if err := s.Pause(ctx, 300*time.Millisecond, 900*time.Millisecond); err != nil {
		return err
	}
	if s.randFloat() < 0.5 {
		return s.exec.ScrollBy(ctx, -down*(0.3+s.randFloat()*0.4))
	}
	return nil
}

// ambientHover moves the pointer onto a random visible element without
// clicking it.
func (s *Simulator) ambientHover(ctx context.Context) error {
	selector, ok, err := s.exec.RandomHoverTarget(ctx)
	if err != nil || !ok {
		return err
	}
	return s.MoveTo(ctx, selector)
}

// ambientWander moves the pointer to a random point in the viewport,
// biased away from the edges.
func (s *Simulator) ambientWander(ctx context.Context) error {
	w, h, err := s.exec.ViewportSize(ctx)
	if err != nil {
		return err
	}
	target := Vector2D{
		X: w*0.15 + s.randFloat()*w*0.7,
		Y: h*0.15 + s.randFloat()*h*0.7,
	}
	return s.MoveToPoint(ctx, target)
}
