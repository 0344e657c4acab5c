// File: internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/socialgenius/loginforge/internal/humanoid"
)

// CDPExecutor implements the humanoid input surface with raw CDP input
// events, decoupling the interaction engine from the session internals.
type CDPExecutor struct {
	session *Session
}

// NewCDPExecutor wraps a session for the interaction simulator.
func NewCDPExecutor(session *Session) *CDPExecutor {
	return &CDPExecutor{session: session}
}

var _ humanoid.Executor = (*CDPExecutor)(nil)

// Sleep waits out the duration unless the operation or session context
// ends first.
func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.session.ctx.Done():
		return e.session.ctx.Err()
	}
}

// MouseMove dispatches a raw pointer move.
func (e *CDPExecutor) MouseMove(ctx context.Context, x, y float64) error {
	return e.session.run(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

// MousePress dispatches a left-button press.
func (e *CDPExecutor) MousePress(ctx context.Context, x, y float64) error {
	return e.session.run(ctx, input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).
		WithClickCount(1))
}

// MouseRelease dispatches a left-button release.
func (e *CDPExecutor) MouseRelease(ctx context.Context, x, y float64) error {
	return e.session.run(ctx, input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).
		WithClickCount(1))
}

// SendKeys delivers keys to the focused element. Control characters like
// "\b" and "\r" map to their key events.
func (e *CDPExecutor) SendKeys(ctx context.Context, keys string) error {
	return e.session.run(ctx, chromedp.KeyEvent(keys))
}

// ElementCenter returns the center of the first visible element matching
// the selector.
func (e *CDPExecutor) ElementCenter(ctx context.Context, selector string) (humanoid.Vector2D, bool, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return humanoid.Vector2D{}, false, err
	}
	script := fmt.Sprintf(`(() => {
		let el;
		try { el = document.querySelector(%s); } catch (e) { return {found: false}; }
		if (!el) return {found: false};
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return {found: false};
		return {found: true, x: r.left + r.width / 2, y: r.top + r.height / 2};
	})()`, sel)

	var out struct {
		Found bool    `json:"found"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if err := e.session.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return humanoid.Vector2D{}, false, fmt.Errorf("browser: geometry lookup for %q failed: %w", selector, err)
	}
	if !out.Found {
		return humanoid.Vector2D{}, false, nil
	}
	return humanoid.Vector2D{X: out.X, Y: out.Y}, true, nil
}

// ClickElement performs a DOM-level click, the fallback when pointer-path
// clicking has no geometry to aim at.
func (e *CDPExecutor) ClickElement(ctx context.Context, selector string) error {
	if err := e.session.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browser: DOM click on %q failed: %w", selector, err)
	}
	return nil
}

// ViewportSize reports the layout viewport.
func (e *CDPExecutor) ViewportSize(ctx context.Context) (float64, float64, error) {
	var out struct {
		W float64 `json:"w"`
		H float64 `json:"h"`
	}
	if err := e.session.run(ctx, chromedp.Evaluate(`({w: window.innerWidth, h: window.innerHeight})`, &out)); err != nil {
		return 0, 0, fmt.Errorf("browser: viewport lookup failed: %w", err)
	}
	return out.W, out.H, nil
}

// ScrollBy scrolls the page vertically.
func (e *CDPExecutor) ScrollBy(ctx context.Context, dy float64) error {
	return e.session.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %f)`, dy), nil))
}

// RandomHoverTarget picks an arbitrary visible text-bearing element and
// tags it with a selector for the ambient hover.
func (e *CDPExecutor) RandomHoverTarget(ctx context.Context) (string, bool, error) {
	const script = `(() => {
		const els = Array.from(document.querySelectorAll('a, button, h1, h2, h3, label, p'))
			.filter(el => {
				const r = el.getBoundingClientRect();
				return r.width > 0 && r.height > 0 && r.top >= 0 && r.bottom <= window.innerHeight;
			});
		if (els.length === 0) return {found: false};
		const el = els[Math.floor(Math.random() * els.length)];
		el.setAttribute('data-lf-hover', '1');
		return {found: true, selector: '[data-lf-hover="1"]'};
	})()`

	var out struct {
		Found    bool   `json:"found"`
		Selector string `json:"selector"`
	}
	if err := e.session.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return "", false, fmt.Errorf("browser: hover target scan failed: %w", err)
	}
	return out.Selector, out.Found, nil
}
