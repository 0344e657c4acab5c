// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/auth"
	"github.com/socialgenius/loginforge/internal/identity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is one isolated browsing context carrying one identity. It is
// created per login attempt and must be closed on every exit path; Close
// is safe to call more than once but tears down exactly once.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	id     identity.Identity

	mu     sync.Mutex
	closed bool

	netMu        sync.Mutex
	inflight     int
	lastActivity time.Time
}

// Page interface compliance is what the orchestrator depends on.
var _ auth.Page = (*Session)(nil)

// Identity returns the fingerprint this session presents.
func (s *Session) Identity() identity.Identity {
	return s.id
}

// Close releases the browsing context. Calling it again is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.logger.Debug("Session closed")
}

// trackNetwork wires CDP network events into the idle detector.
func (s *Session) trackNetwork() {
	s.lastActivity = time.Now()
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			s.netMu.Lock()
			s.inflight++
			s.lastActivity = time.Now()
			s.netMu.Unlock()
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			s.netMu.Lock()
			if s.inflight > 0 {
				s.inflight--
			}
			s.lastActivity = time.Now()
			s.netMu.Unlock()
		}
	})
}

// networkQuiet reports whether no request is in flight and the wire has
// been silent for at least the given window.
func (s *Session) networkQuiet(window time.Duration) bool {
	s.netMu.Lock()
	defer s.netMu.Unlock()
	return s.inflight == 0 && time.Since(s.lastActivity) >= window
}

// run executes chromedp actions on the session's tab, honoring the
// caller's context for cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("browser: session is closed")
	}
	s.mu.Unlock()
	return chromedp.Run(s.ctx, actions...)
}

// Navigate opens the URL and waits only for the document body to exist,
// which matches the human perception of "page loaded" rather than full
// network idle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browser: navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitNetworkIdle blocks until the page has been network-quiet for half a
// second, or the timeout elapses. The timeout is reported as an error the
// caller may tolerate.
func (s *Session) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	const quietWindow = 500 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.networkQuiet(quietWindow) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("browser: network did not settle within %v", timeout)
}

// URL returns the page's current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("browser: failed to read location: %w", err)
	}
	return url, nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("browser: failed to read title: %w", err)
	}
	return title, nil
}

// Text returns the page's visible text.
func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
		return "", fmt.Errorf("browser: failed to read page text: %w", err)
	}
	return text, nil
}

// Visible reports whether the selector matches at least one element that
// occupies layout space. Selector errors count as not visible.
func (s *Session) Visible(ctx context.Context, selector string) (bool, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => {
		let el;
		try { el = document.querySelector(%s); } catch (e) { return false; }
		if (!el) return false;
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	})()`, sel)

	var visible bool
	if err := s.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		s.logger.Debug("Visibility probe failed", zap.String("selector", selector), zap.Error(err))
		return false, nil
	}
	return visible, nil
}

// WaitVisible polls until the selector matches a visible element or the
// timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline := time.Now().Add(timeout)
	for {
		visible, err := s.Visible(waitCtx, selector)
		if err == nil && visible {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("browser: %q did not become visible within %v", selector, timeout)
		}
		select {
		case <-waitCtx.Done():
			return waitCtx.Err()
		case <-time.After(150 * time.Millisecond):
		}
	}
}

// ButtonTexts tags every visible button-like element with a stable data
// attribute and returns selector/text pairs in document order.
func (s *Session) ButtonTexts(ctx context.Context) ([]auth.LabeledElement, error) {
	const script = `(() => {
		const out = [];
		const els = document.querySelectorAll('button, [role="button"], input[type="submit"]');
		let ix = 0;
		for (const el of els) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			el.setAttribute('data-lf-btn', String(ix));
			out.push({selector: '[data-lf-btn="' + ix + '"]', text: (el.innerText || el.value || '').trim()});
			ix++;
		}
		return out;
	})()`

	var raw []struct {
		Selector string `json:"selector"`
		Text     string `json:"text"`
	}
	if err := s.run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("browser: button scan failed: %w", err)
	}
	out := make([]auth.LabeledElement, 0, len(raw))
	for _, b := range raw {
		out = append(out, auth.LabeledElement{Selector: b.Selector, Text: b.Text})
	}
	return out, nil
}

// ScanInputs returns the attribute surface of every input on the page,
// each tagged with a stable selector.
func (s *Session) ScanInputs(ctx context.Context) ([]auth.InputField, error) {
	const script = `(() => {
		const out = [];
		const els = document.querySelectorAll('input');
		let ix = 0;
		for (const el of els) {
			el.setAttribute('data-lf-input', String(ix));
			out.push({
				selector: '[data-lf-input="' + ix + '"]',
				type: el.type || '',
				name: el.name || '',
				placeholder: el.placeholder || '',
				ariaLabel: el.getAttribute('aria-label') || ''
			});
			ix++;
		}
		return out;
	})()`

	var raw []struct {
		Selector    string `json:"selector"`
		Type        string `json:"type"`
		Name        string `json:"name"`
		Placeholder string `json:"placeholder"`
		AriaLabel   string `json:"ariaLabel"`
	}
	if err := s.run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("browser: input scan failed: %w", err)
	}
	out := make([]auth.InputField, 0, len(raw))
	for _, f := range raw {
		out = append(out, auth.InputField{
			Selector:    f.Selector,
			Type:        f.Type,
			Name:        f.Name,
			Placeholder: f.Placeholder,
			AriaLabel:   f.AriaLabel,
		})
	}
	return out, nil
}

// ClearField empties the element's value and fires an input event so
// framework-bound fields notice.
func (s *Session) ClearField(ctx context.Context, selector string) error {
	sel, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.value = '';
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	})()`, sel)

	var cleared bool
	if err := s.run(ctx, chromedp.Evaluate(script, &cleared)); err != nil {
		return fmt.Errorf("browser: failed to clear %q: %w", selector, err)
	}
	if !cleared {
		return fmt.Errorf("browser: no element matching %q to clear", selector)
	}
	return nil
}

// Screenshot captures the viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("browser: screenshot failed: %w", err)
	}
	return buf, nil
}
