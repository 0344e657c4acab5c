// File: internal/auth/page.go
package auth

import (
	"context"
	"time"
)

// Page is the abstract browser surface the orchestrator inspects. The
// concrete implementation is a CDP session; tests drive the state machine
// with a scripted fake.
type Page interface {
	// Navigate opens the URL and waits only for minimal document
	// readiness, not network idle.
	Navigate(ctx context.Context, url string) error

	// WaitNetworkIdle blocks until the page goes quiet or the timeout
	// elapses. A timeout is reported as an error the caller may tolerate.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// Text returns the page's visible text content.
	Text(ctx context.Context) (string, error)

	// Visible reports whether at least one element matching the selector
	// exists and is visible. Selector errors are reported as not visible.
	Visible(ctx context.Context, selector string) (bool, error)

	// WaitVisible blocks until an element matching the selector is
	// visible or the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// ButtonTexts returns the selector and trimmed text content of every
	// visible button-like element, in document order.
	ButtonTexts(ctx context.Context) ([]LabeledElement, error)

	// ScanInputs returns metadata for every input element on the page,
	// used as the last-resort email-field discovery pass.
	ScanInputs(ctx context.Context) ([]InputField, error)

	// ClearField empties the value of the element matching the selector.
	ClearField(ctx context.Context, selector string) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
}

// LabeledElement pairs a locatable selector with the element's visible
// text.
type LabeledElement struct {
	Selector string
	Text     string
}

// InputField is the attribute surface of a single <input>, enough to
// recognize an email field that no fixed selector matched.
type InputField struct {
	Selector    string
	Type        string
	Name        string
	Placeholder string
	AriaLabel   string
}

// Humanizer is the interaction surface the orchestrator uses for every
// page action. The humanoid simulator satisfies it.
type Humanizer interface {
	MoveTo(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, text string) error
	TypePlain(ctx context.Context, text string) error
	PressEnter(ctx context.Context) error
	Explore(ctx context.Context)
	Pause(ctx context.Context, min, max time.Duration) error
}
