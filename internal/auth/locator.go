// File: internal/auth/locator.go
package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Strategy is one ranked way of locating a page element. Strategies are
// tried in slice order; the first visible match wins. Keeping them as data
// lets new provider UI variants be added without touching the state
// machine.
type Strategy struct {
	Name     string
	Selector string
}

// Ranked locator strategies for each element the flow needs. Order
// matters: most specific first.
var (
	signInLinkStrategies = []Strategy{
		{Name: "header-signin-link", Selector: `a[href*="accounts.google.com"]`},
		{Name: "signin-text-link", Selector: `a[data-action="sign in"]`},
		{Name: "signin-role-button", Selector: `[role="button"][aria-label*="Sign in"]`},
	}

	accountChooserStrategies = []Strategy{
		{Name: "use-another-account", Selector: `div[data-identifier=""] , li.JDAKTe:last-child div[role="link"]`},
		{Name: "add-account", Selector: `#addAccount, div[data-authuser="-1"]`},
	}

	emailFieldStrategies = []Strategy{
		{Name: "identifier-id", Selector: `input#identifierId`},
		{Name: "email-type", Selector: `input[type="email"]`},
		{Name: "identifier-name", Selector: `input[name="identifier"]`},
		{Name: "email-autocomplete", Selector: `input[autocomplete="username"]`},
	}

	nextButtonStrategies = []Strategy{
		{Name: "identifier-next", Selector: `#identifierNext button`},
		{Name: "identifier-next-container", Selector: `#identifierNext`},
		{Name: "next-jsname", Selector: `button[jsname="LgbsSe"]`},
	}

	passwordFieldStrategies = []Strategy{
		{Name: "password-name", Selector: `input[name="Passwd"]`},
		{Name: "password-type", Selector: `input[type="password"]`},
		{Name: "password-autocomplete", Selector: `input[autocomplete="current-password"]`},
	}

	submitButtonStrategies = []Strategy{
		{Name: "password-next", Selector: `#passwordNext button`},
		{Name: "password-next-container", Selector: `#passwordNext`},
		{Name: "submit-type", Selector: `button[type="submit"]`},
	}
)

// forgotEmailSelector matches the "forgot/find email" control that sits
// next to the identifier Next button and must never be clicked.
const forgotEmailSelector = `button[jsname="Cuz2Ue"], a[href*="signin/usernamerecovery"]`

// findFirstVisible walks the ranked strategies and returns the first whose
// selector matches a visible element. ok is false when nothing matched.
func findFirstVisible(ctx context.Context, page Page, strategies []Strategy, logger *zap.Logger) (Strategy, bool) {
	for _, strat := range strategies {
		visible, err := page.Visible(ctx, strat.Selector)
		if err != nil {
			logger.Debug("Locator strategy errored", zap.String("strategy", strat.Name), zap.Error(err))
			continue
		}
		if visible {
			return strat, true
		}
	}
	return Strategy{}, false
}

// emailSignals are the attribute substrings that mark an input as an email
// field during the attribute-scan fallback.
var emailSignals = []string{"email", "identifier", "username"}

// matchEmailInput reports whether an input's attributes look like an email
// field.
func matchEmailInput(f InputField) bool {
	if strings.EqualFold(f.Type, "email") {
		return true
	}
	for _, attr := range []string{f.Name, f.Placeholder, f.AriaLabel} {
		lower := strings.ToLower(attr)
		for _, sig := range emailSignals {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}

// withBoundedRetries runs action up to maxAttempts times. action reports
// done=true to stop early; between runs before each retry (not before the
// first attempt) and its error aborts the loop. The final action error is
// returned when every attempt fails.
func withBoundedRetries(ctx context.Context, maxAttempts int, between func(context.Context) error, action func(context.Context) (bool, error)) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if attempt > 1 && between != nil {
			if err := between(ctx); err != nil {
				return false, err
			}
		}
		done, err := action(ctx)
		if done {
			return true, nil
		}
		lastErr = err
	}
	return false, lastErr
}
