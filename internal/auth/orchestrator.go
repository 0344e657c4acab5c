// File: internal/auth/orchestrator.go
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/config"
	"github.com/socialgenius/loginforge/internal/diagnostics"
	"github.com/socialgenius/loginforge/internal/observability"
)

// Orchestrator executes the sign-in state machine for one attempt. States
// run strictly in sequence; the only branches are the business-landing-page
// detour and the account-chooser detour, both skipped when not applicable.
// One orchestrator serves one attempt and is not reused.
type Orchestrator struct {
	cfg        config.AuthConfig
	page       Page
	human      Humanizer
	recorder   *diagnostics.Recorder
	trace      *diagnostics.Trace
	attemptDir string
	logger     *zap.Logger
}

// NewOrchestrator wires an orchestrator for one attempt. recorder may be
// nil; captures then silently no-op.
func NewOrchestrator(cfg config.AuthConfig, page Page, human Humanizer, recorder *diagnostics.Recorder, attemptDir string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		page:       page,
		human:      human,
		recorder:   recorder,
		trace:      diagnostics.NewTrace(),
		attemptDir: attemptDir,
		logger:     logger.Named("auth"),
	}
}

// Trace exposes the attempt's checkpoint trace for audit logging.
func (o *Orchestrator) Trace() *diagnostics.Trace {
	return o.trace
}

// Authenticate runs the whole flow and always returns a Result: every
// expected failure category comes back as a structured code, and anything
// unexpected is caught at this boundary and mapped to AUTH_ERROR with a
// best-effort screenshot.
func (o *Orchestrator) Authenticate(ctx context.Context, creds Credentials) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Unexpected panic during authentication", zap.Any("panic", r))
			o.checkpoint(ctx, "panic")
			result = Fail(CodeAuthError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := creds.Validate(); err != nil {
		return Fail(CodeAuthError, err.Error())
	}

	o.logger.Info("Starting authentication attempt",
		zap.String("email", observability.MaskEmail(creds.Email)))

	// Navigate: minimal document readiness only. Humans do not wait for
	// network idle before looking at a page.
	if err := o.page.Navigate(ctx, o.cfg.URL); err != nil {
		o.logger.Error("Navigation failed", zap.String("url", o.cfg.URL), zap.Error(err))
		return Fail(CodeAuthError, "failed to open sign-in page")
	}
	o.checkpoint(ctx, "navigated")

	// Explore, then let the page settle. An idle timeout is tolerable.
	o.human.Explore(ctx)
	if err := o.page.WaitNetworkIdle(ctx, o.cfg.NetworkIdleWait); err != nil {
		o.logger.Debug("Network idle wait elapsed", zap.Error(err))
	}
	o.checkpoint(ctx, "explored")

	if res, terminal := o.challengeCheck(ctx); terminal {
		return res
	}

	url := o.currentURL(ctx)
	title, _ := o.page.Title(ctx)
	if !isProviderHost(url) && !isAlreadyAuthenticated(url, title) {
		if res, terminal := o.handleBusinessLanding(ctx); terminal {
			return res
		}
		o.checkpoint(ctx, "landing_handled")
		url = o.currentURL(ctx)
	}

	if isAccountChooser(url) {
		o.handleAccountChooser(ctx)
		o.checkpoint(ctx, "account_chooser_handled")
	}

	emailSelector, res, terminal := o.locateEmailField(ctx)
	if terminal {
		return res
	}

	if err := o.enterEmail(ctx, emailSelector, creds.Email); err != nil {
		o.logger.Error("Email entry failed", zap.Error(err))
		return Fail(CodeAuthError, "failed to enter email")
	}
	o.checkpoint(ctx, "email_entered")

	if res, terminal := o.clickNext(ctx, emailSelector); terminal {
		return res
	}
	o.checkpoint(ctx, "next_clicked")

	passwordSelector, res, terminal := o.awaitPasswordField(ctx, emailSelector)
	if terminal {
		return res
	}

	if err := o.enterPassword(ctx, passwordSelector, creds.Password); err != nil {
		o.logger.Error("Password entry failed", zap.Error(err))
		return Fail(CodeAuthError, "failed to enter password")
	}
	o.checkpoint(ctx, "password_entered")

	result = o.submitAndClassify(ctx)
	o.checkpoint(ctx, "outcome")
	o.logger.Info("Authentication attempt finished",
		zap.Bool("success", result.Success),
		zap.String("error_code", string(result.Code)),
		zap.String("trace", o.trace.Summary()))
	return result
}

// challengeCheck inspects the URL and page text for security-challenge
// indicators. A match is terminal and never retried: the provider has
// already flagged the session.
func (o *Orchestrator) challengeCheck(ctx context.Context) (Result, bool) {
	url := o.currentURL(ctx)
	text, err := o.page.Text(ctx)
	if err != nil {
		o.logger.Debug("Page text unavailable during challenge check", zap.Error(err))
	}
	if isChallenge(url, text) {
		o.logger.Warn("Security challenge detected", zap.String("url", url))
		o.checkpoint(ctx, "security_challenge")
		return Fail(CodeSecurityChallenge, "provider presented a security challenge"), true
	}
	o.trace.Mark("challenge_checked", "")
	return Result{}, false
}

// handleBusinessLanding deals with starting on a marketing page instead of
// the provider's sign-in domain: find a sign-in link by ranked strategies,
// click it humanly, and re-run the challenge check afterwards. With no
// link found, fall back to navigating straight to the canonical sign-in
// URL.
func (o *Orchestrator) handleBusinessLanding(ctx context.Context) (Result, bool) {
	strat, found := findFirstVisible(ctx, o.page, signInLinkStrategies, o.logger)
	if found {
		o.logger.Info("Clicking sign-in entry on landing page", zap.String("strategy", strat.Name))
		if err := o.human.Click(ctx, strat.Selector); err != nil {
			o.logger.Debug("Sign-in link click failed", zap.Error(err))
			found = false
		}
	}
	if !found {
		o.logger.Info("No sign-in link found, navigating to canonical sign-in URL")
		if err := o.page.Navigate(ctx, canonicalSignInURL); err != nil {
			return Fail(CodeAuthError, "failed to reach sign-in page from landing page"), true
		}
	}

	if err := o.page.WaitNetworkIdle(ctx, o.cfg.NetworkIdleWait); err != nil {
		o.logger.Debug("Network idle wait elapsed after landing transition", zap.Error(err))
	}

	// The click may have landed on a challenge.
	return o.challengeCheck(ctx)
}

// handleAccountChooser prefers "use another account", then "add account".
// The chooser transition is slow, so the follow-up wait is generous.
// Failure here is non-fatal: email-field discovery decides what happens
// next.
func (o *Orchestrator) handleAccountChooser(ctx context.Context) {
	strat, found := findFirstVisible(ctx, o.page, accountChooserStrategies, o.logger)
	if !found {
		o.logger.Debug("Account chooser URL without recognizable controls")
		return
	}
	o.logger.Info("Handling account chooser", zap.String("strategy", strat.Name))
	if err := o.human.Click(ctx, strat.Selector); err != nil {
		o.logger.Debug("Account chooser click failed", zap.Error(err))
		return
	}
	if err := o.human.Pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return
	}
	if err := o.page.WaitNetworkIdle(ctx, o.cfg.NetworkIdleWait); err != nil {
		o.logger.Debug("Network idle wait elapsed after account chooser", zap.Error(err))
	}
}

// locateEmailField finds the identifier input. Ranked selectors first,
// then an attribute scan over every input, then recognition of an
// already-signed-in state, then one last direct navigation to the
// canonical URL before giving up.
func (o *Orchestrator) locateEmailField(ctx context.Context) (string, Result, bool) {
	if sel, ok := o.findEmailField(ctx); ok {
		return sel, Result{}, false
	}

	url := o.currentURL(ctx)
	title, _ := o.page.Title(ctx)
	if isAlreadyAuthenticated(url, title) {
		o.logger.Info("Context already authenticated, no sign-in needed", zap.String("url", url))
		return "", Succeed("already signed in"), true
	}

	o.logger.Warn("Email field not found, retrying via canonical sign-in URL")
	if err := o.page.Navigate(ctx, canonicalSignInURL); err == nil {
		if err := o.page.WaitNetworkIdle(ctx, o.cfg.NetworkIdleWait); err != nil {
			o.logger.Debug("Network idle wait elapsed on retry navigation", zap.Error(err))
		}
		if sel, ok := o.findEmailField(ctx); ok {
			return sel, Result{}, false
		}
	}

	o.checkpoint(ctx, "email_field_missing")
	return "", Fail(CodeElementNotFound, "email input field never appeared"), true
}

// findEmailField runs one pass of every discovery strategy.
func (o *Orchestrator) findEmailField(ctx context.Context) (string, bool) {
	if strat, ok := findFirstVisible(ctx, o.page, emailFieldStrategies, o.logger); ok {
		o.logger.Debug("Email field located", zap.String("strategy", strat.Name))
		return strat.Selector, true
	}

	// Attribute scan: any input whose type/name/placeholder/aria-label
	// smells like an email field.
	inputs, err := o.page.ScanInputs(ctx)
	if err != nil {
		o.logger.Debug("Input scan failed", zap.Error(err))
		return "", false
	}
	for _, f := range inputs {
		if matchEmailInput(f) {
			o.logger.Debug("Email field located via attribute scan", zap.String("selector", f.Selector))
			return f.Selector, true
		}
	}
	return "", false
}

// enterEmail focuses the field the human way, clears any residue, pauses,
// and types with full cadence simulation.
func (o *Orchestrator) enterEmail(ctx context.Context, selector, email string) error {
	if err := o.human.MoveTo(ctx, selector); err != nil {
		return err
	}
	if err := o.human.Click(ctx, selector); err != nil {
		return err
	}
	if err := o.page.ClearField(ctx, selector); err != nil {
		o.logger.Debug("Field clear failed, typing over existing value", zap.Error(err))
	}
	if err := o.human.Pause(ctx, 300*time.Millisecond, 800*time.Millisecond); err != nil {
		return err
	}
	return o.human.Type(ctx, email)
}

// clickNext advances past the identifier step. The page places a
// "forgot email" control next to the Next button, so selection prefers the
// most specific container and any text-scan fallback excludes
// forgot/find wording. After the click it verifies the flow did not land
// on account recovery, and retries via bounded alternative strategies
// while the email step is still showing.
func (o *Orchestrator) clickNext(ctx context.Context, emailSelector string) (Result, bool) {
	forgotPresent, _ := o.page.Visible(ctx, forgotEmailSelector)
	if forgotPresent {
		o.logger.Debug("Forgot-email control present, using specific next selector")
	}

	clicked := o.clickNextOnce(ctx, forgotPresent)
	if clicked {
		if res, terminal := o.afterNextClick(ctx); terminal {
			return res, true
		}
	}

	// Still on the email step? Walk the alternative click strategies.
	stillOnEmail := func() bool {
		visible, _ := o.page.Visible(ctx, emailSelector)
		return visible
	}
	if !stillOnEmail() {
		return Result{}, false
	}

	alternatives := []func(context.Context) error{
		func(ctx context.Context) error {
			return o.human.Click(ctx, `button[jsname="LgbsSe"]`)
		},
		func(ctx context.Context) error {
			if err := o.human.Click(ctx, emailSelector); err != nil {
				return err
			}
			return o.human.PressEnter(ctx)
		},
		func(ctx context.Context) error {
			return o.clickFirstSafeButton(ctx)
		},
	}

	for i, alt := range alternatives {
		o.logger.Debug("Retrying next click via alternative strategy", zap.Int("strategy", i+1))
		if err := alt(ctx); err != nil {
			o.logger.Debug("Alternative next click failed", zap.Int("strategy", i+1), zap.Error(err))
			continue
		}
		if res, terminal := o.afterNextClick(ctx); terminal {
			return res, true
		}
		if !stillOnEmail() {
			return Result{}, false
		}
	}

	// Exhausted. The password poll still gets its chance; it re-issues
	// the click between attempts.
	return Result{}, false
}

// clickNextOnce clicks the best available next control. Returns whether a
// click was dispatched at all.
func (o *Orchestrator) clickNextOnce(ctx context.Context, preferSpecific bool) bool {
	strategies := nextButtonStrategies
	if preferSpecific {
		// Only container-scoped selectors; never a bare text scan while a
		// forgot-email control shares the page.
		strategies = nextButtonStrategies[:2]
	}
	if strat, ok := findFirstVisible(ctx, o.page, strategies, o.logger); ok {
		if err := o.human.Click(ctx, strat.Selector); err == nil {
			return true
		}
	}
	if preferSpecific {
		return false
	}
	return o.clickFirstSafeButton(ctx) == nil
}

// clickFirstSafeButton scans visible buttons by text and clicks the first
// whose label does not mention forgot/find wording.
func (o *Orchestrator) clickFirstSafeButton(ctx context.Context) error {
	buttons, err := o.page.ButtonTexts(ctx)
	if err != nil {
		return fmt.Errorf("auth: button scan failed: %w", err)
	}
	for _, b := range buttons {
		label := strings.ToLower(b.Text)
		if strings.Contains(label, "forgot") || strings.Contains(label, "find") {
			continue
		}
		return o.human.Click(ctx, b.Selector)
	}
	return fmt.Errorf("auth: no safe button to click")
}

// afterNextClick waits out the provider's slow identifier transition and
// verifies the click did not land on account recovery.
func (o *Orchestrator) afterNextClick(ctx context.Context) (Result, bool) {
	if err := o.human.Pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return Fail(CodeAuthError, "cancelled during identifier transition"), true
	}
	if url := o.currentURL(ctx); isRecoveryURL(url) {
		o.logger.Warn("Landed on account recovery after next click", zap.String("url", url))
		o.checkpoint(ctx, "recovery_page")
		return Fail(CodeRecoveryPage, "mis-click landed on account recovery"), true
	}
	return Result{}, false
}

// awaitPasswordField polls for the password input across bounded attempts,
// re-issuing a next click between polls while the email step persists. On
// exhaustion the page text disambiguates the terminal failure.
func (o *Orchestrator) awaitPasswordField(ctx context.Context, emailSelector string) (string, Result, bool) {
	var selector string

	between := func(ctx context.Context) error {
		if visible, _ := o.page.Visible(ctx, emailSelector); visible {
			o.logger.Debug("Email step still showing, re-issuing next click")
			o.clickNextOnce(ctx, false)
		}
		return nil
	}

	found, _ := withBoundedRetries(ctx, o.cfg.MaxPasswordPolls, between, func(ctx context.Context) (bool, error) {
		strat, ok := findFirstVisible(ctx, o.page, passwordFieldStrategies, o.logger)
		if ok {
			selector = strat.Selector
			return true, nil
		}
		// One timed wait on the primary selector before the next pass.
		if err := o.page.WaitVisible(ctx, passwordFieldStrategies[0].Selector, o.cfg.ElementTimeout); err == nil {
			selector = passwordFieldStrategies[0].Selector
			return true, nil
		}
		return false, nil
	})

	if found {
		return selector, Result{}, false
	}

	text, _ := o.page.Text(ctx)
	code := classifyPasswordStepFailure(text)
	o.logger.Warn("Password field never appeared", zap.String("classified_as", string(code)))
	o.checkpoint(ctx, "password_field_missing")

	switch code {
	case CodeEmailNotFound:
		return "", Fail(code, "provider does not recognize this email"), true
	case CodeSuspiciousActivity:
		return "", Fail(code, "provider flagged the session for suspicious activity"), true
	case CodeVerificationRequired:
		return "", Fail(code, "provider requires identity verification"), true
	default:
		return "", Fail(CodeElementNotFound, "password input field never appeared"), true
	}
}

// enterPassword clicks the field and types each character with jittered
// delay. No typo injection: the value is transient and masked, nothing
// observes its cadence closely enough to justify the extra keystrokes.
func (o *Orchestrator) enterPassword(ctx context.Context, selector, password string) error {
	if err := o.human.Click(ctx, selector); err != nil {
		return err
	}
	if err := o.human.Pause(ctx, 200*time.Millisecond, 600*time.Millisecond); err != nil {
		return err
	}
	return o.human.TypePlain(ctx, password)
}

// submitAndClassify clicks the sign-in control, waits out the settle
// delay, and classifies the resulting page. Priority is fixed: wrong
// password, then two-factor, then recognized post-login URL, then
// optimistic success.
func (o *Orchestrator) submitAndClassify(ctx context.Context) Result {
	if strat, ok := findFirstVisible(ctx, o.page, submitButtonStrategies, o.logger); ok {
		if err := o.human.Click(ctx, strat.Selector); err != nil {
			o.logger.Debug("Submit click failed, pressing enter", zap.Error(err))
			if err := o.human.PressEnter(ctx); err != nil {
				return Fail(CodeAuthError, "failed to submit credentials")
			}
		}
	} else if err := o.human.PressEnter(ctx); err != nil {
		return Fail(CodeAuthError, "failed to submit credentials")
	}

	if err := o.human.Pause(ctx, o.cfg.SettleDelay, o.cfg.SettleDelay+2*time.Second); err != nil {
		return Fail(CodeAuthError, "cancelled while waiting for sign-in to settle")
	}
	if err := o.page.WaitNetworkIdle(ctx, o.cfg.NetworkIdleWait); err != nil {
		o.logger.Debug("Network idle wait elapsed after submit", zap.Error(err))
	}

	url := o.currentURL(ctx)
	text, err := o.page.Text(ctx)
	if err != nil {
		o.logger.Debug("Page text unavailable during outcome classification", zap.Error(err))
	}
	result := classifyOutcome(url, text)
	if result.Success && !containsAny(url, postLoginURLFragments) {
		// Optimistic call: no failure indicator, but no recognized
		// post-login surface either.
		o.logger.Warn("No explicit failure signal after submit, assuming success", zap.String("url", url))
	}
	return result
}

// checkpoint records a trace mark with a best-effort screenshot.
func (o *Orchestrator) checkpoint(ctx context.Context, label string) {
	path := o.recorder.Capture(ctx, o.page, o.attemptDir, label)
	o.trace.Mark(label, path)
}

// currentURL reads the page URL, treating failure as an empty URL so the
// substring matchers simply find nothing.
func (o *Orchestrator) currentURL(ctx context.Context) string {
	url, err := o.page.URL(ctx)
	if err != nil {
		o.logger.Debug("Failed to read current URL", zap.Error(err))
		return ""
	}
	return url
}

// canonicalSignInURL is the provider's own entry point, used when landing
// page traversal or field discovery fails.
const canonicalSignInURL = "https://accounts.google.com/ServiceLogin"
