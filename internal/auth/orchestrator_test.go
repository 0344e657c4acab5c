// File: internal/auth/orchestrator_test.go
package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/config"
)

// fakePage is a scripted page: tests set its visible selectors, text and
// URL, and attach side effects that fire when a selector is clicked.
type fakePage struct {
	url          string
	title        string
	text         string
	visible      map[string]bool
	inputs       []InputField
	buttons      []LabeledElement
	navigations  []string
	onNavigate   func(url string)
	clickEffects map[string]func()
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:      map[string]bool{},
		clickEffects: map[string]func(){},
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	p.url = url
	if p.onNavigate != nil {
		p.onNavigate(url)
	}
	return nil
}

func (p *fakePage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error { return nil }
func (p *fakePage) URL(ctx context.Context) (string, error)                          { return p.url, nil }
func (p *fakePage) Title(ctx context.Context) (string, error)                        { return p.title, nil }
func (p *fakePage) Text(ctx context.Context) (string, error)                         { return p.text, nil }

func (p *fakePage) Visible(ctx context.Context, selector string) (bool, error) {
	return p.visible[selector], nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if p.visible[selector] {
		return nil
	}
	return errors.New("wait timed out")
}

func (p *fakePage) ButtonTexts(ctx context.Context) ([]LabeledElement, error) {
	return p.buttons, nil
}

func (p *fakePage) ScanInputs(ctx context.Context) ([]InputField, error) { return p.inputs, nil }
func (p *fakePage) ClearField(ctx context.Context, selector string) error { return nil }
func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, errors.New("no screenshots in tests")
}

// fakeHuman records interactions and fires the page's click effects.
type fakeHuman struct {
	page    *fakePage
	clicks  []string
	typed   []string
	entered int
}

func (h *fakeHuman) MoveTo(ctx context.Context, selector string) error { return nil }

func (h *fakeHuman) Click(ctx context.Context, selector string) error {
	h.clicks = append(h.clicks, selector)
	if fn := h.page.clickEffects[selector]; fn != nil {
		fn()
	}
	return nil
}

func (h *fakeHuman) Type(ctx context.Context, text string) error {
	h.typed = append(h.typed, text)
	return nil
}

func (h *fakeHuman) TypePlain(ctx context.Context, text string) error {
	h.typed = append(h.typed, text)
	return nil
}

func (h *fakeHuman) PressEnter(ctx context.Context) error {
	h.entered++
	return nil
}

func (h *fakeHuman) Explore(ctx context.Context) {}

func (h *fakeHuman) Pause(ctx context.Context, min, max time.Duration) error {
	return ctx.Err()
}

func testAuthConfig() config.AuthConfig {
	cfg := config.NewDefaultConfig().Auth
	return cfg
}

func newTestOrchestrator(page *fakePage) (*Orchestrator, *fakeHuman) {
	human := &fakeHuman{page: page}
	o := NewOrchestrator(testAuthConfig(), page, human, nil, "test/attempt", zap.NewNop())
	return o, human
}

const (
	emailSel    = `input#identifierId`
	nextSel     = `#identifierNext button`
	passwordSel = `input[name="Passwd"]`
	submitSel   = `#passwordNext button`
)

var testCreds = Credentials{Email: "owner@example.com", Password: "hunter2!"}

func TestAuthenticateHappyPath(t *testing.T) {
	page := newFakePage()
	page.visible[emailSel] = true
	page.visible[nextSel] = true
	page.url = "https://accounts.google.com/ServiceLogin"

	page.clickEffects[nextSel] = func() {
		page.visible[emailSel] = false
		page.visible[passwordSel] = true
		page.visible[submitSel] = true
		page.url = "https://accounts.google.com/signin/v2/sl/pwd"
	}
	page.clickEffects[submitSel] = func() {
		page.url = "https://myaccount.google.com/?pli=1"
		page.text = "Welcome"
	}

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.True(t, res.Success, "message: %s", res.Message)
	assert.Empty(t, res.Code)
	assert.Equal(t, []string{"owner@example.com", "hunter2!"}, human.typed)
	assert.Contains(t, o.Trace().Summary(), "outcome")
}

func TestAuthenticateChallengeAfterNavigation(t *testing.T) {
	page := newFakePage()
	page.url = "https://accounts.google.com/ServiceLogin"
	page.text = "We detected unusual activity on your account"

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.False(t, res.Success)
	assert.Equal(t, CodeSecurityChallenge, res.Code)
	assert.Empty(t, human.clicks, "no interaction after a challenge")
	assert.Empty(t, human.typed)
}

func TestAuthenticateEmailFieldNeverRenders(t *testing.T) {
	page := newFakePage()
	page.url = "https://accounts.google.com/ServiceLogin"

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.False(t, res.Success)
	assert.Equal(t, CodeElementNotFound, res.Code)
	assert.Empty(t, human.typed)
	// Initial navigation plus the one canonical-URL retry.
	assert.Len(t, page.navigations, 2)
}

func TestSignInPageTitleIsNotTreatedAsAuthenticated(t *testing.T) {
	page := newFakePage()
	page.url = "https://accounts.google.com/ServiceLogin"
	page.title = "Sign in - Google Accounts"

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.False(t, res.Success, "a sign-in page with no email field is a failure, not a live session")
	assert.Equal(t, CodeElementNotFound, res.Code)
	assert.Empty(t, human.typed)
	assert.Len(t, page.navigations, 2)
}

func TestAuthenticateEmailNotFound(t *testing.T) {
	page := newFakePage()
	page.visible[emailSel] = true
	page.visible[nextSel] = true
	page.url = "https://accounts.google.com/ServiceLogin"
	page.clickEffects[nextSel] = func() {
		// Email step persists, provider complains below the field.
		page.text = "Couldn't find your Google Account"
	}

	o, _ := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.False(t, res.Success)
	assert.Equal(t, CodeEmailNotFound, res.Code)
}

func TestAuthenticateTwoFactorAfterSubmit(t *testing.T) {
	page := newFakePage()
	page.visible[emailSel] = true
	page.visible[nextSel] = true
	page.url = "https://accounts.google.com/ServiceLogin"
	page.clickEffects[nextSel] = func() {
		page.visible[emailSel] = false
		page.visible[passwordSel] = true
		page.visible[submitSel] = true
		page.url = "https://accounts.google.com/signin/v2/sl/pwd"
	}
	page.clickEffects[submitSel] = func() {
		page.url = "https://accounts.google.com/signin/challenge/totp/2"
	}

	o, _ := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.False(t, res.Success)
	assert.Equal(t, CodeTwoFactorRequired, res.Code)
}

func TestForgotEmailAvoidance(t *testing.T) {
	page := newFakePage()
	page.visible[emailSel] = true
	page.visible[nextSel] = true
	page.visible[forgotEmailSelector] = true
	page.buttons = []LabeledElement{
		{Selector: "#forgot", Text: "Forgot email?"},
		{Selector: nextSel, Text: "Next"},
	}
	page.url = "https://accounts.google.com/ServiceLogin"
	page.clickEffects[nextSel] = func() {
		page.visible[emailSel] = false
		page.visible[passwordSel] = true
		page.visible[submitSel] = true
	}
	page.clickEffects[submitSel] = func() {
		page.url = "https://business.google.com/dashboard"
	}

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.True(t, res.Success)
	for _, sel := range human.clicks {
		assert.NotEqual(t, "#forgot", sel)
		assert.NotEqual(t, forgotEmailSelector, sel)
	}
}

func TestRecoveryURLAfterNextClick(t *testing.T) {
	page := newFakePage()
	page.visible[emailSel] = true
	page.visible[nextSel] = true
	page.url = "https://accounts.google.com/ServiceLogin"
	page.clickEffects[nextSel] = func() {
		page.url = "https://accounts.google.com/signin/usernamerecovery?flow=1"
	}

	o, _ := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.False(t, res.Success)
	assert.Equal(t, CodeRecoveryPage, res.Code)
}

func TestBusinessLandingPageDetour(t *testing.T) {
	page := newFakePage()
	first := true
	page.onNavigate = func(url string) {
		if first {
			// The entry URL redirects to a marketing page.
			page.url = "https://www.google.com/business/"
			first = false
		}
	}
	signInLink := `a[href*="accounts.google.com"]`
	page.visible[signInLink] = true
	page.clickEffects[signInLink] = func() {
		page.url = "https://accounts.google.com/ServiceLogin"
		page.visible[emailSel] = true
		page.visible[nextSel] = true
	}
	page.clickEffects[nextSel] = func() {
		page.visible[emailSel] = false
		page.visible[passwordSel] = true
		page.visible[submitSel] = true
	}
	page.clickEffects[submitSel] = func() {
		page.url = "https://myaccount.google.com/"
	}

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.True(t, res.Success, "message: %s", res.Message)
	assert.Contains(t, human.clicks, signInLink)
	assert.Contains(t, o.Trace().Summary(), "landing_handled")
}

func TestAccountChooserPrefersAnotherAccount(t *testing.T) {
	page := newFakePage()
	chooserSel := accountChooserStrategies[0].Selector
	first := true
	page.onNavigate = func(url string) {
		if first {
			page.url = "https://accounts.google.com/signinchooser?continue=x"
			first = false
		}
	}
	page.visible[chooserSel] = true
	page.clickEffects[chooserSel] = func() {
		page.url = "https://accounts.google.com/ServiceLogin"
		page.visible[emailSel] = true
		page.visible[nextSel] = true
	}
	page.clickEffects[nextSel] = func() {
		page.visible[emailSel] = false
		page.visible[passwordSel] = true
		page.visible[submitSel] = true
	}
	page.clickEffects[submitSel] = func() {
		page.url = "https://myaccount.google.com/"
	}

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.True(t, res.Success)
	assert.Equal(t, chooserSel, human.clicks[0])
}

func TestAlreadyAuthenticatedIsEarlySuccess(t *testing.T) {
	page := newFakePage()
	first := true
	page.onNavigate = func(url string) {
		if first {
			page.url = "https://myaccount.google.com/?utm_source=sign_in_no_continue"
			first = false
		}
	}

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.True(t, res.Success)
	assert.Contains(t, res.Message, "already signed in")
	assert.Empty(t, human.typed)
}

func TestEmailFieldFoundByAttributeScan(t *testing.T) {
	page := newFakePage()
	page.url = "https://accounts.google.com/ServiceLogin"
	scanned := `input.odd-markup`
	page.inputs = []InputField{
		{Selector: `input.search`, Type: "text", Placeholder: "Search"},
		{Selector: scanned, Type: "text", AriaLabel: "Email or phone"},
	}
	page.visible[nextSel] = true
	page.clickEffects[nextSel] = func() {
		page.inputs = nil
		page.visible[passwordSel] = true
		page.visible[submitSel] = true
	}
	page.clickEffects[submitSel] = func() {
		page.url = "https://myaccount.google.com/"
	}

	o, human := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.True(t, res.Success, "message: %s", res.Message)
	assert.Contains(t, human.clicks, scanned)
}

func TestEmptyCredentialsAreRejectedEarly(t *testing.T) {
	page := newFakePage()
	o, _ := newTestOrchestrator(page)

	res := o.Authenticate(context.Background(), Credentials{Email: "", Password: "x"})
	require.False(t, res.Success)
	assert.Equal(t, CodeAuthError, res.Code)
	assert.Empty(t, page.navigations)
}

func TestPanicIsMappedToAuthError(t *testing.T) {
	page := newFakePage()
	page.visible[emailSel] = true
	page.url = "https://accounts.google.com/ServiceLogin"
	page.clickEffects[emailSel] = func() { panic("detached node") }

	o, _ := newTestOrchestrator(page)
	res := o.Authenticate(context.Background(), testCreds)

	require.False(t, res.Success)
	assert.Equal(t, CodeAuthError, res.Code)
	assert.True(t, strings.Contains(res.Message, "detached node"))
}

func TestWithBoundedRetries(t *testing.T) {
	t.Run("stops on first success", func(t *testing.T) {
		calls := 0
		done, err := withBoundedRetries(context.Background(), 3, nil, func(context.Context) (bool, error) {
			calls++
			return calls == 2, nil
		})
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns last error on exhaustion", func(t *testing.T) {
		wantErr := errors.New("nope")
		done, err := withBoundedRetries(context.Background(), 3, nil, func(context.Context) (bool, error) {
			return false, wantErr
		})
		assert.False(t, done)
		assert.Equal(t, wantErr, err)
	})

	t.Run("between runs before retries only", func(t *testing.T) {
		betweens := 0
		withBoundedRetries(context.Background(), 3, func(context.Context) error {
			betweens++
			return nil
		}, func(context.Context) (bool, error) {
			return false, nil
		})
		assert.Equal(t, 2, betweens)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		done, err := withBoundedRetries(ctx, 3, nil, func(context.Context) (bool, error) {
			t.Fatal("action must not run")
			return false, nil
		})
		assert.False(t, done)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
