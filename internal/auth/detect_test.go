// File: internal/auth/detect_test.go
package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOutcomePriorityOrder(t *testing.T) {
	// Pathological page carrying both markers: wrong password wins, the
	// first check in the documented priority order.
	res := classifyOutcome(
		"https://accounts.google.com/signin/challenge/totp",
		"Wrong password. Try again. 2-Step Verification",
	)
	assert.False(t, res.Success)
	assert.Equal(t, CodeWrongPassword, res.Code)
}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		text    string
		success bool
		code    ErrorCode
	}{
		{"wrong password text", "https://accounts.google.com/signin", "Wrong password. Try again", false, CodeWrongPassword},
		{"two-factor url", "https://accounts.google.com/signin/challenge/az/3", "", false, CodeTwoFactorRequired},
		{"two-factor text", "https://accounts.google.com/signin", "2-Step Verification. Check your phone", false, CodeTwoFactorRequired},
		{"post-login url", "https://myaccount.google.com/", "", true, ""},
		{"business post-login", "https://business.google.com/locations", "", true, ""},
		{"unknown quiet page is optimistic success", "https://accounts.google.com/somewhere", "Loading", true, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := classifyOutcome(tc.url, tc.text)
			assert.Equal(t, tc.success, res.Success)
			assert.Equal(t, tc.code, res.Code)
		})
	}
}

func TestClassifyPasswordStepFailure(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ErrorCode
	}{
		{"email not found", "Couldn't find your Google Account", CodeEmailNotFound},
		{"suspicious activity", "We detected suspicious activity from your network", CodeSuspiciousActivity},
		{"verification required", "To continue, first verify your identity", CodeVerificationRequired},
		{"generic", "Something else entirely", CodeElementNotFound},
		{"email not found wins over verification", "couldn't find your google account. verify your identity", CodeEmailNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyPasswordStepFailure(tc.text))
		})
	}
}

func TestIsChallenge(t *testing.T) {
	assert.True(t, isChallenge("https://accounts.google.com/signin/rejected?x=1", ""))
	assert.True(t, isChallenge("https://www.google.com/sorry/index?continue=x", ""))
	assert.True(t, isChallenge("https://accounts.google.com/ServiceLogin", "Verify it's you before continuing"))
	assert.False(t, isChallenge("https://accounts.google.com/ServiceLogin", "Sign in with your Google Account"))
}

func TestIsRecoveryURL(t *testing.T) {
	assert.True(t, isRecoveryURL("https://accounts.google.com/signin/usernamerecovery?flow=1"))
	assert.True(t, isRecoveryURL("https://accounts.google.com/signin/recovery"))
	assert.False(t, isRecoveryURL("https://accounts.google.com/signin/v2/sl/pwd"))
}

func TestIsProviderHost(t *testing.T) {
	assert.True(t, isProviderHost("https://accounts.google.com/ServiceLogin"))
	assert.False(t, isProviderHost("https://www.google.com/business/"))
	assert.False(t, isProviderHost("https://myaccount.google.com/"))
}

func TestIsAlreadyAuthenticated(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		title string
		want  bool
	}{
		{"post-login url", "https://myaccount.google.com/", "", true},
		{"business console url", "https://business.google.com/dashboard", "", true},
		{"settings title", "https://www.google.com/settings", "Google Account", true},
		{"business profile title", "https://www.google.com/business", "Business Profile Manager", true},
		{"sign-in page title", "https://accounts.google.com/ServiceLogin", "Sign in - Google Accounts", false},
		{"sign-in page en-dash title", "https://accounts.google.com/ServiceLogin", "Sign in – Google Accounts", false},
		{"account chooser title", "https://accounts.google.com/signinchooser", "Choose an account - Google Accounts", false},
		{"blank page", "about:blank", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isAlreadyAuthenticated(tc.url, tc.title))
		})
	}
}

func TestMatchEmailInput(t *testing.T) {
	assert.True(t, matchEmailInput(InputField{Type: "email"}))
	assert.True(t, matchEmailInput(InputField{Type: "text", Name: "identifier"}))
	assert.True(t, matchEmailInput(InputField{Type: "text", Placeholder: "Email or phone"}))
	assert.True(t, matchEmailInput(InputField{Type: "text", AriaLabel: "Enter your username"}))
	assert.False(t, matchEmailInput(InputField{Type: "text", Name: "q", Placeholder: "Search"}))
}
