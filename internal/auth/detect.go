// File: internal/auth/detect.go
package auth

import "strings"

// URL fragments and page-text markers for each terminal condition. All
// matching is case-insensitive substring matching over the current URL and
// the page's visible text.

var challengeURLFragments = []string{
	"/signin/rejected",
	"/signin/challenge/dp",
	"/signin/challenge/ipp",
	"/deniedsigninrejected",
	"/captcha",
	"sorry/index",
}

var challengeTextMarkers = []string{
	"verify it's you",
	"unusual activity",
	"confirm it's you",
	"this device isn't recognized",
	"couldn't sign you in",
	"try again later",
}

var recoveryURLFragments = []string{
	"/signin/usernamerecovery",
	"/signin/recovery",
	"accountrecovery",
}

var emailNotFoundMarkers = []string{
	"couldn't find your google account",
	"enter a valid email",
	"couldn’t find your google account",
}

var suspiciousActivityMarkers = []string{
	"suspicious activity",
	"unusual traffic",
	"automated queries",
}

var verificationRequiredMarkers = []string{
	"verify your identity",
	"confirm your recovery email",
	"confirm your recovery phone",
	"get a verification code",
}

var wrongPasswordMarkers = []string{
	"wrong password",
	"try again or click forgot password",
	"your password was changed",
}

var twoFactorURLFragments = []string{
	"/signin/challenge/totp",
	"/signin/challenge/ootp",
	"/signin/challenge/az",
	"/signin/challenge/sk",
	"/signin/v2/challenge",
	"challenge",
}

var twoFactorTextMarkers = []string{
	"2-step verification",
	"enter the code",
	"check your phone",
	"google sent a notification",
}

var postLoginURLFragments = []string{
	"myaccount.google.com",
	"business.google.com",
	"accounts.google.com/manageaccount",
	"/signinsuccess",
}

var accountChooserURLFragments = []string{
	"/accountchooser",
	"/signinchooser",
}

// providerHosts are the identity provider's own sign-in hosts; any other
// host at the start of the flow is a business landing page.
var providerHosts = []string{
	"accounts.google.com",
	"accounts.youtube.com",
}

func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// isChallenge reports whether the URL or page text matches a known
// security-challenge indicator.
func isChallenge(url, text string) bool {
	return containsAny(url, challengeURLFragments) || containsAny(text, challengeTextMarkers)
}

// isRecoveryURL reports whether the URL landed on the account-recovery
// flow, which means a "forgot email" control was mis-clicked.
func isRecoveryURL(url string) bool {
	return containsAny(url, recoveryURLFragments)
}

// isProviderHost reports whether the URL is on the identity provider's own
// sign-in domain.
func isProviderHost(url string) bool {
	return containsAny(url, providerHosts)
}

// isAccountChooser reports whether the URL is the provider's account
// chooser step.
func isAccountChooser(url string) bool {
	return containsAny(url, accountChooserURLFragments)
}

// Titles shown once a session is live. The provider's sign-in surfaces
// also mention the account product ("Sign in - Google Accounts"), so a
// sign-in title must never count as authenticated.
var authenticatedTitleMarkers = []string{"google account", "business profile"}

var signInTitleMarkers = []string{"sign in", "sign-in", "choose an account"}

// isAlreadyAuthenticated recognizes the landed-in-account state reachable
// when the browsing context already holds a valid session.
func isAlreadyAuthenticated(url, title string) bool {
	if containsAny(url, postLoginURLFragments) {
		return true
	}
	if containsAny(title, signInTitleMarkers) {
		return false
	}
	return containsAny(title, authenticatedTitleMarkers)
}

// classifyPasswordStepFailure disambiguates why the password field never
// rendered, from the page text. Order matters and is part of the contract.
func classifyPasswordStepFailure(text string) ErrorCode {
	switch {
	case containsAny(text, emailNotFoundMarkers):
		return CodeEmailNotFound
	case containsAny(text, suspiciousActivityMarkers):
		return CodeSuspiciousActivity
	case containsAny(text, verificationRequiredMarkers):
		return CodeVerificationRequired
	default:
		return CodeElementNotFound
	}
}

// classifyOutcome maps the post-submit page to a terminal result. Priority
// is fixed: wrong password beats two-factor beats post-login URL; an
// unrecognized quiet page is treated as success, since the provider's
// valid post-login surface is not enumerable.
func classifyOutcome(url, text string) Result {
	switch {
	case containsAny(text, wrongPasswordMarkers):
		return Fail(CodeWrongPassword, "provider rejected the password")
	case containsAny(url, twoFactorURLFragments) || containsAny(text, twoFactorTextMarkers):
		return Fail(CodeTwoFactorRequired, "account requires two-factor verification")
	case containsAny(url, postLoginURLFragments):
		return Succeed("signed in, post-login page reached")
	default:
		return Succeed("signed in, no failure indicators after submit")
	}
}
