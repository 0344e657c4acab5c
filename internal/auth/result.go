// File: internal/auth/result.go

// Package auth drives the provider sign-in flow as a sequential state
// machine over an abstract page, classifying every known failure condition
// into a stable error code instead of surfacing raw browser errors.
package auth

import "fmt"

// ErrorCode enumerates every terminal failure category an attempt can
// produce. The set is closed; callers branch on these values to decide
// retry policy.
type ErrorCode string

const (
	// CodeSecurityChallenge means the provider presented a CAPTCHA or
	// device-verification interstitial. Never retried within an attempt.
	CodeSecurityChallenge ErrorCode = "SECURITY_CHALLENGE"

	// CodeRecoveryPage means a click landed on the account-recovery flow,
	// which only happens after a mis-click on a "forgot email" control.
	CodeRecoveryPage ErrorCode = "RECOVERY_PAGE_ERROR"

	// CodeEmailNotFound means the provider reported no account for the
	// supplied email.
	CodeEmailNotFound ErrorCode = "EMAIL_NOT_FOUND"

	// CodeSuspiciousActivity means the provider flagged the session before
	// the password step.
	CodeSuspiciousActivity ErrorCode = "SUSPICIOUS_ACTIVITY"

	// CodeVerificationRequired means the provider demands an out-of-band
	// verification step before continuing.
	CodeVerificationRequired ErrorCode = "VERIFICATION_REQUIRED"

	// CodeWrongPassword means the provider rejected the password.
	CodeWrongPassword ErrorCode = "WRONG_PASSWORD"

	// CodeTwoFactorRequired means the account has 2FA and the flow cannot
	// proceed unattended.
	CodeTwoFactorRequired ErrorCode = "TWO_FACTOR_REQUIRED"

	// CodeElementNotFound means a required page element never appeared
	// across every locator strategy and retry, including timeouts.
	CodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"

	// CodeAuthError is the catch-all for engine failures and unexpected
	// internal errors.
	CodeAuthError ErrorCode = "AUTH_ERROR"
)

// Credentials is the opaque email/password pair for one attempt. Values
// are never logged in full.
type Credentials struct {
	Email    string
	Password string
}

// Validate rejects empty fields before any browser work starts.
func (c Credentials) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("auth: email must not be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("auth: password must not be empty")
	}
	return nil
}

// Result is the terminal outcome of one attempt. Exactly one is produced
// per Authenticate call; Code is empty on success.
type Result struct {
	Success bool      `json:"success"`
	Code    ErrorCode `json:"error_code,omitempty"`
	Message string    `json:"message"`
}

// Succeed builds a success result.
func Succeed(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail builds a failure result with a taxonomy code.
func Fail(code ErrorCode, message string) Result {
	return Result{Success: false, Code: code, Message: message}
}
