// Package autherr defines the coded error type shared by all authcore
// subsystems. Every security-relevant failure carries a stable [Code] so
// callers can pattern-match on the code instead of string-matching
// messages. Codes are internal routing identifiers; the HTTP layer is
// expected to collapse most of them into a uniform "authentication
// failed" response so token state is not leaked to attackers.
package autherr

import (
	"errors"
	"fmt"
	"time"
)

// Code is a stable machine-readable failure identifier.
type Code string

const (
	CodeTokenGenerationFailed   Code = "TOKEN_GENERATION_FAILED"
	CodeTokenVerificationFailed Code = "TOKEN_VERIFICATION_FAILED"
	CodeTokenExpired            Code = "TOKEN_EXPIRED"
	CodeTokenNotYetValid        Code = "TOKEN_NOT_YET_VALID"
	CodeTokenRevoked            Code = "TOKEN_REVOKED"
	CodeTokenDeviceMismatch     Code = "TOKEN_DEVICE_MISMATCH"
	CodeTokenNotActive          Code = "TOKEN_NOT_ACTIVE"
	CodeInvalidTokenFormat      Code = "INVALID_TOKEN_FORMAT"
	CodeAccountLocked           Code = "ACCOUNT_LOCKED"
	CodeRateLimitExceeded       Code = "RATE_LIMIT_EXCEEDED"
	CodeSessionCreationFailed   Code = "SESSION_CREATION_FAILED"
	CodePasswordPolicyViolation Code = "PASSWORD_POLICY_VIOLATION"
	CodePasswordReuseViolation  Code = "PASSWORD_REUSE_VIOLATION"
	CodeInvalidCredentials      Code = "INVALID_CREDENTIALS"
)

// Error is the coded error propagated by authcore subsystems.
//
// RetryAfter is set only for rate/lockout conditions, where telling a
// legitimate client how long to back off is safe and useful. It is never
// set on token or credential failures.
type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
	err        error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports code equality, so errors.Is(err, autherr.E(code, "")) works
// alongside the more direct [HasCode].
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// E creates a coded error with no underlying cause.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. The cause is
// preserved for errors.Is/As but must never reach an external client.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// Retry creates a rate/lockout error carrying a client back-off hint.
func Retry(code Code, message string, retryAfter time.Duration) *Error {
	return &Error{Code: code, Message: message, RetryAfter: retryAfter}
}

// CodeOf extracts the code from err, or "" when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err (or anything it wraps) carries code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// RetryAfterOf extracts the back-off hint from err, or zero.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
