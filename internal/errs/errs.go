// Package errs defines the error taxonomy for platform calls and the
// cache ledger. Per-call failures are carried as values alongside partial
// results; only AuthError aborts a run.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies an error for propagation policy.
type Code string

const (
	// CodeTransientAPI covers network failures, timeouts, 5xx and
	// rate-limit responses. Scoped to one call.
	CodeTransientAPI Code = "TRANSIENT_API"

	// CodeUpstreamLogic covers malformed or unexpected payload shapes
	// from one platform call. Scoped to that call.
	CodeUpstreamLogic Code = "UPSTREAM_LOGIC"

	// CodeAuth covers token/credential acquisition failure. Fatal to the
	// run: no platform call can proceed without credentials.
	CodeAuth Code = "AUTH"

	// CodeCacheIO covers an unreadable or unwritable ledger. Reads degrade
	// to an empty ledger; writes are best-effort.
	CodeCacheIO Code = "CACHE_IO"
)

// Error is a coded error with optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a transient API failure.
func Transient(msg string, err error) *Error {
	return &Error{Code: CodeTransientAPI, Message: msg, Err: err}
}

// Transientf creates a transient API failure with no cause.
func Transientf(format string, args ...any) *Error {
	return &Error{Code: CodeTransientAPI, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps err as an unexpected-payload failure.
func Upstream(msg string, err error) *Error {
	return &Error{Code: CodeUpstreamLogic, Message: msg, Err: err}
}

// Upstreamf creates an unexpected-payload failure with no cause.
func Upstreamf(format string, args ...any) *Error {
	return &Error{Code: CodeUpstreamLogic, Message: fmt.Sprintf(format, args...)}
}

// Auth wraps err as a credential acquisition failure.
func Auth(msg string, err error) *Error {
	return &Error{Code: CodeAuth, Message: msg, Err: err}
}

// CacheIO wraps err as a ledger read/write failure.
func CacheIO(msg string, err error) *Error {
	return &Error{Code: CodeCacheIO, Message: msg, Err: err}
}

// HasCode reports whether err is (or wraps) an *Error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsFatal reports whether err should terminate the whole run.
func IsFatal(err error) bool {
	return HasCode(err, CodeAuth)
}
