// Package domainerrors provides coded domain errors. Services construct these
// at the boundary between infrastructure facts (see pkg/platform/sentinel) and
// the API surface, so handlers can map codes to transport status without
// string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for callers and transports.
type Code string

const (
	// CodeInvalidInput marks malformed, empty, or zero-valued input.
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation marks a request that fails structural validation.
	CodeValidation Code = "validation_failed"
	// CodeBadRequest marks a request the transport layer cannot accept.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks a caller lacking the required role or standing.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an authenticated caller denied by policy.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks a reference to a record that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a uniqueness violation.
	CodeConflict Code = "conflict"
	// CodeInvalidState marks an operation invalid for the record's state.
	CodeInvalidState Code = "invalid_state"
	// CodeInvariantViolation marks a broken aggregate invariant. Model
	// constructors return this; services translate it for API responses.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout marks a cancelled or deadline-exceeded operation.
	CodeTimeout Code = "timeout"
	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. The wrapped cause, if any, is reachable via
// errors.Unwrap for logging; the code and message are the caller-facing part.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// GetCode extracts the code from err, or CodeInternal when err carries none.
func GetCode(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is an alias of HasCode, matching the errors.Is reading in tests.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// Message extracts the caller-facing message from err, or "" when err is not
// a coded error.
func Message(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}
