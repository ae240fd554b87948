package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure for boundary handling. Every code maps
// to a distinct user-visible outcome at the transport boundary.
type ErrorCode string

const (
	// ErrInvalidInput marks caller-supplied empty or malformed data.
	// Never retried; reported verbatim to the caller.
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrUnknownCharacter marks a label absent from the character
	// catalog; the message names the offending label.
	ErrUnknownCharacter ErrorCode = "UNKNOWN_CHARACTER"

	// ErrNoActiveCharacter marks an operation that requires a
	// character selection that was never made.
	ErrNoActiveCharacter ErrorCode = "NO_ACTIVE_CHARACTER"

	// ErrConfigUnavailable marks a catalog load failure. Reported
	// generically to the user, logged with detail.
	ErrConfigUnavailable ErrorCode = "CONFIG_UNAVAILABLE"

	// ErrUpstreamFailure marks a remote model or transport error.
	// Reported generically to the user without leaking upstream text.
	ErrUpstreamFailure ErrorCode = "UPSTREAM_FAILURE"
)

// Error is a structured error with code, message and optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the code from an error chain. Returns the
// empty code when no *Error is present.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
