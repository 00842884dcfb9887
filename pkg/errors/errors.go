// Package errors provides structured error types for the gadget container.
//
// Errors carry a machine-readable [Code] so that the HTTP layer and the CLI can
// decide on status codes and exit behavior without string matching.
//
// # Error Codes
//
// Codes fall into three groups:
//   - Startup: INVALID_DESCRIPTOR, INVALID_MANIFEST, DEPENDENCY_CYCLE. The
//     feature registry could not be built; the process must not serve.
//   - Request: SPEC_FETCH_FAILED, BLACKLISTED, INVALID_SPEC,
//     UNSUPPORTED_FEATURE, MISSING_SCRIPT_FILE. The render failed as a whole.
//   - Input: INVALID_INPUT, INVALID_URL, NOT_FOUND.
//
// Degraded conditions (a missing optional feature, a failed remote script) are
// never reported through this package; they are logged by the caller.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnsupportedFeature, "unsupported feature(s): %s", names)
//	if errors.Is(err, errors.ErrCodeUnsupportedFeature) {
//	    // 400
//	}
//
//	err := errors.Wrap(errors.ErrCodeSpecFetch, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidURL   Code = "INVALID_URL"
	ErrCodeNotFound     Code = "NOT_FOUND"

	// Registry construction errors (fatal at startup)
	ErrCodeInvalidDescriptor Code = "INVALID_DESCRIPTOR"
	ErrCodeInvalidManifest   Code = "INVALID_MANIFEST"
	ErrCodeDependencyCycle   Code = "DEPENDENCY_CYCLE"

	// Render errors (fatal for one request)
	ErrCodeSpecFetch          Code = "SPEC_FETCH_FAILED"
	ErrCodeBlacklisted        Code = "BLACKLISTED"
	ErrCodeInvalidSpec        Code = "INVALID_SPEC"
	ErrCodeUnsupportedFeature Code = "UNSUPPORTED_FEATURE"
	ErrCodeMissingScriptFile  Code = "MISSING_SCRIPT_FILE"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsStartup reports whether err is one of the registry construction failures
// after which the process must not serve requests.
func IsStartup(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidDescriptor, ErrCodeInvalidManifest, ErrCodeDependencyCycle:
		return true
	}
	return false
}
