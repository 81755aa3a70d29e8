// Package errors provides standardized domain errors with codes for the Quaver API.
//
// Usage:
//
//	// In services - return typed errors
//	if track == nil {
//	    return errors.NotFoundf("unknown item %q", id)
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrPathEscape) {
//	    response.Forbidden(w, err.Error(), logger)
//	    return
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeSourceMissing         Code = "SOURCE_MISSING"
	CodeTranscoderUnavailable Code = "TRANSCODER_UNAVAILABLE"
	CodeReadinessTimeout      Code = "READINESS_TIMEOUT"
	CodeTranscoderNoOutput    Code = "TRANSCODER_NO_OUTPUT"
	CodePathEscape            Code = "PATH_ESCAPE"
	CodeSegmentNotFound       Code = "SEGMENT_NOT_FOUND"
	CodeValidation            Code = "VALIDATION"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeInternal              Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeSourceMissing, CodeSegmentNotFound:
		return http.StatusNotFound
	case CodePathEscape:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTranscoderUnavailable, CodeReadinessTimeout, CodeTranscoderNoOutput:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound              = &Error{Code: CodeNotFound, Message: "not found"}
	ErrSourceMissing         = &Error{Code: CodeSourceMissing, Message: "source file missing"}
	ErrTranscoderUnavailable = &Error{Code: CodeTranscoderUnavailable, Message: "transcoder unavailable"}
	ErrReadinessTimeout      = &Error{Code: CodeReadinessTimeout, Message: "timed out waiting for transcoder output"}
	ErrTranscoderNoOutput    = &Error{Code: CodeTranscoderNoOutput, Message: "transcoder exited without output"}
	ErrPathEscape            = &Error{Code: CodePathEscape, Message: "path escapes cache root"}
	ErrSegmentNotFound       = &Error{Code: CodeSegmentNotFound, Message: "segment not found"}
	ErrValidation            = &Error{Code: CodeValidation, Message: "validation error"}
	ErrRateLimited           = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrInternal              = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// SourceMissing creates a source missing error.
func SourceMissing(msg string) *Error {
	return &Error{Code: CodeSourceMissing, Message: msg}
}

// SourceMissingf creates a source missing error with formatted message.
func SourceMissingf(format string, args ...any) *Error {
	return &Error{Code: CodeSourceMissing, Message: fmt.Sprintf(format, args...)}
}

// TranscoderUnavailable creates a transcoder unavailable error.
func TranscoderUnavailable(msg string) *Error {
	return &Error{Code: CodeTranscoderUnavailable, Message: msg}
}

// ReadinessTimeout creates a readiness timeout error.
func ReadinessTimeout(msg string) *Error {
	return &Error{Code: CodeReadinessTimeout, Message: msg}
}

// TranscoderNoOutput creates an error for a transcoder that died without output.
func TranscoderNoOutput(msg string) *Error {
	return &Error{Code: CodeTranscoderNoOutput, Message: msg}
}

// PathEscape creates a path escape error.
func PathEscape(msg string) *Error {
	return &Error{Code: CodePathEscape, Message: msg}
}

// SegmentNotFound creates a segment not found error.
func SegmentNotFound(msg string) *Error {
	return &Error{Code: CodeSegmentNotFound, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates a rate limited error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
