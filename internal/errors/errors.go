// Package errors defines the application error type shared by the HTTP API,
// the pipeline stages and the stores. The Code decides how an error is
// surfaced; Message is the only text shown to API callers and end users.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"

	// ErrCodeConfiguration marks a missing provider credential.
	ErrCodeConfiguration ErrorCode = "configuration"
	// ErrCodeEmptyResult marks a provider lookup that succeeded but matched nothing.
	ErrCodeEmptyResult ErrorCode = "empty_result"
	// ErrCodeUpstream marks a transport, status or parse failure talking to a provider.
	ErrCodeUpstream ErrorCode = "upstream"
	// ErrCodeNotification marks an email that could not be delivered.
	ErrCodeNotification ErrorCode = "notification"
)

// AppError is a categorised error with a user-facing message and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation errors.
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NotFound creates a NotFound error.
func NotFound(message string) *AppError { return newError(ErrCodeNotFound, message) }

// Conflict creates a Conflict error.
func Conflict(message string) *AppError { return newError(ErrCodeConflict, message) }

// Validation creates a Validation error.
func Validation(message string) *AppError { return newError(ErrCodeValidation, message) }

// ValidationField creates a Validation error for a specific input field.
func ValidationField(field, message string) *AppError {
	e := newError(ErrCodeValidation, message)
	e.Field = field
	return e
}

// MissingCredential creates a Configuration error naming the absent
// environment variable, e.g. "Missing GEMINI_API_KEY".
func MissingCredential(envVar string) *AppError {
	return newError(ErrCodeConfiguration, "Missing "+envVar)
}

// EmptyResult creates an EmptyResult error. The message is shown to end users as-is.
func EmptyResult(message string) *AppError { return newError(ErrCodeEmptyResult, message) }

// Upstreamf creates an Upstream error with a formatted message.
func Upstreamf(format string, args ...any) *AppError {
	return newError(ErrCodeUpstream, fmt.Sprintf(format, args...))
}

// Wrap wraps err with an AppError, preserving the cause. A nil err returns nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// HasCode reports whether the outermost AppError in err's chain has code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return HasCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return HasCode(err, ErrCodeValidation) }

// IsConfiguration checks if an error is a Configuration error.
func IsConfiguration(err error) bool { return HasCode(err, ErrCodeConfiguration) }

// IsEmptyResult checks if an error is an EmptyResult error.
func IsEmptyResult(err error) bool { return HasCode(err, ErrCodeEmptyResult) }

// GetCode returns the outermost AppError code, or "" for other errors.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the outermost AppError field, or "".
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
