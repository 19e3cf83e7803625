// Package toolerrors provides a structured, chainable error type for
// action-execution failures, plus a small taxonomy of retry reasons
// downstream policy code can use to decide whether to retry, back off, or
// disable a tool.
package toolerrors

import (
	"errors"
	"fmt"
)

// RetryReason categorizes why an action execution failed, for callers that
// want to make retry or circuit-breaking decisions.
type RetryReason string

const (
	ReasonInvalidArguments  RetryReason = "invalid_arguments"
	ReasonTimeout           RetryReason = "timeout"
	ReasonRateLimited       RetryReason = "rate_limited"
	ReasonToolUnavailable   RetryReason = "tool_unavailable"
	ReasonDependencyFailed  RetryReason = "dependency_failed"
	ReasonUnknown           RetryReason = "unknown"
)

// ActionError represents a structured action failure that preserves
// message and causal context while still implementing the standard error
// interface. Errors may be nested via Cause to retain diagnostics across
// retries.
type ActionError struct {
	Message string
	Reason  RetryReason
	Cause   *ActionError
}

// New constructs an ActionError with the provided message and reason.
func New(message string, reason RetryReason) *ActionError {
	if message == "" {
		message = "action error"
	}
	if reason == "" {
		reason = ReasonUnknown
	}
	return &ActionError{Message: message, Reason: reason}
}

// NewWithCause constructs an ActionError that wraps an underlying error.
func NewWithCause(message string, reason RetryReason, cause error) *ActionError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ActionError{Message: message, Reason: reason, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into an ActionError chain.
func FromError(err error) *ActionError {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	return &ActionError{Message: err.Error(), Reason: ReasonUnknown, Cause: FromError(errors.Unwrap(err))}
}

// Errorf formats according to a format specifier and returns the result as
// an ActionError with reason ReasonUnknown.
func Errorf(format string, args ...any) *ActionError {
	return New(fmt.Sprintf(format, args...), ReasonUnknown)
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying error to support errors.Is/As.
func (e *ActionError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}
