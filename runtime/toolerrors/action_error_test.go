package toolerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsMessageAndReason(t *testing.T) {
	err := New("", "")
	require.Equal(t, "action error", err.Error())
	require.Equal(t, ReasonUnknown, err.Reason)
}

func TestNewWithCauseWrapsPlainError(t *testing.T) {
	cause := errors.New("boom")
	err := NewWithCause("tool failed", ReasonTimeout, cause)
	require.Equal(t, "tool failed", err.Error())
	require.Equal(t, ReasonTimeout, err.Reason)
	require.Equal(t, "boom", err.Cause.Error())
}

func TestNewWithCauseDefaultsMessageToCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewWithCause("", ReasonTimeout, cause)
	require.Equal(t, "boom", err.Error())
}

func TestFromErrorReturnsNilForNil(t *testing.T) {
	require.Nil(t, FromError(nil))
}

func TestFromErrorPreservesExistingActionError(t *testing.T) {
	original := New("already structured", ReasonRateLimited)
	require.Same(t, original, FromError(original))
}

func TestFromErrorWrapsPlainError(t *testing.T) {
	err := FromError(errors.New("plain"))
	require.Equal(t, "plain", err.Error())
	require.Equal(t, ReasonUnknown, err.Reason)
}

func TestErrorsIsMatchesThroughUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewWithCause("wrapping", ReasonDependencyFailed, cause)
	require.True(t, errors.Is(err, err.Cause))
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := Errorf("action %q failed with code %d", "fetch", 42)
	require.Equal(t, `action "fetch" failed with code 42`, err.Error())
	require.Equal(t, ReasonUnknown, err.Reason)
}

func TestNilActionErrorErrorIsEmpty(t *testing.T) {
	var err *ActionError
	require.Equal(t, "", err.Error())
	require.Nil(t, err.Unwrap())
}
