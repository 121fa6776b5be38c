package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailure_UnwrapAndKind(t *testing.T) {
	cause := errors.New("boom")
	f := NewFailure(KindTransient, "download", "", cause)

	wrapped := fmt.Errorf("outer: %w", f)

	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, KindTransient, KindOf(wrapped))
	require.True(t, IsRetryable(wrapped))
	require.Equal(t, "boom", UserMessage(wrapped))
}

func TestFailure_SentinelCause(t *testing.T) {
	f := NewFailure(KindDenied, "decrypt", ErrNoAccess.Error(), ErrNoAccess)

	require.ErrorIs(t, f, ErrNoAccess)
	require.False(t, IsRetryable(f))
	require.Equal(t, "no decryption access", UserMessage(f))
	require.Contains(t, f.Error(), "decrypt")
}

func TestKindOf_PlainError(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("x")))
	require.Equal(t, "", UserMessage(nil))
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindInput, "input"},
		{KindDenied, "denied"},
		{KindTransient, "transient"},
		{KindFatal, "fatal"},
		{KindCanceled, "canceled"},
		{KindUnknown, "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.k.String())
	}
}
