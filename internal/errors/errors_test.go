package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapfKeepsChain(t *testing.T) {
	err := apperrors.Wrapf(apperrors.ErrReauthRequired, "refresh %s", "acc-1")
	require.EqualError(t, err, "refresh acc-1: re-authentication required")
	require.True(t, apperrors.Is(err, apperrors.ErrReauthRequired))
	require.Nil(t, apperrors.Wrapf(nil, "ignored"))
}

func TestRetryable(t *testing.T) {
	require.True(t, apperrors.Retryable(fmt.Errorf("exchange: %w", apperrors.ErrTransientNetwork)))
	require.False(t, apperrors.Retryable(apperrors.ErrExpiredOrUsedCode))
	require.False(t, apperrors.Retryable(apperrors.ErrInvalidClientCredentials))
	require.False(t, apperrors.Retryable(nil))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{apperrors.ErrCsrfMismatch, "Restart the connection"},
		{apperrors.ErrInvalidClientCredentials, "settings"},
		{fmt.Errorf("x: %w", apperrors.ErrReauthRequired), "reconnected"},
		{apperrors.New("boom"), "Something went wrong"},
	}
	for _, tt := range tests {
		require.Contains(t, apperrors.UserMessage(tt.err), tt.want)
	}
	require.Empty(t, apperrors.UserMessage(nil))
}
