package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the connect / token lifecycle core.
// Every failure returned across a package boundary wraps exactly one of these.
var (
	// Authorization attempt errors (terminal for the current attempt)
	ErrCsrfMismatch             = errors.New("state mismatch")
	ErrInvalidClientCredentials = errors.New("invalid client credentials")
	ErrExpiredOrUsedCode        = errors.New("authorization code expired or already used")
	ErrNoAuthorizationCode      = errors.New("no authorization code received")
	ErrAuthorizationDenied      = errors.New("authorization denied by platform")

	// Token lifecycle errors
	ErrTransientNetwork = errors.New("transient network error")
	ErrReauthRequired   = errors.New("re-authentication required")
	ErrTokenRejected    = errors.New("token endpoint rejected request")

	// Lookup errors
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrNotFound        = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import this package.
func New(text string) error {
	return errors.New(text)
}

// Retryable reports whether the caller may retry the failed operation.
// Only transient network failures qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}

// UserMessage returns an actionable message suitable for showing to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCsrfMismatch):
		return "The connection request expired or did not match. Restart the connection."
	case errors.Is(err, ErrInvalidClientCredentials):
		return "The platform rejected the app credentials. Check the client ID and secret in settings."
	case errors.Is(err, ErrExpiredOrUsedCode):
		return "The authorization code expired or was already used. Restart the connection."
	case errors.Is(err, ErrNoAuthorizationCode):
		return "No authorization code was received. Restart the connection."
	case errors.Is(err, ErrAuthorizationDenied):
		return "Access was not granted on the platform. Restart the connection to try again."
	case errors.Is(err, ErrReauthRequired):
		return "This account needs to be reconnected."
	case errors.Is(err, ErrTransientNetwork):
		return "The platform could not be reached. Try again shortly."
	case errors.Is(err, ErrUnknownPlatform):
		return "This platform is not supported or not configured."
	case errors.Is(err, ErrNotFound):
		return "The account was not found."
	default:
		return "Something went wrong while talking to the platform."
	}
}
