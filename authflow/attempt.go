package authflow

import (
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
)

// Attempt is one pending "connect platform" authorization.
type Attempt struct {
	// State is the anti-CSRF value sent to the platform and echoed back on
	// the callback. Single use.
	State    string
	Platform platforms.Platform
	// CodeVerifier is the PKCE secret matching the code_challenge sent in
	// the authorization URL.
	CodeVerifier string
	CreatedAt    time.Time
}

// Expired reports whether the attempt has outlived ttl.
func (a *Attempt) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(a.CreatedAt) >= ttl
}

const (
	// ErrorCodeNoCode is the synthetic error used when a callback carries
	// neither a code nor an error.
	ErrorCodeNoCode   = "no_code"
	noCodeDescription = "No authorization code received"
)

// CallbackResult is what the platform sent back to the loopback listener.
// It is never persisted.
type CallbackResult struct {
	Platform         platforms.Platform
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// NewCallbackResult normalises raw callback parameters. A request with
// neither code nor error becomes a no_code failure.
func NewCallbackResult(p platforms.Platform, code, state, errCode, errDesc string) CallbackResult {
	r := CallbackResult{
		Platform:         p,
		Code:             code,
		State:            state,
		ErrorCode:        errCode,
		ErrorDescription: errDesc,
	}
	if r.ErrorCode != "" {
		r.Code = ""
	} else if r.Code == "" {
		r.ErrorCode = ErrorCodeNoCode
		r.ErrorDescription = noCodeDescription
	}
	return r
}

// Succeeded reports whether the platform returned an authorization code.
func (r CallbackResult) Succeeded() bool {
	return r.ErrorCode == "" && r.Code != ""
}

// Err converts a failed callback into the error taxonomy. Nil on success.
func (r CallbackResult) Err() error {
	if r.Succeeded() {
		return nil
	}
	if r.ErrorCode == ErrorCodeNoCode {
		return fmt.Errorf("%s: %w", r.Platform, apperrors.ErrNoAuthorizationCode)
	}
	if r.ErrorDescription != "" {
		return fmt.Errorf("%s: %s (%s): %w", r.Platform, r.ErrorCode, r.ErrorDescription, apperrors.ErrAuthorizationDenied)
	}
	return fmt.Errorf("%s: %s: %w", r.Platform, r.ErrorCode, apperrors.ErrAuthorizationDenied)
}

// CallbackPath is the loopback path a platform redirects to. Redirect URIs
// registered with each platform must use it.
func CallbackPath(p platforms.Platform) string {
	return "/auth/" + string(p) + "/callback"
}
