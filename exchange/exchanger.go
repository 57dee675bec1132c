// Package exchange turns authorization codes and refresh tokens into access
// tokens. Every platform is served by the same OAuth2Exchanger configured
// with a platform Profile.
package exchange

import (
	"context"
	"time"

	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/platforms"
)

// TokenSet is what a token endpoint granted.
type TokenSet struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Scope            []string
	// IDToken is the raw OpenID Connect ID token, if one was returned.
	IDToken string
}

// Identity is who the token belongs to. Either field may be empty.
type Identity struct {
	Name    string
	Subject string
}

// StateConsumer validates and consumes the state that accompanies a code.
// *authflow.Tracker implements it.
type StateConsumer interface {
	Consume(platform platforms.Platform, state string) (*authflow.Attempt, bool)
}

// Exchanger is the per-platform token capability set.
type Exchanger interface {
	Platform() platforms.Platform
	// AuthCodeURL builds the URL the user's browser is sent to.
	AuthCodeURL(attempt *authflow.Attempt) string
	// Exchange validates state, then redeems code for tokens.
	Exchange(ctx context.Context, code, state string) (*TokenSet, error)
	// Refresh redeems a refresh token. The returned refresh token, rotated
	// or not, must be persisted by the caller.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)
	// Identity looks up who the tokens belong to.
	Identity(ctx context.Context, tokens *TokenSet) (*Identity, error)
}
