package exchange

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/internal/config"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/internal/logging"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRetryBackoff = 500 * time.Millisecond

	// nonExpiringLifetime stands in for tokens that carry no expiry.
	nonExpiringLifetime = 10 * 365 * 24 * time.Hour
)

// OAuth2Exchanger implements Exchanger for any authorization-code platform
// described by a Profile.
type OAuth2Exchanger struct {
	profile    Profile
	states     StateConsumer
	httpClient *http.Client
	backoff    time.Duration
	clock      func() time.Time

	mu     sync.RWMutex
	config oauth2.Config

	verifierMu sync.Mutex
	verifier   *oidc.IDTokenVerifier
}

// Option configures an OAuth2Exchanger.
type Option func(*OAuth2Exchanger)

// WithHTTPClient replaces the HTTP client used for every platform call.
func WithHTTPClient(c *http.Client) Option {
	return func(e *OAuth2Exchanger) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithHTTPTimeout bounds every platform call.
func WithHTTPTimeout(d time.Duration) Option {
	return func(e *OAuth2Exchanger) {
		if d > 0 {
			e.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRetryBackoff sets the wait before the single transient retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *OAuth2Exchanger) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// WithClock overrides time.Now for expiry computation.
func WithClock(clock func() time.Time) Option {
	return func(e *OAuth2Exchanger) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDTokenVerifier supplies a prepared verifier instead of discovering
// the issuer's keys.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) Option {
	return func(e *OAuth2Exchanger) {
		e.verifier = v
	}
}

// NewOAuth2Exchanger creates an exchanger for one platform.
func NewOAuth2Exchanger(profile Profile, client config.ClientSettings, states StateConsumer, redirectURL string, opts ...Option) *OAuth2Exchanger {
	e := &OAuth2Exchanger{
		profile:    profile,
		states:     states,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		backoff:    DefaultRetryBackoff,
		clock:      time.Now,
		config: oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       append([]string(nil), profile.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:   profile.AuthURL,
				TokenURL:  profile.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *OAuth2Exchanger) Platform() platforms.Platform {
	return e.profile.Platform
}

// Profile returns the platform profile the exchanger was built with.
func (e *OAuth2Exchanger) Profile() Profile {
	return e.profile
}

// SetRedirectURL changes the redirect_uri sent from now on.
func (e *OAuth2Exchanger) SetRedirectURL(redirectURL string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.RedirectURL = redirectURL
}

// RedirectURL is the redirect_uri currently in use.
func (e *OAuth2Exchanger) RedirectURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config.RedirectURL
}

func (e *OAuth2Exchanger) oauthConfig() oauth2.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

func (e *OAuth2Exchanger) AuthCodeURL(attempt *authflow.Attempt) string {
	cfg := e.oauthConfig()
	var opts []oauth2.AuthCodeOption
	if e.profile.PKCE && attempt.CodeVerifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(attempt.CodeVerifier))
	}
	return cfg.AuthCodeURL(attempt.State, opts...)
}

func (e *OAuth2Exchanger) Exchange(ctx context.Context, code, state string) (*TokenSet, error) {
	attempt, ok := e.states.Consume(e.profile.Platform, state)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrCsrfMismatch, "%s exchange", e.profile.Platform)
	}

	cfg := e.oauthConfig()
	var opts []oauth2.AuthCodeOption
	if e.profile.PKCE && attempt.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(attempt.CodeVerifier))
	}

	tok, err := e.withRetry(ctx, phaseExchange, func(ctx context.Context) (*oauth2.Token, error) {
		return cfg.Exchange(ctx, code, opts...)
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("platform", string(e.profile.Platform)).Msg("authorization code exchanged")
	return e.tokenSet(tok), nil
}

func (e *OAuth2Exchanger) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrReauthRequired, "%s refresh: no refresh token", e.profile.Platform)
	}

	cfg := e.oauthConfig()
	tok, err := e.withRetry(ctx, phaseRefresh, func(ctx context.Context) (*oauth2.Token, error) {
		// an expired token with only the refresh token forces a refresh
		stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
		return cfg.TokenSource(ctx, stale).Token()
	})
	if err != nil {
		return nil, err
	}

	ts := e.tokenSet(tok)
	if ts.RefreshToken == "" {
		ts.RefreshToken = refreshToken
	}
	log.Debug().Str("platform", string(e.profile.Platform)).
		Bool("rotated", ts.RefreshToken != refreshToken).
		Str("refresh_fp", logging.Fingerprint(ts.RefreshToken)).
		Msg("access token refreshed")
	return ts, nil
}

// withRetry runs fn, retrying once after the backoff when the failure is
// transient.
func (e *OAuth2Exchanger) withRetry(ctx context.Context, ph phase, fn func(context.Context) (*oauth2.Token, error)) (*oauth2.Token, error) {
	hctx := context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	tok, err := fn(hctx)
	if err == nil {
		return tok, nil
	}
	cerr := classify(e.profile.Platform, ph, err)
	if !apperrors.Retryable(cerr) {
		return nil, cerr
	}

	log.Warn().Err(cerr).Str("platform", string(e.profile.Platform)).
		Dur("backoff", e.backoff).Msg("token endpoint unavailable, retrying once")

	timer := time.NewTimer(e.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, cerr
	case <-timer.C:
	}

	tok, err = fn(hctx)
	if err != nil {
		return nil, classify(e.profile.Platform, ph, err)
	}
	return tok, nil
}

func (e *OAuth2Exchanger) tokenSet(tok *oauth2.Token) *TokenSet {
	now := e.clock()
	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	switch secs, ok := extraSeconds(tok, "expires_in"); {
	case ok && secs > 0:
		ts.AccessExpiresAt = now.Add(time.Duration(secs) * time.Second)
	case !tok.Expiry.IsZero():
		ts.AccessExpiresAt = tok.Expiry
	case e.profile.DefaultLifetime > 0:
		ts.AccessExpiresAt = now.Add(e.profile.DefaultLifetime)
	default:
		ts.AccessExpiresAt = now.Add(nonExpiringLifetime)
	}

	if secs, ok := extraSeconds(tok, "refresh_token_expires_in"); ok && secs > 0 && ts.RefreshToken != "" {
		ts.RefreshExpiresAt = now.Add(time.Duration(secs) * time.Second)
	}

	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		ts.Scope = splitScope(scope)
	} else {
		ts.Scope = append([]string(nil), e.profile.Scopes...)
	}

	if idToken, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = idToken
	}
	return ts
}

// extraSeconds reads a numeric token response field. JSON responses
// decode numbers as float64, form-encoded ones as strings.
func extraSeconds(tok *oauth2.Token, key string) (int64, bool) {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func splitScope(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
}
