package exchange_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/social-connect/exchange"
	"github.com/jrsteele09/social-connect/internal/config"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/stretchr/testify/require"
)

func newProfileServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func exchangerAt(p platforms.Platform, base string, opts ...exchange.Option) *exchange.OAuth2Exchanger {
	client := config.ClientSettings{ClientID: "cid", ClientSecret: "csecret", BaseURL: base, OpenID: true}
	return exchange.NewOAuth2Exchanger(exchange.ProfileFor(p, client), client, nil, "", opts...)
}

func TestIdentityFromProfileEndpoint(t *testing.T) {
	tests := []struct {
		platform platforms.Platform
		body     string
		name     string
		subject  string
	}{
		{platforms.Twitter, `{"data":{"id":"42","username":"alice"}}`, "@alice", "42"},
		{platforms.GitHub, `{"id":583231,"login":"octocat"}`, "octocat", "583231"},
		{platforms.Facebook, `{"id":"10","name":"Page Owner"}`, "Page Owner", "10"},
		{platforms.LinkedIn, `{"sub":"abc","name":"Ada Lovelace"}`, "Ada Lovelace", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.platform.String(), func(t *testing.T) {
			srv := newProfileServer(t, http.StatusOK, tt.body)
			e := exchangerAt(tt.platform, srv.URL)

			id, err := e.Identity(context.Background(), &exchange.TokenSet{AccessToken: "at"})
			require.NoError(t, err)
			require.Equal(t, tt.name, id.Name)
			require.Equal(t, tt.subject, id.Subject)
		})
	}
}

func TestMastodonIdentityIncludesInstance(t *testing.T) {
	srv := newProfileServer(t, http.StatusOK, `{"id":"7","username":"bob","acct":"bob"}`)
	e := exchangerAt(platforms.Mastodon, srv.URL)

	id, err := e.Identity(context.Background(), &exchange.TokenSet{AccessToken: "at"})
	require.NoError(t, err)
	host := strings.TrimPrefix(srv.URL, "http://")
	require.Equal(t, "@bob@"+host, id.Name)
}

func TestIdentityFailures(t *testing.T) {
	srv := newProfileServer(t, http.StatusForbidden, `{}`)
	e := exchangerAt(platforms.LinkedIn, srv.URL)

	_, err := e.Identity(context.Background(), &exchange.TokenSet{AccessToken: "at"})
	require.ErrorIs(t, err, apperrors.ErrTokenRejected)

	_, err = e.Identity(context.Background(), &exchange.TokenSet{AccessToken: "wrong"})
	require.ErrorIs(t, err, apperrors.ErrReauthRequired)

	_, err = e.Identity(context.Background(), nil)
	require.Error(t, err)
}

func TestIdentityFromVerifiedIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	const issuer = "https://www.linkedin.com/oauth"
	verifier := oidc.NewVerifier(issuer,
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&oidc.Config{ClientID: "cid"},
	)

	sign := func(claims jwt.MapClaims) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return raw
	}
	now := time.Now()

	// the profile endpoint would answer differently, proving the ID token won
	srv := newProfileServer(t, http.StatusOK, `{"sub":"from-profile","name":"Profile Name"}`)
	e := exchangerAt(platforms.LinkedIn, srv.URL, exchange.WithIDTokenVerifier(verifier))

	good := sign(jwt.MapClaims{
		"iss": issuer, "aud": "cid", "sub": "member-1",
		"given_name": "Grace", "family_name": "Hopper",
		"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	})
	id, err := e.Identity(context.Background(), &exchange.TokenSet{AccessToken: "at", IDToken: good})
	require.NoError(t, err)
	require.Equal(t, "Grace Hopper", id.Name)
	require.Equal(t, "member-1", id.Subject)

	wrongAudience := sign(jwt.MapClaims{
		"iss": issuer, "aud": "someone-else", "sub": "member-1", "name": "Mallory",
		"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	})
	id, err = e.Identity(context.Background(), &exchange.TokenSet{AccessToken: "at", IDToken: wrongAudience})
	require.NoError(t, err)
	require.Equal(t, "Profile Name", id.Name)
	require.Equal(t, "from-profile", id.Subject)
}

func TestExchangeCapturesIDToken(t *testing.T) {
	srv := newTokenServer(t, ok(map[string]any{"access_token": "at", "id_token": "header.payload.sig", "expires_in": 3600}))
	e, tracker := newExchanger(t, platforms.LinkedIn, srv)
	attempt, err := tracker.Issue(platforms.LinkedIn)
	require.NoError(t, err)

	tokens, err := e.Exchange(context.Background(), "code", attempt.State)
	require.NoError(t, err)
	require.Equal(t, "header.payload.sig", tokens.IDToken)
}
