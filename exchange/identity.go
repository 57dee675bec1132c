package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxProfileBody = 1 << 20

// Identity resolves who the tokens belong to. A verified ID token wins over
// the profile endpoint. Callers treat failures as "identity unknown".
func (e *OAuth2Exchanger) Identity(ctx context.Context, tokens *TokenSet) (*Identity, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrReauthRequired, "%s identity: no access token", e.profile.Platform)
	}

	if e.profile.OIDCIssuer != "" && tokens.IDToken != "" {
		id, err := e.identityFromIDToken(ctx, tokens.IDToken)
		if err == nil {
			return id, nil
		}
		log.Warn().Err(err).Str("platform", string(e.profile.Platform)).Msg("id token rejected, falling back to profile endpoint")
	}

	if e.profile.IdentityURL == "" {
		return &Identity{}, nil
	}

	id, err := e.identityFromProfile(ctx, tokens.AccessToken)
	if err != nil {
		ev := log.Warn()
		if e.profile.IdentityMayFail {
			ev = log.Debug()
		}
		ev.Err(err).Str("platform", string(e.profile.Platform)).Msg("profile lookup failed")
		return nil, err
	}
	return id, nil
}

func (e *OAuth2Exchanger) identityFromProfile(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.profile.IdentityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s profile request: %w", e.profile.Platform, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s profile: %s: %w", e.profile.Platform, transportDetail(err), apperrors.ErrTransientNetwork)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s profile: status %d: %w", e.profile.Platform, resp.StatusCode, apperrors.ErrReauthRequired)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s profile: status %d: %w", e.profile.Platform, resp.StatusCode, apperrors.ErrTransientNetwork)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s profile: status %d: %w", e.profile.Platform, resp.StatusCode, apperrors.ErrTokenRejected)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s profile: decode: %w", e.profile.Platform, err)
	}

	id := &Identity{Subject: lookupField(doc, e.profile.SubjectField)}
	if name := lookupField(doc, e.profile.IdentityField); name != "" {
		id.Name = e.profile.IdentityPrefix + name + e.profile.IdentitySuffix
	}
	return id, nil
}

// lookupField walks a dotted path such as "data.username". Numbers are
// returned in their JSON form.
func lookupField(doc map[string]any, path string) string {
	if path == "" {
		return ""
	}
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	switch v := cur.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

type idTokenClaims struct {
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

func (e *OAuth2Exchanger) identityFromIDToken(ctx context.Context, raw string) (*Identity, error) {
	verifier, err := e.idTokenVerifier(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%s id token: %w", e.profile.Platform, err)
	}

	var claims idTokenClaims
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id token claims: %w", e.profile.Platform, err)
	}

	name := claims.Name
	if name == "" {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}
	if name == "" {
		name = claims.PreferredUsername
	}
	if name == "" {
		name = claims.Email
	}
	return &Identity{Name: name, Subject: tok.Subject}, nil
}

// idTokenVerifier discovers the issuer lazily so that exchangers for
// platforms never connected do not touch the network.
func (e *OAuth2Exchanger) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	e.verifierMu.Lock()
	defer e.verifierMu.Unlock()
	if e.verifier != nil {
		return e.verifier, nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, e.httpClient), e.profile.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("%s oidc discovery: %w", e.profile.Platform, err)
	}
	e.verifier = provider.Verifier(&oidc.Config{ClientID: e.oauthConfig().ClientID})
	return e.verifier, nil
}
