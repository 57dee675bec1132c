package exchange

import (
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/social-connect/internal/config"
	"github.com/jrsteele09/social-connect/platforms"
	"golang.org/x/oauth2/endpoints"
)

// Profile is the static description of one platform's OAuth quirks.
type Profile struct {
	Platform platforms.Platform
	AuthURL  string
	TokenURL string
	Scopes   []string

	// PKCE sends an S256 code challenge and the matching verifier.
	PKCE bool

	// DefaultLifetime applies when the token response has no expires_in.
	// Zero means tokens do not expire.
	DefaultLifetime time.Duration

	// IdentityURL is fetched with the access token to learn the username.
	IdentityURL string
	// IdentityField and SubjectField are dotted JSON paths into the
	// IdentityURL response.
	IdentityField  string
	SubjectField   string
	IdentityPrefix string
	IdentitySuffix string
	// IdentityMayFail marks platforms whose profile endpoint is routinely
	// unavailable to apps with only posting scopes.
	IdentityMayFail bool

	// OIDCIssuer enables reading identity from a verified ID token.
	OIDCIssuer string
}

const (
	defaultMastodonInstance = "https://mastodon.social"
	facebookGraphVersion    = "v19.0"
)

// DefaultProfiles returns the profile table for every platform. The client
// settings only contribute the per-installation parts: scopes overrides,
// the Mastodon instance, LinkedIn OpenID and base URL overrides.
func DefaultProfiles(cfg config.PlatformConfig) map[platforms.Platform]Profile {
	out := make(map[platforms.Platform]Profile, len(platforms.All()))
	for _, p := range platforms.All() {
		client, _ := cfg.GetPlatformClient(p)
		out[p] = ProfileFor(p, client)
	}
	return out
}

// ProfileFor builds one platform's profile.
func ProfileFor(p platforms.Platform, client config.ClientSettings) Profile {
	var prof Profile

	switch p {
	case platforms.Twitter:
		prof = Profile{
			AuthURL:         "https://twitter.com/i/oauth2/authorize",
			TokenURL:        "https://api.twitter.com/2/oauth2/token",
			Scopes:          []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			PKCE:            true,
			DefaultLifetime: 2 * time.Hour,
			IdentityURL:     "https://api.twitter.com/2/users/me",
			IdentityField:   "data.username",
			SubjectField:    "data.id",
			IdentityPrefix:  "@",
		}

	case platforms.LinkedIn:
		prof = Profile{
			AuthURL:         endpoints.LinkedIn.AuthURL,
			TokenURL:        endpoints.LinkedIn.TokenURL,
			Scopes:          []string{"w_member_social"},
			DefaultLifetime: 60 * 24 * time.Hour,
			IdentityURL:     "https://api.linkedin.com/v2/userinfo",
			IdentityField:   "name",
			SubjectField:    "sub",
			IdentityMayFail: true,
		}
		if client.OpenID {
			prof.Scopes = append(prof.Scopes, "openid", "profile")
			prof.OIDCIssuer = "https://www.linkedin.com/oauth"
		}

	case platforms.Mastodon:
		instance := strings.TrimRight(client.BaseURL, "/")
		if instance == "" {
			instance = defaultMastodonInstance
		}
		prof = Profile{
			AuthURL:        instance + "/oauth/authorize",
			TokenURL:       instance + "/oauth/token",
			Scopes:         []string{"read:accounts", "write:statuses", "write:media"},
			PKCE:           true,
			IdentityURL:    instance + "/api/v1/accounts/verify_credentials",
			IdentityField:  "username",
			SubjectField:   "id",
			IdentityPrefix: "@",
			IdentitySuffix: "@" + hostOf(instance),
		}
		// the instance already is the base URL
		client.BaseURL = ""

	case platforms.Facebook:
		// endpoints.Facebook pins Graph v3.2, which is retired
		prof = Profile{
			AuthURL:         "https://www.facebook.com/" + facebookGraphVersion + "/dialog/oauth",
			TokenURL:        "https://graph.facebook.com/" + facebookGraphVersion + "/oauth/access_token",
			Scopes:          []string{"pages_manage_posts", "pages_read_engagement", "instagram_basic", "instagram_content_publish"},
			DefaultLifetime: 60 * 24 * time.Hour,
			IdentityURL:     "https://graph.facebook.com/" + facebookGraphVersion + "/me?fields=id,name",
			IdentityField:   "name",
			SubjectField:    "id",
		}

	case platforms.GitHub:
		prof = Profile{
			AuthURL:       endpoints.GitHub.AuthURL,
			TokenURL:      endpoints.GitHub.TokenURL,
			Scopes:        []string{"read:user", "public_repo"},
			IdentityURL:   "https://api.github.com/user",
			IdentityField: "login",
			SubjectField:  "id",
		}
	}

	prof.Platform = p
	if len(client.Scopes) > 0 {
		prof.Scopes = append([]string(nil), client.Scopes...)
	}
	if client.BaseURL != "" {
		prof.AuthURL = rebase(prof.AuthURL, client.BaseURL)
		prof.TokenURL = rebase(prof.TokenURL, client.BaseURL)
		prof.IdentityURL = rebase(prof.IdentityURL, client.BaseURL)
	}
	return prof
}

// rebase moves rawURL onto base, keeping its path and query.
func rebase(rawURL, base string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return rawURL
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	u.Path = strings.TrimRight(b.Path, "/") + u.Path
	return u.String()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
