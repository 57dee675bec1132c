package platforms

import (
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/social-connect/internal/errors"
)

// Platform identifies a social network the application can publish to.
type Platform string

const (
	// Twitter uses OAuth 2.0 with mandatory PKCE.
	// Access tokens live two hours; a refresh token is issued when the
	// offline.access scope is granted.
	Twitter Platform = "twitter"

	// LinkedIn grants w_member_social without app review. Profile lookups
	// need extra products and may fail even though posting works.
	LinkedIn Platform = "linkedin"

	// Mastodon is instance specific; tokens do not expire.
	Mastodon Platform = "mastodon"

	// Facebook covers Facebook pages and Instagram business accounts.
	// Long-lived user tokens last about 60 days with no refresh token.
	Facebook Platform = "facebook"

	// GitHub OAuth app tokens do not expire unless expiring tokens are enabled.
	GitHub Platform = "github"
)

var all = []Platform{Twitter, LinkedIn, Mastodon, Facebook, GitHub}

// All returns every supported platform in a stable order.
func All() []Platform {
	out := make([]Platform, len(all))
	copy(out, all)
	return out
}

// Parse converts a user or URL supplied name into a Platform.
func Parse(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("%q: %w", name, apperrors.ErrUnknownPlatform)
	}
	return p, nil
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	for _, known := range all {
		if p == known {
			return true
		}
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// DisplayName is the human readable platform name used on callback pages.
func (p Platform) DisplayName() string {
	switch p {
	case Twitter:
		return "Twitter"
	case LinkedIn:
		return "LinkedIn"
	case Mastodon:
		return "Mastodon"
	case Facebook:
		return "Facebook"
	case GitHub:
		return "GitHub"
	}
	return string(p)
}
