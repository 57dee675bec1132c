package config

import "github.com/jrsteele09/social-connect/platforms"

type PlatformConfig interface {
	// GetPlatformClient returns the app registration for a platform and
	// whether one is configured.
	GetPlatformClient(p platforms.Platform) (ClientSettings, bool)
}

// ClientSettings is one OAuth app registration.
type ClientSettings struct {
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	Scopes       []string `yaml:"scopes" env:"SCOPES"`

	// BaseURL overrides the platform host. Required for Mastodon (the
	// instance URL), optional elsewhere.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// OpenID requests the openid/profile scopes and reads identity from
	// the ID token (LinkedIn).
	OpenID bool `yaml:"openid" env:"OPENID"`
}

type PlatformSettings struct {
	Twitter  ClientSettings `yaml:"twitter" env-prefix:"TWITTER_"`
	LinkedIn ClientSettings `yaml:"linkedin" env-prefix:"LINKEDIN_"`
	Mastodon ClientSettings `yaml:"mastodon" env-prefix:"MASTODON_"`
	Facebook ClientSettings `yaml:"facebook" env-prefix:"FACEBOOK_"`
	GitHub   ClientSettings `yaml:"github" env-prefix:"GITHUB_"`
}

func (s *Settings) GetPlatformClient(p platforms.Platform) (ClientSettings, bool) {
	var c ClientSettings
	switch p {
	case platforms.Twitter:
		c = s.Platforms.Twitter
	case platforms.LinkedIn:
		c = s.Platforms.LinkedIn
	case platforms.Mastodon:
		c = s.Platforms.Mastodon
	case platforms.Facebook:
		c = s.Platforms.Facebook
	case platforms.GitHub:
		c = s.Platforms.GitHub
	default:
		return ClientSettings{}, false
	}
	return c, c.ClientID != ""
}
