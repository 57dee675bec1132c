package config

import "time"

type OAuthConfig interface {
	GetAttemptTTL() time.Duration
	GetRefreshMargin() time.Duration
	GetHTTPTimeout() time.Duration
	GetRetryBackoff() time.Duration
	GetSweepInterval() time.Duration
	GetCompletionTimeout() time.Duration
	GetKeepAliveInterval() time.Duration
	GetKeepAliveLookahead() time.Duration
}

type OAuthSettings struct {
	AttemptTTL        time.Duration `yaml:"attempt_ttl" env:"ATTEMPT_TTL" env-default:"10m"`
	RefreshMargin     time.Duration `yaml:"refresh_margin" env:"REFRESH_MARGIN" env-default:"60s"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF" env-default:"500ms"`
	SweepInterval     time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"1m"`
	CompletionTimeout time.Duration `yaml:"completion_timeout" env:"COMPLETION_TIMEOUT" env-default:"90s"`
	// serve refreshes tokens expiring within KeepAliveLookahead every
	// KeepAliveInterval.
	KeepAliveInterval  time.Duration `yaml:"keepalive_interval" env:"KEEPALIVE_INTERVAL" env-default:"5m"`
	KeepAliveLookahead time.Duration `yaml:"keepalive_lookahead" env:"KEEPALIVE_LOOKAHEAD" env-default:"10m"`
}

// GetAttemptTTL is how long a pending authorization attempt stays valid.
func (s *Settings) GetAttemptTTL() time.Duration {
	return durationOr(s.OAuth.AttemptTTL, 10*time.Minute)
}

// GetRefreshMargin is how close to expiry a token is refreshed before use.
func (s *Settings) GetRefreshMargin() time.Duration {
	return durationOr(s.OAuth.RefreshMargin, 60*time.Second)
}

func (s *Settings) GetHTTPTimeout() time.Duration {
	return durationOr(s.OAuth.HTTPTimeout, 30*time.Second)
}

func (s *Settings) GetRetryBackoff() time.Duration {
	return durationOr(s.OAuth.RetryBackoff, 500*time.Millisecond)
}

func (s *Settings) GetSweepInterval() time.Duration {
	return durationOr(s.OAuth.SweepInterval, time.Minute)
}

// GetCompletionTimeout bounds the background exchange started by a callback.
func (s *Settings) GetCompletionTimeout() time.Duration {
	return durationOr(s.OAuth.CompletionTimeout, 90*time.Second)
}

func (s *Settings) GetKeepAliveInterval() time.Duration {
	return durationOr(s.OAuth.KeepAliveInterval, 5*time.Minute)
}

func (s *Settings) GetKeepAliveLookahead() time.Duration {
	return durationOr(s.OAuth.KeepAliveLookahead, 10*time.Minute)
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
