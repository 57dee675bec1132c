package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/social-connect/internal/config"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/stretchr/testify/require"
)

func TestZeroSettingsFallBackToDefaults(t *testing.T) {
	s := &config.Settings{}

	require.Equal(t, "DEV", s.GetEnv())
	require.Equal(t, 3000, s.GetCallbackPort())
	require.Equal(t, 3001, s.GetFallbackPort())
	require.Equal(t, "127.0.0.1", s.GetCallbackHost())
	require.Equal(t, 10*time.Minute, s.GetAttemptTTL())
	require.Equal(t, 60*time.Second, s.GetRefreshMargin())
	require.Equal(t, 30*time.Second, s.GetHTTPTimeout())
	require.Equal(t, 5*time.Minute, s.GetKeepAliveInterval())
	require.Equal(t, 10*time.Minute, s.GetKeepAliveLookahead())
	require.Equal(t, "sqlite", s.GetStoreType())
	require.Equal(t, filepath.Join("./data", "accounts.db"), s.GetStorePath())

	_, ok := s.GetPlatformClient(platforms.GitHub)
	require.False(t, ok)
}

func TestNonLoopbackHostIsRejected(t *testing.T) {
	s := &config.Settings{Listener: config.ListenerSettings{Host: "0.0.0.0"}}
	require.Equal(t, "127.0.0.1", s.GetCallbackHost())
}

func TestLoadYAMLWithEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: test
listener:
  port: 4000
oauth:
  attempt_ttl: 5m
platforms:
  mastodon:
    client_id: masto-id
    client_secret: masto-secret
    base_url: https://fosstodon.org
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("CALLBACK_FALLBACK_PORT", "4001")

	s, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "TEST", s.GetEnv())
	require.Equal(t, 4000, s.GetCallbackPort())
	require.Equal(t, 4001, s.GetFallbackPort())
	require.Equal(t, 5*time.Minute, s.GetAttemptTTL())

	masto, ok := s.GetPlatformClient(platforms.Mastodon)
	require.True(t, ok)
	require.Equal(t, "https://fosstodon.org", masto.BaseURL)

	gh, ok := s.GetPlatformClient(platforms.GitHub)
	require.True(t, ok)
	require.Equal(t, "gh-id", gh.ClientID)
}
