package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/social-connect/internal/app"
	"github.com/jrsteele09/social-connect/internal/config"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/jrsteele09/social-connect/session"
	"github.com/stretchr/testify/require"
)

func newInstance(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "md-token", "token_type": "Bearer"})
	})
	mux.HandleFunc("GET /api/v1/accounts/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","username":"dana"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSettings(t *testing.T, instance string) *config.Settings {
	t.Helper()
	cfg := &config.Settings{DataFolder: t.TempDir()}
	cfg.Platforms.Mastodon = config.ClientSettings{ClientID: "cid", ClientSecret: "secret", BaseURL: instance}
	return cfg
}

func connectThroughListener(t *testing.T, a *app.App) session.Outcome {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	_, err := a.StartListener(ctx)
	require.NoError(t, err)

	outcomes := make(chan session.Outcome, 1)
	defer a.Sessions.OnOutcome(func(o session.Outcome) { outcomes <- o })()

	authURL, err := a.Sessions.BeginAuthorization(platforms.Mastodon)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	redirect := u.Query().Get("redirect_uri")
	require.Equal(t, a.Listener.BaseURL()+"/auth/mastodon/callback", redirect)

	// the browser following the platform's redirect
	resp, err := http.Get(redirect + "?code=abc123&state=" + url.QueryEscape(u.Query().Get("state")))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case o := <-outcomes:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("authorization did not complete")
		return session.Outcome{}
	}
}

func TestConnectThroughListenerPersists(t *testing.T) {
	instance := newInstance(t)
	cfg := newSettings(t, instance.URL)

	a, err := app.New(cfg, app.WithListenerPorts(0))
	require.NoError(t, err)

	o := connectThroughListener(t, a)
	require.NoError(t, o.Err)
	require.Equal(t, platforms.Mastodon, o.Account.Platform)
	require.NoError(t, a.Listener.Shutdown(context.Background()))
	require.NoError(t, a.Close())

	_, err = os.Stat(filepath.Join(cfg.DataFolder, "sealing.key"))
	require.NoError(t, err)

	reopened, err := app.New(cfg, app.WithListenerPorts(0))
	require.NoError(t, err)
	defer reopened.Close()

	list, err := reopened.Sessions.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, o.Account.ID, list[0].ID)

	tok, err := reopened.Sessions.GetValidToken(context.Background(), list[0].ID)
	require.NoError(t, err)
	require.Equal(t, "md-token", tok)
}

func TestMemoryStoreAndUnknownStore(t *testing.T) {
	cfg := newSettings(t, "https://mastodon.example")
	cfg.Store.Type = app.StoreMemory

	a, err := app.New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	_, err = os.Stat(filepath.Join(cfg.DataFolder, "sealing.key"))
	require.True(t, os.IsNotExist(err))

	cfg.Store.Type = "postgres"
	_, err = app.New(cfg)
	require.Error(t, err)
}

func TestConfiguredEncryptionKeyIsUsed(t *testing.T) {
	cfg := newSettings(t, "https://mastodon.example")
	cfg.Security.EncryptionKey = "from-config"

	a, err := app.New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(filepath.Join(cfg.DataFolder, "sealing.key"))
	require.True(t, os.IsNotExist(err))
}

func newGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gh-token", "token_type": "bearer", "scope": "read:user"})
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"octo","id":7}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestConcurrentCallbacksForTwoPlatforms(t *testing.T) {
	cfg := newSettings(t, newInstance(t).URL)
	cfg.Store.Type = app.StoreMemory
	cfg.Platforms.GitHub = config.ClientSettings{ClientID: "gh-cid", ClientSecret: "gh-secret", BaseURL: newGitHub(t).URL}

	a, err := app.New(cfg, app.WithListenerPorts(0))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = a.StartListener(ctx)
	require.NoError(t, err)

	outcomes := make(chan session.Outcome, 8)
	defer a.Sessions.OnOutcome(func(o session.Outcome) { outcomes <- o })()

	type attempt struct {
		redirect, state string
	}
	begin := func(p platforms.Platform) attempt {
		authURL, err := a.Sessions.BeginAuthorization(p)
		require.NoError(t, err)
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		return attempt{redirect: u.Query().Get("redirect_uri"), state: u.Query().Get("state")}
	}
	md := begin(platforms.Mastodon)
	gh := begin(platforms.GitHub)

	fire := func(calls ...string) []session.Outcome {
		var wg sync.WaitGroup
		for _, c := range calls {
			wg.Add(1)
			go func(c string) {
				defer wg.Done()
				resp, err := http.Get(c)
				if err == nil {
					_ = resp.Body.Close()
				}
			}(c)
		}
		wg.Wait()

		got := make([]session.Outcome, 0, len(calls))
		for range calls {
			select {
			case o := <-outcomes:
				got = append(got, o)
			case <-time.After(5 * time.Second):
				t.Fatal("callback outcome missing")
			}
		}
		return got
	}
	callback := func(at attempt, state string) string {
		return at.redirect + "?code=abc123&state=" + url.QueryEscape(state)
	}

	// each platform's callback carrying the other platform's state
	for _, o := range fire(callback(md, gh.state), callback(gh, md.state)) {
		require.ErrorIs(t, o.Err, apperrors.ErrCsrfMismatch, o.Platform)
	}

	byPlatform := map[platforms.Platform]session.Outcome{}
	for _, o := range fire(callback(md, md.state), callback(gh, gh.state)) {
		require.NoError(t, o.Err, o.Platform)
		byPlatform[o.Platform] = o
	}
	require.Len(t, byPlatform, 2)
	require.Equal(t, "@dana@"+hostOf(t, cfg.Platforms.Mastodon.BaseURL), byPlatform[platforms.Mastodon].Account.Identity)
	require.Equal(t, "octo", byPlatform[platforms.GitHub].Account.Identity)

	for p, want := range map[platforms.Platform]string{platforms.Mastodon: "md-token", platforms.GitHub: "gh-token"} {
		tok, err := a.Sessions.GetValidToken(context.Background(), byPlatform[p].Account.ID)
		require.NoError(t, err)
		require.Equal(t, want, tok)
	}
}

func hostOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}
