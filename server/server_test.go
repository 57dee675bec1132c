package server_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/internal/config"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/jrsteele09/social-connect/server"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts ...server.Option) (*server.Server, chan authflow.CallbackResult) {
	t.Helper()
	s := server.New(&config.Settings{}, opts...)
	results := make(chan authflow.CallbackResult, 4)
	s.OnCallback(func(r authflow.CallbackResult) { results <- r })
	return s, results
}

func receive(t *testing.T, results chan authflow.CallbackResult) authflow.CallbackResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(time.Second):
		t.Fatal("no callback result emitted")
		return authflow.CallbackResult{}
	}
}

func get(s http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCallbackAccessDenied(t *testing.T) {
	s, results := newServer(t)

	rec := get(s, "/auth/linkedin/callback?error=access_denied&error_description=User+denied")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Authentication Failed")
	require.Contains(t, rec.Body.String(), "User denied")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	r := receive(t, results)
	require.Equal(t, platforms.LinkedIn, r.Platform)
	require.False(t, r.Succeeded())
	require.Equal(t, "access_denied", r.ErrorCode)
	require.Equal(t, "User denied", r.ErrorDescription)
	require.ErrorIs(t, r.Err(), apperrors.ErrAuthorizationDenied)
}

func TestCallbackSuccess(t *testing.T) {
	s, results := newServer(t)

	rec := get(s, "/auth/twitter/callback?code=abc123&state=xyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Authentication Successful")
	require.Contains(t, rec.Body.String(), "window.close()")
	require.NotContains(t, rec.Body.String(), "abc123")

	r := receive(t, results)
	require.True(t, r.Succeeded())
	require.Equal(t, platforms.Twitter, r.Platform)
	require.Equal(t, "abc123", r.Code)
	require.Equal(t, "xyz", r.State)
}

func TestCallbackWithoutCode(t *testing.T) {
	s, results := newServer(t)

	rec := get(s, "/auth/github/callback?state=xyz")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Authentication Failed")

	r := receive(t, results)
	require.Equal(t, authflow.ErrorCodeNoCode, r.ErrorCode)
	require.ErrorIs(t, r.Err(), apperrors.ErrNoAuthorizationCode)
}

func TestUnknownRoutes(t *testing.T) {
	s, results := newServer(t)

	require.Equal(t, http.StatusNotFound, get(s, "/auth/myspace/callback?code=a&state=b").Code)
	require.Equal(t, http.StatusNotFound, get(s, "/somewhere").Code)
	require.Equal(t, http.StatusMethodNotAllowed, func() int {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/twitter/callback", nil))
		return rec.Code
	}())

	select {
	case r := <-results:
		t.Fatalf("unexpected callback result for %s", r.Platform)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeAuthorizer struct{}

func (fakeAuthorizer) BeginAuthorization(p platforms.Platform) (string, error) {
	if p == platforms.Facebook {
		return "", apperrors.ErrUnknownPlatform
	}
	return "https://auth.example/" + string(p), nil
}

func TestAuthStartRedirects(t *testing.T) {
	s, _ := newServer(t, server.WithAuthorizer(fakeAuthorizer{}))

	rec := get(s, "/auth/mastodon/start")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://auth.example/mastodon", rec.Header().Get("Location"))

	require.Equal(t, http.StatusNotFound, get(s, "/auth/facebook/start").Code)
}

type portRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (p *portRecorder) OnPortBound(baseURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, baseURL)
}

func (p *portRecorder) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

func TestStartIsIdempotentAndServes(t *testing.T) {
	observer := &portRecorder{}
	s, _ := newServer(t, server.WithPorts(0), server.WithPortObserver(observer))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, err := s.Start(ctx)
	require.NoError(t, err)
	require.NotZero(t, port)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	again, err := s.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, port, again)

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Equal(t, base, s.BaseURL())
	require.Equal(t, []string{base}, observer.all())

	resp, err := http.Get(base + server.RouteHealth)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), base)

	late := &portRecorder{}
	s.AddPortObserver(late)
	require.Equal(t, []string{base}, late.all())
}

func TestStartFallsBackWhenPortBusy(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	s, _ := newServer(t, server.WithPorts(busyPort, 0))
	port, err := s.Start(context.Background())
	require.NoError(t, err)
	defer s.Shutdown(context.Background())
	require.NotEqual(t, busyPort, port)
}

func TestStartFailsWhenAllPortsBusy(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	s, _ := newServer(t, server.WithPorts(busyPort, busyPort))
	_, err = s.Start(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "no port available"))
	require.Zero(t, s.Port())
}

func TestContextCancelStopsListener(t *testing.T) {
	s, _ := newServer(t, server.WithPorts(0))
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.Start(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool { return s.Port() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))
}
