package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/social-connect/accounts"
	"github.com/stretchr/testify/require"
)

func TestRefreshDue(t *testing.T) {
	f := newFixture(t)
	f.store(t, &accounts.Credential{ID: "fresh", AccessToken: "a", RefreshToken: "rt", AccessExpiresAt: testNow.Add(24 * time.Hour)})
	f.store(t, &accounts.Credential{ID: "soon", AccessToken: "b", RefreshToken: "rt", AccessExpiresAt: testNow.Add(5 * time.Minute)})
	f.store(t, &accounts.Credential{ID: "dead", AccessToken: "c", AccessExpiresAt: testNow.Add(-time.Hour)})
	f.store(t, &accounts.Credential{ID: "no-refresh", AccessToken: "d", AccessExpiresAt: testNow.Add(5 * time.Minute)})

	n, err := f.svc.RefreshDue(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.EqualValues(t, 1, f.ex.refreshCalls.Load())

	soon, err := f.repo.Get(context.Background(), "soon")
	require.NoError(t, err)
	require.Equal(t, "at-new", soon.AccessToken)

	dead, err := f.repo.Get(context.Background(), "dead")
	require.NoError(t, err)
	require.Equal(t, accounts.StatusNeedsReconnect, dead.Status)

	untouched, err := f.repo.Get(context.Background(), "no-refresh")
	require.NoError(t, err)
	require.Equal(t, "d", untouched.AccessToken)
}
