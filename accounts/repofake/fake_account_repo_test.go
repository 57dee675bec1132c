package repofake_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/social-connect/accounts"
	"github.com/jrsteele09/social-connect/accounts/repofake"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/stretchr/testify/require"
)

func TestFakeRepoReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeAccountRepo()

	c := &accounts.Credential{ID: "acc-1", Platform: platforms.Mastodon, AccessToken: "a", Scope: []string{"write"}}
	require.NoError(t, repo.Upsert(ctx, c))
	c.AccessToken = "mutated"

	got, err := repo.Get(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, "a", got.AccessToken)

	got.Scope[0] = "mutated"
	again, err := repo.Get(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, "write", again.Scope[0])
}

func TestFakeRepoFindByIdentityPrefersNewest(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeAccountRepo()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &accounts.Credential{ID: "old", Platform: platforms.GitHub, Identity: "x", UpdatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, &accounts.Credential{ID: "new", Platform: platforms.GitHub, Identity: "x", UpdatedAt: now}))

	got, err := repo.FindByIdentity(ctx, platforms.GitHub, "x")
	require.NoError(t, err)
	require.Equal(t, "new", got.ID)

	_, err = repo.FindByIdentity(ctx, platforms.GitHub, "y")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "missing"), apperrors.ErrNotFound)
}
