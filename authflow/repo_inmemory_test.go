package authflow_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/social-connect/authflow"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	repo := authflow.NewInMemoryRepo()

	require.Error(t, repo.Upsert(nil))
	require.Error(t, repo.Upsert(&authflow.Attempt{}))

	a := &authflow.Attempt{State: "s1", Platform: platforms.GitHub, CreatedAt: time.Now()}
	require.NoError(t, repo.Upsert(a))
	require.NoError(t, repo.Upsert(&authflow.Attempt{State: "s2", Platform: platforms.GitHub}))
	require.NoError(t, repo.Upsert(&authflow.Attempt{State: "s3", Platform: platforms.Twitter}))

	// stored copy is isolated from the caller
	a.Platform = platforms.Facebook
	got, err := repo.Get("s1")
	require.NoError(t, err)
	require.Equal(t, platforms.GitHub, got.Platform)

	n, err := repo.DeletePlatform(platforms.GitHub)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = repo.Get("s1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Delete("s3"))
	require.Error(t, repo.Delete(""))
}
