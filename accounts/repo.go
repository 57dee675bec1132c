package accounts

import (
	"context"

	"github.com/jrsteele09/social-connect/platforms"
)

// Repo persists credentials. Implementations return errors wrapping
// internal/errors.ErrNotFound for missing records and never return
// shared pointers: callers may mutate what they receive.
type Repo interface {
	Upsert(ctx context.Context, c *Credential) error
	Get(ctx context.Context, id string) (*Credential, error)
	// FindByIdentity returns the most recently updated credential for the
	// platform and identity. An empty identity matches credentials whose
	// identity is unknown.
	FindByIdentity(ctx context.Context, platform platforms.Platform, identity string) (*Credential, error)
	List(ctx context.Context) ([]*Credential, error)
	Delete(ctx context.Context, id string) error
}
