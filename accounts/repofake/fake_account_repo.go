package repofake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jrsteele09/social-connect/accounts"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

// FakeAccountRepo is an in-memory accounts.Repo. Secrets are held in plain
// text, so it is only used by tests and the --store=memory mode.
type FakeAccountRepo struct {
	lock     sync.RWMutex
	accounts map[string]*accounts.Credential

	// UpsertCalls counts writes for assertions.
	UpsertCalls int
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[string]*accounts.Credential),
	}
}

func (r *FakeAccountRepo) Upsert(_ context.Context, c *accounts.Credential) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("credential id is required")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.UpsertCalls++
	r.accounts[c.ID] = c.Clone()
	return nil
}

func (r *FakeAccountRepo) Get(_ context.Context, id string) (*accounts.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	c, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, apperrors.ErrNotFound)
	}
	return c.Clone(), nil
}

func (r *FakeAccountRepo) FindByIdentity(_ context.Context, platform platforms.Platform, identity string) (*accounts.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var found *accounts.Credential
	for _, c := range r.accounts {
		if c.Platform != platform || c.Identity != identity {
			continue
		}
		if found == nil || c.UpdatedAt.After(found.UpdatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s account %q: %w", platform, identity, apperrors.ErrNotFound)
	}
	return found.Clone(), nil
}

func (r *FakeAccountRepo) List(_ context.Context) ([]*accounts.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*accounts.Credential, 0, len(r.accounts))
	for _, c := range r.accounts {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *FakeAccountRepo) Delete(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, apperrors.ErrNotFound)
	}
	delete(r.accounts, id)
	return nil
}
