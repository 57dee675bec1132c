package authflow

import (
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory attempt repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		attempts: make(map[string]*Attempt),
	}
}

// Upsert stores or replaces an attempt
func (r *InMemoryRepo) Upsert(attempt *Attempt) error {
	if attempt == nil {
		return errors.New("attempt cannot be nil")
	}
	if attempt.State == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	cp := *attempt
	r.attempts[attempt.State] = &cp
	return nil
}

// Get retrieves an attempt by state
func (r *InMemoryRepo) Get(state string) (*Attempt, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	attempt, exists := r.attempts[state]
	if !exists {
		return nil, fmt.Errorf("state: %w", apperrors.ErrNotFound)
	}

	cp := *attempt
	return &cp, nil
}

// Delete removes an attempt
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, state)
	return nil
}

func (r *InMemoryRepo) DeletePlatform(platform platforms.Platform) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for state, attempt := range r.attempts {
		if attempt.Platform == platform {
			delete(r.attempts, state)
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepo) List() ([]*Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Attempt, 0, len(r.attempts))
	for _, attempt := range r.attempts {
		cp := *attempt
		out = append(out, &cp)
	}
	return out, nil
}
