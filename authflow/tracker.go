package authflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/social-connect/platforms"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// stateBytes gives 256 bits of entropy per state value.
const stateBytes = 32

// DefaultTTL is how long an attempt waits for its callback.
const DefaultTTL = 10 * time.Minute

// Tracker issues and validates single-use state values, at most one pending
// per platform.
type Tracker struct {
	mu    sync.Mutex
	repo  Repo
	ttl   time.Duration
	clock func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

func NewTracker(repo Repo, ttl time.Duration, opts ...Option) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Tracker{
		repo:  repo,
		ttl:   ttl,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue starts a new attempt for the platform, discarding any attempt still
// pending for it so a stale browser tab cannot complete.
func (t *Tracker) Issue(platform platforms.Platform) (*Attempt, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	attempt := &Attempt{
		State:        state,
		Platform:     platform,
		CodeVerifier: oauth2.GenerateVerifier(),
		CreatedAt:    t.clock(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	replaced, err := t.repo.DeletePlatform(platform)
	if err != nil {
		return nil, fmt.Errorf("failed to discard pending attempts: %w", err)
	}
	if err := t.repo.Upsert(attempt); err != nil {
		return nil, fmt.Errorf("failed to store attempt: %w", err)
	}

	if replaced > 0 {
		log.Debug().Str("platform", platform.String()).Int("replaced", replaced).Msg("Superseded pending authorization attempt")
	}

	cp := *attempt
	return &cp, nil
}

// Validate reports whether state is the live attempt for platform and
// consumes it if so. It never fails loudly; false means authentication
// failed.
func (t *Tracker) Validate(platform platforms.Platform, state string) bool {
	_, ok := t.Consume(platform, state)
	return ok
}

// Consume is Validate returning the consumed attempt.
// A state belonging to another platform is left untouched; an expired
// state is dropped.
func (t *Tracker) Consume(platform platforms.Platform, state string) (*Attempt, bool) {
	if state == "" {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	attempt, err := t.repo.Get(state)
	if err != nil || attempt == nil {
		return nil, false
	}
	if attempt.Platform != platform {
		return nil, false
	}

	if err := t.repo.Delete(state); err != nil {
		log.Error().Err(err).Str("platform", string(platform)).Msg("failed to consume authorization state")
		return nil, false
	}
	if attempt.Expired(t.clock(), t.ttl) {
		return nil, false
	}
	return attempt, true
}

// Pending reports whether a live attempt exists for the platform.
func (t *Tracker) Pending(platform platforms.Platform) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts, err := t.repo.List()
	if err != nil {
		return false
	}
	now := t.clock()
	for _, a := range attempts {
		if a.Platform == platform && !a.Expired(now, t.ttl) {
			return true
		}
	}
	return false
}

// Sweep drops expired attempts and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts, err := t.repo.List()
	if err != nil {
		return 0
	}
	now := t.clock()
	removed := 0
	for _, a := range attempts {
		if a.Expired(now, t.ttl) {
			if err := t.repo.Delete(a.State); err == nil {
				removed++
			}
		}
	}
	return removed
}

// Run sweeps on every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				log.Debug().Int("expired", n).Msg("Dropped expired authorization attempts")
			}
		}
	}
}

func randomState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
