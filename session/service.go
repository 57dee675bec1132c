// Package session is the facade the rest of the application talks to. It
// owns the credential lifecycle: connecting an account, handing out a valid
// access token, and flagging accounts that need to be reconnected.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/social-connect/accounts"
	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/exchange"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshMargin     = 60 * time.Second
	DefaultCompletionTimeout = 90 * time.Second
)

// Exchangers resolves the token exchanger for a platform.
type Exchangers interface {
	Get(p platforms.Platform) (exchange.Exchanger, error)
}

// Attempts issues and tracks authorization attempts.
type Attempts interface {
	Issue(p platforms.Platform) (*authflow.Attempt, error)
	Pending(p platforms.Platform) bool
}

// Outcome is published when an authorization attempt finishes. Exactly one
// of Account and Err is set.
type Outcome struct {
	Platform platforms.Platform
	// State is the state value the callback carried, empty when it had none.
	State   string
	Account *accounts.Summary
	Err     error
}

// Service implements the account session facade.
type Service struct {
	repo       accounts.Repo
	exchangers Exchangers
	attempts   Attempts

	margin            time.Duration
	completionTimeout time.Duration
	clock             func() time.Time
	newID             func() string

	refreshes singleflight.Group
	locks     sync.Map // account id -> *sync.Mutex

	subMu       sync.RWMutex
	subscribers map[int]func(Outcome)
	nextSub     int
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRefreshMargin sets how close to expiry a token may get before it is
// refreshed instead of returned.
func WithRefreshMargin(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.margin = d
		}
	}
}

// WithCompletionTimeout bounds the exchange started by HandleCallback.
func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.completionTimeout = d
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func New(repo accounts.Repo, exchangers Exchangers, attempts Attempts, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		exchangers:        exchangers,
		attempts:          attempts,
		margin:            DefaultRefreshMargin,
		completionTimeout: DefaultCompletionTimeout,
		clock:             time.Now,
		newID:             uuid.NewString,
		subscribers:       make(map[int]func(Outcome)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAccounts returns every connected account without secrets.
func (s *Service) ListAccounts(ctx context.Context) ([]accounts.Summary, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrapf(err, "list accounts")
	}
	now := s.clock()
	out := make([]accounts.Summary, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.Summarize(now))
	}
	return out, nil
}

// BeginAuthorization issues a fresh state for the platform and returns the
// URL to open in the user's browser.
func (s *Service) BeginAuthorization(p platforms.Platform) (string, error) {
	ex, err := s.exchangers.Get(p)
	if err != nil {
		return "", err
	}
	attempt, err := s.attempts.Issue(p)
	if err != nil {
		return "", apperrors.Wrapf(err, "begin %s authorization", p)
	}
	log.Info().Str("platform", string(p)).Msg("authorization started")
	return ex.AuthCodeURL(attempt), nil
}

// CompleteAuthorization exchanges the code and stores the resulting
// credential. A reconnect of an existing identity updates that account in
// place. Failing to learn the identity does not fail the connection.
func (s *Service) CompleteAuthorization(ctx context.Context, p platforms.Platform, code, state string) (*accounts.Credential, error) {
	ex, err := s.exchangers.Get(p)
	if err != nil {
		return nil, err
	}

	tokens, err := ex.Exchange(ctx, code, state)
	if err != nil {
		return nil, err
	}

	identity := &exchange.Identity{}
	if id, err := ex.Identity(ctx, tokens); err != nil {
		log.Info().Err(err).Str("platform", string(p)).Msg("connected with unknown identity")
	} else if id != nil {
		identity = id
	}

	now := s.clock()
	cred, err := s.repo.FindByIdentity(ctx, p, identity.Name)
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrNotFound):
		cred = &accounts.Credential{ID: s.newID(), Platform: p, CreatedAt: now}
	default:
		return nil, apperrors.Wrapf(err, "complete %s authorization", p)
	}

	cred.Identity = identity.Name
	if identity.Subject != "" {
		cred.Subject = identity.Subject
	}
	cred.AccessToken = tokens.AccessToken
	cred.RefreshToken = tokens.RefreshToken
	cred.AccessExpiresAt = tokens.AccessExpiresAt
	cred.RefreshExpiresAt = tokens.RefreshExpiresAt
	cred.Scope = append([]string(nil), tokens.Scope...)
	cred.Status = accounts.StatusActive
	cred.UpdatedAt = now

	unlock := s.lockAccount(cred.ID)
	err = s.repo.Upsert(ctx, cred)
	unlock()
	if err != nil {
		return nil, apperrors.Wrapf(err, "store %s credential", p)
	}

	log.Info().Str("platform", string(p)).Str("account", cred.ID).
		Str("identity", cred.Identity).Time("expires", cred.AccessExpiresAt).
		Msg("account connected")
	return cred.Clone(), nil
}

// Disconnect forgets an account and its tokens.
func (s *Service) Disconnect(ctx context.Context, accountID string) error {
	unlock := s.lockAccount(accountID)
	defer unlock()
	if err := s.repo.Delete(ctx, accountID); err != nil {
		return apperrors.Wrapf(err, "disconnect %s", accountID)
	}
	log.Info().Str("account", accountID).Msg("account disconnected")
	return nil
}

// lockAccount serializes writes to one account's stored credential.
func (s *Service) lockAccount(accountID string) func() {
	v, _ := s.locks.LoadOrStore(accountID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
