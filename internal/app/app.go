// Package app wires the listener, tracker, exchangers, credential store
// and session facade together.
package app

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jrsteele09/social-connect/accounts"
	"github.com/jrsteele09/social-connect/accounts/repofake"
	"github.com/jrsteele09/social-connect/accounts/sqlitestore"
	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/exchange"
	"github.com/jrsteele09/social-connect/internal/config"
	"github.com/jrsteele09/social-connect/internal/seal"
	"github.com/jrsteele09/social-connect/server"
	"github.com/jrsteele09/social-connect/session"
	"github.com/rs/zerolog/log"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type App struct {
	Config   config.Config
	Accounts accounts.Repo
	Tracker  *authflow.Tracker
	Registry *exchange.Registry
	Sessions *session.Service
	Listener *server.Server

	closers []func() error
}

type Option func(*options)

type options struct {
	serverOpts   []server.Option
	exchangeOpts []exchange.Option
	repo         accounts.Repo
}

// WithListenerPorts overrides the configured callback ports.
func WithListenerPorts(ports ...int) Option {
	return func(o *options) {
		o.serverOpts = append(o.serverOpts, server.WithPorts(ports...))
	}
}

func WithExchangeOptions(opts ...exchange.Option) Option {
	return func(o *options) {
		o.exchangeOpts = append(o.exchangeOpts, opts...)
	}
}

// WithRepo uses repo instead of opening the configured store.
func WithRepo(repo accounts.Repo) Option {
	return func(o *options) {
		o.repo = repo
	}
}

func New(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}

	a.Accounts = o.repo
	if a.Accounts == nil {
		repo, closer, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		a.Accounts = repo
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	a.Tracker = authflow.NewTracker(authflow.NewInMemoryRepo(), cfg.GetAttemptTTL())

	exchangeOpts := append([]exchange.Option{
		exchange.WithHTTPTimeout(cfg.GetHTTPTimeout()),
		exchange.WithRetryBackoff(cfg.GetRetryBackoff()),
	}, o.exchangeOpts...)
	redirectBase := "http://" + net.JoinHostPort(cfg.GetCallbackHost(), strconv.Itoa(cfg.GetCallbackPort()))
	a.Registry = exchange.NewRegistryFromConfig(cfg, a.Tracker, redirectBase, exchangeOpts...)

	a.Sessions = session.New(a.Accounts, a.Registry, a.Tracker,
		session.WithRefreshMargin(cfg.GetRefreshMargin()),
		session.WithCompletionTimeout(cfg.GetCompletionTimeout()),
	)

	serverOpts := append([]server.Option{
		server.WithAuthorizer(a.Sessions),
		server.WithPortObserver(a.Registry),
	}, o.serverOpts...)
	a.Listener = server.New(cfg, serverOpts...)
	a.Listener.OnCallback(a.Sessions.HandleCallback)

	log.Debug().Int("platforms", len(a.Registry.Platforms())).Str("store", cfg.GetStoreType()).Msg("application wired")
	return a, nil
}

func openStore(cfg config.Config) (accounts.Repo, func() error, error) {
	switch strings.ToLower(cfg.GetStoreType()) {
	case StoreMemory:
		log.Warn().Msg("using in-memory credential store, accounts are lost on exit")
		return repofake.NewFakeAccountRepo(), nil, nil

	case StoreSQLite, "":
		secret := cfg.GetEncryptionKey()
		if secret == "" {
			var err error
			secret, err = loadOrCreateKey(filepath.Join(cfg.GetDataFolder(), keyFileName))
			if err != nil {
				return nil, nil, err
			}
		}
		sealer, err := seal.New(secret)
		if err != nil {
			return nil, nil, fmt.Errorf("credential sealing: %w", err)
		}
		repo, err := sqlitestore.Open(cfg.GetStorePath(), sealer)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.GetStoreType())
	}
}

// StartListener binds the callback listener and starts sweeping expired
// attempts. Both stop when ctx is cancelled.
func (a *App) StartListener(ctx context.Context) (int, error) {
	port, err := a.Listener.Start(ctx)
	if err != nil {
		return 0, err
	}
	go a.Tracker.Run(ctx, a.Config.GetSweepInterval())
	return port, nil
}

// Close releases the credential store.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
