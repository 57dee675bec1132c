// Package server is the loopback listener that receives OAuth redirects
// from platform authorization pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/internal/config"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/rs/zerolog/log"
)

// Config is the part of the application configuration the listener reads.
type Config interface {
	config.EnvConfig
	config.ListenerConfig
}

// PortObserver is told the listener's base URL once it is bound.
type PortObserver interface {
	OnPortBound(baseURL string)
}

// Authorizer starts an authorization attempt and returns the URL to send
// the browser to.
type Authorizer interface {
	BeginAuthorization(p platforms.Platform) (string, error)
}

type Server struct {
	env    string
	host   string
	ports  []int
	mux    *http.ServeMux
	routes []string

	authorizer Authorizer

	mu         sync.Mutex
	httpServer *http.Server
	port       int
	baseURL    string

	subMu       sync.RWMutex
	subscribers []func(authflow.CallbackResult)
	observers   []PortObserver
}

type Option func(*Server)

// WithPorts overrides the configured ports, tried in order. 0 binds an
// ephemeral port.
func WithPorts(ports ...int) Option {
	return func(s *Server) {
		if len(ports) > 0 {
			s.ports = append([]int(nil), ports...)
		}
	}
}

// WithAuthorizer enables the /auth/{platform}/start route.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Server) {
		s.authorizer = a
	}
}

func WithPortObserver(o PortObserver) Option {
	return func(s *Server) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		env:   cfg.GetEnv(),
		host:  cfg.GetCallbackHost(),
		ports: []int{cfg.GetCallbackPort(), cfg.GetFallbackPort()},
		mux:   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// OnCallback registers fn to receive every callback. Each call runs on its
// own goroutine, so the browser response never waits on it.
func (s *Server) OnCallback(fn func(authflow.CallbackResult)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// AddPortObserver registers o. If the listener is already bound, o is told
// straight away.
func (s *Server) AddPortObserver(o PortObserver) {
	s.subMu.Lock()
	s.observers = append(s.observers, o)
	s.subMu.Unlock()

	if base := s.BaseURL(); base != "" {
		o.OnPortBound(base)
	}
}

func (s *Server) emit(result authflow.CallbackResult) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		go fn(result)
	}
}

// Start binds the first free configured port and serves in the background
// until ctx is cancelled or Shutdown is called. Calling Start on a running
// listener returns the port already in use.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.httpServer != nil {
		port := s.port
		s.mu.Unlock()
		return port, nil
	}

	ln, err := s.listen()
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = srv
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.baseURL = "http://" + net.JoinHostPort(s.host, strconv.Itoa(s.port))
	port, base := s.port, s.baseURL
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Int("port", port).Msg("callback listener stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.stop(shutdownCtx, srv)
	}()

	log.Info().Int("port", port).Str("base_url", base).Msg("callback listener started")

	s.subMu.RLock()
	observers := append([]PortObserver(nil), s.observers...)
	s.subMu.RUnlock()
	for _, o := range observers {
		o.OnPortBound(base)
	}
	return port, nil
}

func (s *Server) listen() (net.Listener, error) {
	var errs []error
	for i, port := range s.ports {
		addr := net.JoinHostPort(s.host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		errs = append(errs, err)
		if i < len(s.ports)-1 {
			log.Warn().Err(err).Int("port", port).Msg("callback port unavailable, trying fallback")
		}
	}
	return nil, fmt.Errorf("callback listener: no port available in %v: %w", s.ports, errors.Join(errs...))
}

// Shutdown stops the listener gracefully. Stopping a stopped listener is a
// no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.stop(ctx, nil)
}

// stop shuts down the running server. When only is set, it is stopped only
// if it is still the running one.
func (s *Server) stop(ctx context.Context, only *http.Server) error {
	s.mu.Lock()
	srv := s.httpServer
	if srv == nil || (only != nil && srv != only) {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = nil
	s.port = 0
	s.baseURL = ""
	s.mu.Unlock()

	log.Info().Msg("callback listener stopping")
	return srv.Shutdown(ctx)
}

// Port is the bound port, 0 when not running.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// BaseURL is the scheme, host and port redirects must use.
func (s *Server) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Str("method", method).Str("path", path).Msg("route")
	}
}
