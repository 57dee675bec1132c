package exchange

import (
	"sort"
	"strings"
	"sync"

	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/internal/config"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/rs/zerolog/log"
)

// redirectSetter is implemented by exchangers whose redirect URI follows
// the listener's bound port.
type redirectSetter interface {
	SetRedirectURL(string)
}

// Registry maps each configured platform to its exchanger.
type Registry struct {
	mu         sync.RWMutex
	exchangers map[platforms.Platform]Exchanger
	base       string
}

func NewRegistry() *Registry {
	return &Registry{exchangers: make(map[platforms.Platform]Exchanger)}
}

// NewRegistryFromConfig builds an OAuth2Exchanger for every platform that
// has a client ID configured.
func NewRegistryFromConfig(cfg config.PlatformConfig, states StateConsumer, redirectBase string, opts ...Option) *Registry {
	r := NewRegistry()
	r.base = strings.TrimRight(redirectBase, "/")
	for p, profile := range DefaultProfiles(cfg) {
		client, ok := cfg.GetPlatformClient(p)
		if !ok {
			log.Debug().Str("platform", string(p)).Msg("platform not configured")
			continue
		}
		r.Register(NewOAuth2Exchanger(profile, client, states, r.base+authflow.CallbackPath(p), opts...))
	}
	return r
}

// Register adds or replaces the exchanger for its platform.
func (r *Registry) Register(e Exchanger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchangers[e.Platform()] = e
	if rs, ok := e.(redirectSetter); ok && r.base != "" {
		rs.SetRedirectURL(r.base + authflow.CallbackPath(e.Platform()))
	}
}

// Get returns the platform's exchanger or ErrUnknownPlatform.
func (r *Registry) Get(p platforms.Platform) (Exchanger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exchangers[p]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownPlatform, "%q", string(p))
	}
	return e, nil
}

// Platforms lists configured platforms in a stable order.
func (r *Registry) Platforms() []platforms.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]platforms.Platform, 0, len(r.exchangers))
	for p := range r.exchangers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetRedirectBase points every redirect URI at baseURL. The listener calls
// it once the port is bound.
func (r *Registry) SetRedirectBase(baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base = strings.TrimRight(baseURL, "/")
	for p, e := range r.exchangers {
		if rs, ok := e.(redirectSetter); ok {
			rs.SetRedirectURL(r.base + authflow.CallbackPath(p))
		}
	}
	log.Debug().Str("base", r.base).Msg("redirect base updated")
}

// OnPortBound lets the registry observe the listener directly.
func (r *Registry) OnPortBound(baseURL string) {
	r.SetRedirectBase(baseURL)
}
