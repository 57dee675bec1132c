package session

import (
	"context"
	"time"

	"github.com/jrsteele09/social-connect/accounts"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/rs/zerolog/log"
)

// RefreshDue refreshes every active account whose access token expires
// within lookahead. It returns how many accounts were refreshed. Failures
// are logged and do not stop the sweep; accounts that can no longer be
// refreshed end up flagged by GetValidToken.
func (s *Service) RefreshDue(ctx context.Context, lookahead time.Duration) (int, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return 0, apperrors.Wrapf(err, "refresh sweep")
	}

	now := s.clock()
	refreshed := 0
	for _, c := range creds {
		if c.Status == accounts.StatusNeedsReconnect || c.FreshFor(now, lookahead) {
			continue
		}
		if !c.HasUsableRefresh(now) && !c.Expired(now) {
			continue
		}
		tok, err := s.validToken(ctx, c.ID, lookahead)
		if err != nil {
			log.Warn().Err(err).Str("platform", string(c.Platform)).Str("account", c.ID).Msg("background refresh failed")
			continue
		}
		if tok != c.AccessToken {
			refreshed++
		}
	}
	return refreshed, nil
}

// RunKeepAlive calls RefreshDue every interval until ctx is cancelled.
func (s *Service) RunKeepAlive(ctx context.Context, interval, lookahead time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.RefreshDue(ctx, lookahead); err != nil {
				log.Error().Err(err).Msg("refresh sweep failed")
			} else if n > 0 {
				log.Info().Int("refreshed", n).Msg("refresh sweep")
			}
		}
	}
}
