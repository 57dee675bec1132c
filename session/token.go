package session

import (
	"context"
	"time"

	"github.com/jrsteele09/social-connect/accounts"
	"github.com/jrsteele09/social-connect/exchange"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/rs/zerolog/log"
)

// GetValidToken returns an access token that stays valid for at least the
// refresh margin. Tokens that are still fresh are returned without any
// network call. Concurrent callers for one account share a single refresh.
func (s *Service) GetValidToken(ctx context.Context, accountID string) (string, error) {
	return s.validToken(ctx, accountID, s.margin)
}

// validToken returns a token valid for longer than margin, refreshing if
// needed.
func (s *Service) validToken(ctx context.Context, accountID string, margin time.Duration) (string, error) {
	cred, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return "", err
	}
	if cred.Status == accounts.StatusNeedsReconnect {
		return "", apperrors.Wrapf(apperrors.ErrReauthRequired, "account %s", accountID)
	}
	if cred.FreshFor(s.clock(), margin) {
		return cred.AccessToken, nil
	}

	v, err, shared := s.refreshes.Do(accountID, func() (any, error) {
		// one caller giving up must not fail the others sharing this refresh
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.completionTimeout)
		defer cancel()
		return s.refresh(rctx, accountID, margin)
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Debug().Str("account", accountID).Msg("joined in-flight refresh")
	}
	return v.(string), nil
}

func (s *Service) refresh(ctx context.Context, accountID string, margin time.Duration) (string, error) {
	// reload, a refresh that just finished may already have stored a new token
	cred, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return "", err
	}
	now := s.clock()
	if cred.FreshFor(now, margin) {
		return cred.AccessToken, nil
	}

	if !cred.HasUsableRefresh(now) {
		if !cred.Expired(now) {
			return cred.AccessToken, nil
		}
		if replaced := s.markNeedsReconnect(ctx, cred); replaced != nil {
			return s.replacedToken(replaced)
		}
		return "", apperrors.Wrapf(apperrors.ErrReauthRequired, "%s account %s: token expired and cannot be refreshed", cred.Platform, cred.ID)
	}

	ex, err := s.exchangers.Get(cred.Platform)
	if err != nil {
		return "", err
	}

	tokens, err := ex.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrReauthRequired):
			if replaced := s.markNeedsReconnect(ctx, cred); replaced != nil {
				return s.replacedToken(replaced)
			}
			return "", err
		case apperrors.Retryable(err) && !cred.Expired(now):
			log.Warn().Err(err).Str("account", cred.ID).Msg("refresh failed, using token that is about to expire")
			return cred.AccessToken, nil
		default:
			return "", err
		}
	}

	stored, applied, err := s.commit(ctx, cred, func(c *accounts.Credential) { applyRefresh(c, tokens) })
	if err != nil {
		return "", apperrors.Wrapf(err, "store refreshed %s token", cred.Platform)
	}
	if !applied {
		log.Info().Str("account", cred.ID).Msg("credential replaced during refresh, refreshed token discarded")
		return s.replacedToken(stored)
	}

	log.Info().Str("platform", string(stored.Platform)).Str("account", stored.ID).
		Time("expires", stored.AccessExpiresAt).Msg("access token refreshed")
	return stored.AccessToken, nil
}

// commit applies change to the stored credential unless it moved on since
// seen was read, e.g. a reconnect finished while a refresh was in flight.
// It returns the credential as stored afterwards and whether change ran.
func (s *Service) commit(ctx context.Context, seen *accounts.Credential, change func(*accounts.Credential)) (*accounts.Credential, bool, error) {
	unlock := s.lockAccount(seen.ID)
	defer unlock()

	current, err := s.repo.Get(ctx, seen.ID)
	if err != nil {
		return nil, false, err
	}
	if !sameGrant(current, seen) {
		return current, false, nil
	}
	change(current)
	current.UpdatedAt = s.clock()
	if err := s.repo.Upsert(ctx, current); err != nil {
		return nil, false, err
	}
	return current, true, nil
}

func sameGrant(a, b *accounts.Credential) bool {
	return a.AccessToken == b.AccessToken &&
		a.RefreshToken == b.RefreshToken &&
		a.Status == b.Status &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

// replacedToken answers a refresh whose credential was replaced by a
// reconnect while it was in flight.
func (s *Service) replacedToken(cred *accounts.Credential) (string, error) {
	if cred.Status == accounts.StatusActive && !cred.Expired(s.clock()) {
		return cred.AccessToken, nil
	}
	return "", apperrors.Wrapf(apperrors.ErrReauthRequired, "%s account %s", cred.Platform, cred.ID)
}

func applyRefresh(cred *accounts.Credential, tokens *exchange.TokenSet) {
	cred.AccessToken = tokens.AccessToken
	if tokens.AccessExpiresAt.After(cred.AccessExpiresAt) {
		cred.AccessExpiresAt = tokens.AccessExpiresAt
	}
	if tokens.RefreshToken != "" && tokens.RefreshToken != cred.RefreshToken {
		cred.RefreshToken = tokens.RefreshToken
		cred.RefreshExpiresAt = tokens.RefreshExpiresAt
	} else if !tokens.RefreshExpiresAt.IsZero() {
		cred.RefreshExpiresAt = tokens.RefreshExpiresAt
	}
	if len(tokens.Scope) > 0 {
		cred.Scope = append([]string(nil), tokens.Scope...)
	}
	cred.Status = accounts.StatusActive
}

// markNeedsReconnect flags the account. When a reconnect replaced the
// credential in the meantime nothing is written and the replacement is
// returned.
func (s *Service) markNeedsReconnect(ctx context.Context, seen *accounts.Credential) *accounts.Credential {
	if seen.Status == accounts.StatusNeedsReconnect {
		return nil
	}
	stored, applied, err := s.commit(ctx, seen, func(c *accounts.Credential) { c.Status = accounts.StatusNeedsReconnect })
	if err != nil {
		log.Error().Err(err).Str("account", seen.ID).Msg("failed to flag account for reconnect")
		return nil
	}
	if !applied {
		return stored
	}
	log.Warn().Str("platform", string(seen.Platform)).Str("account", seen.ID).Msg("account needs to be reconnected")
	return nil
}
