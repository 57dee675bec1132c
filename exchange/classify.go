package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"golang.org/x/oauth2"
)

type phase string

const (
	phaseExchange phase = "exchange"
	phaseRefresh  phase = "refresh"
)

// classify maps a token endpoint failure onto the error taxonomy. The
// returned message never carries token material, only the platform's
// error code and description.
func classify(p platforms.Platform, ph phase, err error) error {
	if err == nil {
		return nil
	}

	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		detail := rErr.ErrorCode
		if rErr.ErrorDescription != "" {
			detail += " (" + rErr.ErrorDescription + ")"
		}
		if detail == "" {
			detail = fmt.Sprintf("status %d", status)
		}

		switch {
		case isClientError(rErr.ErrorCode) || (rErr.ErrorCode == "" && status == http.StatusUnauthorized):
			return fmt.Errorf("%s %s: %s: %w", p, ph, detail, apperrors.ErrInvalidClientCredentials)
		case isGrantError(rErr.ErrorCode):
			if ph == phaseRefresh {
				return fmt.Errorf("%s %s: %s: %w", p, ph, detail, apperrors.ErrReauthRequired)
			}
			return fmt.Errorf("%s %s: %s: %w", p, ph, detail, apperrors.ErrExpiredOrUsedCode)
		case status >= 500 || rErr.ErrorCode == "temporarily_unavailable" || rErr.ErrorCode == "server_error":
			return fmt.Errorf("%s %s: %s: %w", p, ph, detail, apperrors.ErrTransientNetwork)
		case ph == phaseRefresh && status == http.StatusBadRequest && rErr.ErrorCode == "invalid_request":
			// twitter reports revoked refresh tokens this way
			return fmt.Errorf("%s %s: %s: %w", p, ph, detail, apperrors.ErrReauthRequired)
		default:
			return fmt.Errorf("%s %s: %s: %w", p, ph, detail, apperrors.ErrTokenRejected)
		}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", p, ph, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: timed out: %w", p, ph, apperrors.ErrTransientNetwork)
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return fmt.Errorf("%s %s: %s: %w", p, ph, transportDetail(err), apperrors.ErrTransientNetwork)
	}
	return fmt.Errorf("%s %s: %s: %w", p, ph, err.Error(), apperrors.ErrTokenRejected)
}

func isClientError(code string) bool {
	switch code {
	case "invalid_client", "unauthorized_client", "incorrect_client_credentials":
		return true
	}
	return false
}

func isGrantError(code string) bool {
	switch code {
	case "invalid_grant", "bad_verification_code", "bad_refresh_token":
		return true
	}
	return false
}

// transportDetail drops the request URL, which may carry query parameters.
func transportDetail(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Op + ": " + urlErr.Err.Error()
	}
	return err.Error()
}
