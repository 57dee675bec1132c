package accounts

import (
	"time"

	"github.com/jrsteele09/social-connect/platforms"
)

// Status is the externally visible health of a connected account.
type Status string

const (
	// StatusActive means a token can be produced without user interaction.
	StatusActive Status = "active"
	// StatusNeedsReconnect means the user must run the authorization flow again.
	StatusNeedsReconnect Status = "needs_reconnect"
)

// Credential is one connected platform account.
//
// AccessToken and RefreshToken are secrets. They are never logged and are
// sealed by the store before they are written.
type Credential struct {
	ID       string
	Platform platforms.Platform

	// Identity is the platform username or display name. Empty when the
	// platform did not let us look it up.
	Identity string
	// Subject is the opaque platform user id, when reported.
	Subject string

	AccessToken  string
	RefreshToken string

	AccessExpiresAt time.Time
	// RefreshExpiresAt is zero when the platform does not report one.
	RefreshExpiresAt time.Time

	Scope  []string
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasUsableRefresh reports whether the refresh token can still be redeemed.
func (c *Credential) HasUsableRefresh(now time.Time) bool {
	if c.RefreshToken == "" {
		return false
	}
	return c.RefreshExpiresAt.IsZero() || now.Before(c.RefreshExpiresAt)
}

// Expired reports whether the access token is past its expiry.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.AccessExpiresAt)
}

// Dead reports whether the credential can never yield a token again without
// the user re-authorizing.
func (c *Credential) Dead(now time.Time) bool {
	return c.Status == StatusNeedsReconnect || (c.Expired(now) && !c.HasUsableRefresh(now))
}

// FreshFor reports whether the access token stays valid for longer than margin.
func (c *Credential) FreshFor(now time.Time, margin time.Duration) bool {
	return c.AccessExpiresAt.Sub(now) > margin
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Scope != nil {
		cp.Scope = append([]string(nil), c.Scope...)
	}
	return &cp
}

// Summary is the secret-free view of a credential handed to the UI.
type Summary struct {
	ID              string             `json:"id"`
	Platform        platforms.Platform `json:"platform"`
	Identity        string             `json:"identity,omitempty"`
	Status          Status             `json:"status"`
	AccessExpiresAt time.Time          `json:"access_expires_at"`
	Refreshable     bool               `json:"refreshable"`
	Scope           []string           `json:"scope,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Summarize builds the secret-free view. Dead credentials are reported as
// needing a reconnect even if that has not been persisted yet.
func (c *Credential) Summarize(now time.Time) Summary {
	status := c.Status
	if status == "" {
		status = StatusActive
	}
	if c.Dead(now) {
		status = StatusNeedsReconnect
	}
	return Summary{
		ID:              c.ID,
		Platform:        c.Platform,
		Identity:        c.Identity,
		Status:          status,
		AccessExpiresAt: c.AccessExpiresAt,
		Refreshable:     c.HasUsableRefresh(now),
		Scope:           append([]string(nil), c.Scope...),
		UpdatedAt:       c.UpdatedAt,
	}
}
