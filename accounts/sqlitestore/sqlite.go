package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/social-connect/accounts"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/internal/seal"
	"github.com/jrsteele09/social-connect/platforms"

	_ "modernc.org/sqlite"
)

//go:embed schema/schema.sql
var schema string

const selectColumns = `id, platform, identity, subject, access_token, refresh_token,
	access_expires_at, refresh_expires_at, scope, status, created_at, updated_at`

// Repository is the SQLite backed credential store. Token columns only ever
// hold sealed values.
type Repository struct {
	db     *sql.DB
	sealer seal.Sealer
}

var _ accounts.Repo = (*Repository)(nil)

// Open opens (creating if needed) the database at dbPath.
func Open(dbPath string, sealer seal.Sealer) (*Repository, error) {
	if sealer == nil {
		return nil, errors.New("a sealer is required: credentials are never stored in plain text")
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data folder: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db, sealer: sealer}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Upsert(ctx context.Context, c *accounts.Credential) error {
	if c == nil || c.ID == "" {
		return errors.New("credential id is required")
	}

	access, err := r.sealer.Seal(c.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := r.sealer.Seal(c.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}

	query := `
		INSERT INTO accounts (id, platform, identity, subject, access_token, refresh_token,
			access_expires_at, refresh_expires_at, scope, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity = excluded.identity,
			subject = excluded.subject,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			access_expires_at = excluded.access_expires_at,
			refresh_expires_at = excluded.refresh_expires_at,
			scope = excluded.scope,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		string(c.Platform),
		c.Identity,
		c.Subject,
		access,
		refresh,
		c.AccessExpiresAt.Unix(),
		unixOrZero(c.RefreshExpiresAt),
		strings.Join(c.Scope, " "),
		string(c.Status),
		c.CreatedAt.Unix(),
		c.UpdatedAt.Unix(),
	)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*accounts.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = ?`, id)
	c, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, apperrors.ErrNotFound)
	}
	return c, err
}

func (r *Repository) FindByIdentity(ctx context.Context, platform platforms.Platform, identity string) (*accounts.Credential, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts
		WHERE platform = ? AND identity = ?
		ORDER BY updated_at DESC
		LIMIT 1`

	c, err := r.scan(r.db.QueryRowContext(ctx, query, string(platform), identity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s account %q: %w", platform, identity, apperrors.ErrNotFound)
	}
	return c, err
}

func (r *Repository) List(ctx context.Context) ([]*accounts.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY platform, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*accounts.Credential
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scan(s scanner) (*accounts.Credential, error) {
	var (
		c                       accounts.Credential
		platform, scope, status string
		access, refresh         string
		accessExp, refreshExp   int64
		createdAt, updatedAt    int64
	)

	err := s.Scan(
		&c.ID,
		&platform,
		&c.Identity,
		&c.Subject,
		&access,
		&refresh,
		&accessExp,
		&refreshExp,
		&scope,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.AccessToken, err = r.sealer.Open(access); err != nil {
		return nil, fmt.Errorf("failed to open access token for %s: %w", c.ID, err)
	}
	if c.RefreshToken, err = r.sealer.Open(refresh); err != nil {
		return nil, fmt.Errorf("failed to open refresh token for %s: %w", c.ID, err)
	}

	c.Platform = platforms.Platform(platform)
	c.Status = accounts.Status(status)
	c.Scope = strings.Fields(scope)
	c.AccessExpiresAt = time.Unix(accessExp, 0)
	if refreshExp != 0 {
		c.RefreshExpiresAt = time.Unix(refreshExp, 0)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)

	return &c, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
