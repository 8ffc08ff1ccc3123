package store

import (
	"context"
	"database/sql"

	"github.com/scribehq/scribe/internal/errs"
)

// GetConfigValue reads a single key from the config table, or
// errs.NotFound if absent.
func (s *Store) GetConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errs.New(errs.NotFound, "config key %q not found", key)
	}
	if err != nil {
		return "", errs.Wrap(errs.DB, err)
	}
	return value, nil
}

// SetConfigValue upserts a single key in the config table.
func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errs.Wrap(errs.DB, err)
	}
	return nil
}
