package store

import (
	"context"
	"database/sql"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/internal/errs"
)

// HeadRef is the name of the mutable pointer to the tip of the commit chain.
const HeadRef = "HEAD"

// GetRef returns the digest name points to. The zero digest (stored as the
// empty string sentinel) means "unborn"; an absent row is errs.NotFound.
func (s *Store) GetRef(ctx context.Context, name string) (digest.Digest, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM refs WHERE name = ?`, name).Scan(&hash)
	if err == sql.ErrNoRows {
		return digest.Zero, errs.New(errs.NotFound, "ref %q not found", name)
	}
	if err != nil {
		return digest.Zero, errs.Wrap(errs.DB, err)
	}
	if hash == "" {
		return digest.Zero, nil
	}
	d, err := digest.FromHex(hash)
	if err != nil {
		return digest.Zero, errs.Wrap(errs.RepoCorrupt, err)
	}
	return d, nil
}

// SetRef upserts name to point at hash (outside of any transaction).
func (s *Store) SetRef(ctx context.Context, name string, hash digest.Digest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refs (name, hash) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET hash = excluded.hash`,
		name, refValue(hash))
	if err != nil {
		return errs.Wrap(errs.DB, err)
	}
	return nil
}

// GetRef reads name within the open transaction.
func (t *Tx) GetRef(ctx context.Context, name string) (digest.Digest, error) {
	var hash string
	err := t.tx.QueryRowContext(ctx, `SELECT hash FROM refs WHERE name = ?`, name).Scan(&hash)
	if err == sql.ErrNoRows {
		return digest.Zero, errs.New(errs.NotFound, "ref %q not found", name)
	}
	if err != nil {
		return digest.Zero, errs.Wrap(errs.DB, err)
	}
	if hash == "" {
		return digest.Zero, nil
	}
	d, err := digest.FromHex(hash)
	if err != nil {
		return digest.Zero, errs.Wrap(errs.RepoCorrupt, err)
	}
	return d, nil
}

// SetRef upserts name to point at hash within the open transaction, used by
// the repository facade to advance HEAD atomically with store_commit.
func (t *Tx) SetRef(ctx context.Context, name string, hash digest.Digest) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO refs (name, hash) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET hash = excluded.hash`,
		name, refValue(hash))
	if err != nil {
		return errs.Wrap(errs.DB, err)
	}
	return nil
}

func refValue(hash digest.Digest) string {
	if hash.IsZero() {
		return ""
	}
	return digest.ToHex(hash)
}
