package store

import (
	"context"
	"database/sql"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/internal/errs"
)

// ObjectType is the auxiliary object's payload kind (§3 "Object (auxiliary)").
type ObjectType string

const (
	ObjectBlob   ObjectType = "blob"
	ObjectTree   ObjectType = "tree"
	ObjectCommit ObjectType = "commit"
)

// PutAuxObject inserts a row into the objects table, keyed by the Git-style
// typed digest of its content (§3: SHA256("<type> <size>\0" ++ content)),
// and returns that digest. A duplicate hash is a no-op, matching the object
// store's own idempotent-write contract (§4.5) even though this is the
// DB-backed auxiliary table rather than the filesystem store.
func (s *Store) PutAuxObject(ctx context.Context, typ ObjectType, content []byte) (digest.Digest, error) {
	hash := digest.HashObject(string(typ), content)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (hash, type, content, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING`,
		digest.ToHex(hash), string(typ), content, len(content))
	if err != nil {
		return digest.Zero, errs.Wrap(errs.DB, err)
	}
	return hash, nil
}

// GetAuxObject returns the stored object's type and content, or
// errs.ObjMissing if absent.
func (s *Store) GetAuxObject(ctx context.Context, hash digest.Digest) (ObjectType, []byte, error) {
	var typ string
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT type, content FROM objects WHERE hash = ?`, digest.ToHex(hash)).Scan(&typ, &content)
	if err == sql.ErrNoRows {
		return "", nil, errs.New(errs.ObjMissing, "object %s not found", digest.ToHex(hash))
	}
	if err != nil {
		return "", nil, errs.Wrap(errs.DB, err)
	}
	return ObjectType(typ), content, nil
}
