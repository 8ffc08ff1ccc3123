// Package refs implements the reference store facade (C6, §4.6): a thin,
// independently addressable handle over the commit store's refs table,
// kept as its own package the way the teacher keeps storage.PathProvider
// distinct from its blob client even though both ultimately talk to the
// same backing store.
package refs

import (
	"context"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/store"
)

// Head is the well-known name of the mutable pointer to the commit chain tip.
const Head = store.HeadRef

// Store is a handle onto the refs table of an open commit store.
type Store struct {
	s *store.Store
}

// New wraps an already-open commit store.
func New(s *store.Store) *Store {
	return &Store{s: s}
}

// Get returns the digest name points to. Absent names are errs.NotFound;
// the zero sentinel means "unborn".
func (r *Store) Get(ctx context.Context, name string) (digest.Digest, error) {
	return r.s.GetRef(ctx, name)
}

// Set upserts name to point at hash, outside of any transaction.
func (r *Store) Set(ctx context.Context, name string, hash digest.Digest) error {
	return r.s.SetRef(ctx, name, hash)
}

// Tx is a refs-scoped view of an open store transaction, used by repo's
// atomic store_commit pipeline to advance HEAD alongside the commit write.
type Tx struct {
	tx *store.Tx
}

// In returns a Tx view over an already-open store transaction.
func In(tx *store.Tx) *Tx {
	return &Tx{tx: tx}
}

// Get reads name within the transaction.
func (t *Tx) Get(ctx context.Context, name string) (digest.Digest, error) {
	return t.tx.GetRef(ctx, name)
}

// Set upserts name within the transaction.
func (t *Tx) Set(ctx context.Context, name string, hash digest.Digest) error {
	return t.tx.SetRef(ctx, name, hash)
}
