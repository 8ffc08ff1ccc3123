// Package store implements the persistent commit store (C4): a SQLite-backed
// key-value store of commits and changes with secondary indexes and
// transactional semantics (§4.4), plus the reference table backing (C6,
// §4.6) and the auxiliary content-addressed objects table (§3, §4.4).
//
// Grounded on the retrieval pack's own modernc.org/sqlite + database/sql
// usage (hazyhaar-GoClode's internal/core engine) and pressly/goose/v3
// embedded migrations (rybkr-gitvista) rather than the teacher's own
// Azure-blob-backed massif store, which has no relational schema to adapt
// — see DESIGN.md.
package store

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/internal/logging"
)

// SchemaVersion is the schema_version this build of scribe understands.
const SchemaVersion = "1"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store owns the on-disk SQLite database and enforces the single-writer,
// non-nested transaction discipline from §5.
type Store struct {
	db  *sql.DB
	log logging.Logger

	mu     sync.Mutex
	txOpen bool
}

// Open opens (creating if necessary) the SQLite database at path, runs
// pending migrations, and checks config.schema_version.
func Open(ctx context.Context, path string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.New("NOOP")
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.DB, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.DB, err)
	}
	db.SetMaxOpenConns(1) // single writer per repository, §5

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.DB, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.DB, err)
	}

	s := &Store{db: db, log: log}
	if err := s.checkSchemaVersion(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("store: opened %s", path)
	return s, nil
}

func (s *Store) checkSchemaVersion(ctx context.Context) error {
	var version string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = 'schema_version'`)
	if err := row.Scan(&version); err != nil {
		return errs.Wrap(errs.DB, err)
	}
	if version != SchemaVersion {
		return errs.Wrap(errs.RepoCorrupt, ErrUnknownSchemaVersion)
	}
	return nil
}

// Close releases the underlying database handle. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errs.Wrap(errs.DB, err)
	}
	return nil
}

// Tx is an open commit-store transaction.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

// Begin starts a new transaction. Nested transactions (calling Begin again
// before the first Tx is committed or rolled back) return errs.InvalidArg.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	s.mu.Lock()
	if s.txOpen {
		s.mu.Unlock()
		return nil, errs.New(errs.InvalidArg, "store: nested transactions are not supported")
	}
	s.txOpen = true
	s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Lock()
		s.txOpen = false
		s.mu.Unlock()
		return nil, errs.Wrap(errs.DB, err)
	}
	return &Tx{tx: tx, s: s}, nil
}

func (t *Tx) release() {
	t.s.mu.Lock()
	t.s.txOpen = false
	t.s.mu.Unlock()
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	defer t.release()
	if err := t.tx.Commit(); err != nil {
		return errs.Wrap(errs.DB, err)
	}
	return nil
}

// Rollback rolls back the transaction. Safe to call after a failed Commit.
func (t *Tx) Rollback() error {
	defer t.release()
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return errs.Wrap(errs.DB, err)
	}
	return nil
}
