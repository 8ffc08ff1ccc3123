// Package repo implements the repository facade (C7, §4.7): discovery of
// an existing repository, initialization of a new one, and the atomic
// store_commit pipeline that ties the commit store, object store and refs
// together. Repository is the sole owner of the handles it opens and
// closes them on Close.
package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/internal/logging"
	"github.com/scribehq/scribe/objects"
	"github.com/scribehq/scribe/refs"
	"github.com/scribehq/scribe/store"

	"github.com/scribehq/scribe/digest"
)

// dirName is the repository metadata directory, analogous to .git.
const dirName = ".scribe"

// dbName is the commit store's filename within dirName.
const dbName = "scribe.db"

// objectsDirName is the object store's directory within dirName.
const objectsDirName = "objects"

// configName is the repository configuration file within dirName.
const configName = "config.json"

// Config is the repository's config.json contents (§6).
type Config struct {
	AuthorID           string   `json:"author_id"`
	AuthorRole         string   `json:"author_role"`
	PGConnectionString string   `json:"pg_connection_string,omitempty"`
	WatchedTables      []string `json:"watched_tables,omitempty"`
}

// Repository is an open handle onto a .scribe repository.
type Repository struct {
	root    string
	store   *store.Store
	objects *objects.Store
	refs    *refs.Store
	log     logging.Logger
}

// Init creates a new repository rooted at path (the working directory if
// path is empty): <path>/.scribe, <path>/.scribe/objects, a schema-
// initialized commit store, and a default config.json. Re-initializing an
// existing repository fails with errs.RepoExists.
func Init(ctx context.Context, path string, cfg Config, log logging.Logger) (*Repository, error) {
	if log == nil {
		log = logging.New("NOOP")
	}
	root, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	scribeDir := filepath.Join(root, dirName)
	if _, err := os.Stat(scribeDir); err == nil {
		return nil, errs.New(errs.RepoExists, "%s already initialized", root)
	}

	if err := os.MkdirAll(scribeDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}

	r, err := initRepoContents(ctx, root, scribeDir, cfg, log)
	if err != nil {
		// Any failure past this point leaves a half-initialized .scribe
		// directory that would permanently block re-init (errs.RepoExists
		// on the next attempt, with nothing usable inside); remove it.
		os.RemoveAll(scribeDir)
		return nil, err
	}

	log.Infof("repo: initialized %s", root)
	return r, nil
}

func initRepoContents(ctx context.Context, root, scribeDir string, cfg Config, log logging.Logger) (*Repository, error) {
	objStore, err := objects.Open(filepath.Join(scribeDir, objectsDirName))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, filepath.Join(scribeDir, dbName), log)
	if err != nil {
		return nil, err
	}

	if err := writeConfig(scribeDir, cfg); err != nil {
		st.Close()
		return nil, err
	}

	refStore := refs.New(st)
	if err := refStore.Set(ctx, refs.Head, digest.Zero); err != nil {
		st.Close()
		return nil, err
	}

	return &Repository{root: root, store: st, objects: objStore, refs: refStore, log: log}, nil
}

// Open discovers an existing repository by walking upward from path (the
// working directory if path is empty) looking for a .scribe directory.
// Fails with errs.NotARepo if none is found before reaching the filesystem
// root.
func Open(ctx context.Context, path string, log logging.Logger) (*Repository, error) {
	if log == nil {
		log = logging.New("NOOP")
	}
	start, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	root, err := discover(start)
	if err != nil {
		return nil, err
	}

	scribeDir := filepath.Join(root, dirName)
	objStore, err := objects.Open(filepath.Join(scribeDir, objectsDirName))
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, filepath.Join(scribeDir, dbName), log)
	if err != nil {
		return nil, err
	}

	return &Repository{root: root, store: st, objects: objStore, refs: refs.New(st), log: log}, nil
}

func resolvePath(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errs.Wrap(errs.IO, err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.Wrap(errs.IO, err)
	}
	return abs, nil
}

func discover(start string) (string, error) {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, dirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errs.New(errs.NotARepo, "no %s directory found above %s", dirName, start)
		}
		dir = parent
	}
}

func writeConfig(scribeDir string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errs.Wrap(errs.JSONParse, err)
	}
	if err := os.WriteFile(filepath.Join(scribeDir, configName), data, 0o644); err != nil {
		return errs.Wrap(errs.IO, err)
	}
	return nil
}

// LoadConfig reads config.json from the repository.
func (r *Repository) LoadConfig() (Config, error) {
	return loadConfig(filepath.Join(r.root, dirName, configName))
}

// WriteConfig overwrites config.json. A running `watch` loop with
// WatchConfig active picks up the change without a restart.
func (r *Repository) WriteConfig(cfg Config) error {
	return writeConfig(filepath.Join(r.root, dirName), cfg)
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errs.Wrap(errs.IO, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.Wrap(errs.JSONParse, err)
	}
	return cfg, nil
}

// Root returns the repository's working directory.
func (r *Repository) Root() string {
	return r.root
}

// Objects returns the repository's content-addressed object store.
func (r *Repository) Objects() *objects.Store {
	return r.objects
}

// Close releases the underlying store handle. Idempotent.
func (r *Repository) Close() error {
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// StoreCommit is the atomic writer pipeline (§4.7): finalize, begin,
// store_commit, advance HEAD, commit. Any error triggers rollback and is
// surfaced to the caller with the envelope left untouched in the store.
func (r *Repository) StoreCommit(ctx context.Context, env *envelope.Envelope) error {
	if env.ParentID.IsZero() {
		head, err := r.refs.Get(ctx, refs.Head)
		if err != nil {
			return err
		}
		env.SetParent(head)
	}
	if err := envelope.Finalize(env); err != nil {
		return err
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.StoreCommit(ctx, env); err != nil {
		tx.Rollback()
		return err
	}
	if err := refs.In(tx).Set(ctx, refs.Head, env.CommitID); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.log.Infof("repo: committed %s", env.CommitID)
	return nil
}

// LoadCommit delegates to the commit store.
func (r *Repository) LoadCommit(ctx context.Context, id digest.Digest) (*envelope.Envelope, error) {
	return r.store.LoadCommit(ctx, id)
}

// GetHistory delegates to the commit store, walking the parent chain from
// from (or from HEAD, if from is zero).
func (r *Repository) GetHistory(ctx context.Context, from digest.Digest, limit int) ([]digest.Digest, error) {
	if from.IsZero() {
		head, err := r.GetHead(ctx)
		if err != nil {
			return nil, err
		}
		from = head
	}
	return r.store.GetHistory(ctx, from, limit)
}

// GetHead returns the current HEAD digest.
func (r *Repository) GetHead(ctx context.Context) (digest.Digest, error) {
	return r.refs.Get(ctx, refs.Head)
}

// SetHead force-moves HEAD, bypassing store_commit, for callers that need
// to move the chain tip explicitly.
func (r *Repository) SetHead(ctx context.Context, id digest.Digest) error {
	return r.refs.Set(ctx, refs.Head, id)
}
