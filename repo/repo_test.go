package repo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Init(context.Background(), t.TempDir(), repo.Config{AuthorID: "user:alice", AuthorRole: "data_engineer"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newChange(table string) envelope.Change {
	return envelope.Change{
		Table:       table,
		Operation:   envelope.Insert,
		PrimaryKey:  `{"id":1}`,
		AfterDigest: digest.HashBytes([]byte(table)),
	}
}

func TestInitThenReinitFails(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(context.Background(), dir, repo.Config{AuthorID: "a", AuthorRole: "r"}, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = repo.Init(context.Background(), dir, repo.Config{AuthorID: "a", AuthorRole: "r"}, nil)
	require.Error(t, err)
	assert.Equal(t, errs.RepoExists, errs.KindOf(err))
}

func TestOpenWithoutInitFails(t *testing.T) {
	_, err := repo.Open(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.Equal(t, errs.NotARepo, errs.KindOf(err))
}

func TestInitCleansUpOnFailurePastMkdir(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Init(ctx, dir, repo.Config{AuthorID: "a", AuthorRole: "r"}, nil)
	require.Error(t, err, "a canceled context should fail the store's initial ping")

	_, statErr := os.Stat(filepath.Join(dir, ".scribe"))
	assert.True(t, os.IsNotExist(statErr), "a failed Init must not leave a half-initialized .scribe behind")

	r, err := repo.Init(context.Background(), dir, repo.Config{AuthorID: "a", AuthorRole: "r"}, nil)
	require.NoError(t, err, "re-init on the same path must succeed once the failed attempt is cleaned up")
	r.Close()
}

func TestHeadStartsZero(t *testing.T) {
	r := initTestRepo(t)
	head, err := r.GetHead(context.Background())
	require.NoError(t, err)
	assert.True(t, head.IsZero())
}

func TestStoreCommitAdvancesHead(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)

	env := envelope.New()
	env.SetAuthor("user:alice", "data_engineer", "")
	env.SetProcess("etl.py", "v1", "", "")
	env.SetMessage("first commit")
	require.NoError(t, env.AddChange(newChange("orders")))

	require.NoError(t, r.StoreCommit(ctx, env))

	head, err := r.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.CommitID, head)
	assert.True(t, env.ParentID.IsZero())

	loaded, err := r.LoadCommit(ctx, head)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "first commit", loaded.Message)
}

func TestStoreCommitChainsParents(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)

	env1 := envelope.New()
	env1.SetAuthor("user:alice", "data_engineer", "")
	env1.SetProcess("etl.py", "v1", "", "")
	require.NoError(t, env1.AddChange(newChange("orders")))
	require.NoError(t, r.StoreCommit(ctx, env1))

	env2 := envelope.New()
	env2.SetAuthor("user:alice", "data_engineer", "")
	env2.SetProcess("etl.py", "v1", "", "")
	require.NoError(t, env2.AddChange(newChange("customers")))
	require.NoError(t, r.StoreCommit(ctx, env2))

	assert.Equal(t, env1.CommitID, env2.ParentID)

	history, err := r.GetHistory(ctx, digest.Zero, 0)
	require.NoError(t, err)
	assert.Equal(t, []digest.Digest{env2.CommitID, env1.CommitID}, history)
}

func TestReopenSeesExistingHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r1, err := repo.Init(ctx, dir, repo.Config{AuthorID: "a", AuthorRole: "r"}, nil)
	require.NoError(t, err)
	env := envelope.New()
	env.SetAuthor("a", "r", "")
	env.SetProcess("p", "v1", "", "")
	require.NoError(t, env.AddChange(newChange("orders")))
	require.NoError(t, r1.StoreCommit(ctx, env))
	require.NoError(t, r1.Close())

	r2, err := repo.Open(ctx, dir, nil)
	require.NoError(t, err)
	defer r2.Close()

	head, err := r2.GetHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.CommitID, head)
}

func TestLoadConfigRoundTrips(t *testing.T) {
	r := initTestRepo(t)
	cfg, err := r.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "user:alice", cfg.AuthorID)
	assert.Equal(t, "data_engineer", cfg.AuthorRole)
}
