package main

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChange(table string) envelope.Change {
	return envelope.Change{
		Table:       table,
		Operation:   envelope.Insert,
		PrimaryKey:  `{"id":1}`,
		AfterDigest: digest.HashBytes([]byte(table)),
	}
}

func runVerify(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	g := &globalFlags{chdir: dir}
	cmd := newVerifyCmd(g)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func tamperMessage(t *testing.T, dir string, commitID digest.Digest, message string) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, ".scribe", "scribe.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE commits SET message = ? WHERE commit_id = ?`, message, digest.ToHex(commitID))
	require.NoError(t, err)
}

func TestVerifyFullChainReportsOKAndSummary(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := repo.Init(ctx, dir, repo.Config{AuthorID: "user:alice", AuthorRole: "data_engineer"}, nil)
	require.NoError(t, err)

	env1 := envelope.New()
	env1.SetAuthor("user:alice", "data_engineer", "")
	env1.SetProcess("etl.py", "v1", "", "")
	env1.SetMessage("seed")
	require.NoError(t, env1.AddChange(newChange("orders")))
	require.NoError(t, r.StoreCommit(ctx, env1))

	env2 := envelope.New()
	env2.SetAuthor("user:alice", "data_engineer", "")
	env2.SetProcess("etl.py", "v1", "", "")
	require.NoError(t, env2.AddChange(newChange("orders")))
	require.NoError(t, r.StoreCommit(ctx, env2))
	require.NoError(t, r.Close())

	out, err := runVerify(t, dir, "--full")
	require.NoError(t, err)
	assert.Contains(t, out, digest.ToHex(env1.CommitID)+" OK")
	assert.Contains(t, out, digest.ToHex(env2.CommitID)+" OK")
	assert.Contains(t, out, "All parent links valid")
}

func TestVerifyReportsFailedOnTamperedCommitAndContinues(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := repo.Init(ctx, dir, repo.Config{AuthorID: "user:alice", AuthorRole: "data_engineer"}, nil)
	require.NoError(t, err)

	env1 := envelope.New()
	env1.SetAuthor("user:alice", "data_engineer", "")
	env1.SetProcess("etl.py", "v1", "", "")
	env1.SetMessage("seed")
	require.NoError(t, env1.AddChange(newChange("orders")))
	require.NoError(t, r.StoreCommit(ctx, env1))

	env2 := envelope.New()
	env2.SetAuthor("user:alice", "data_engineer", "")
	env2.SetProcess("etl.py", "v1", "", "")
	require.NoError(t, env2.AddChange(newChange("orders")))
	require.NoError(t, r.StoreCommit(ctx, env2))
	require.NoError(t, r.Close())

	tamperMessage(t, dir, env2.CommitID, "tampered")

	out, err := runVerify(t, dir, "--full")
	require.Error(t, err)
	assert.Contains(t, out, digest.ToHex(env1.CommitID)+" OK")
	assert.Contains(t, out, digest.ToHex(env2.CommitID)+" FAILED (hash mismatch)")
	assert.NotContains(t, out, "All parent links valid")
}
