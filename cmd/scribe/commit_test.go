package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommit(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	g := &globalFlags{chdir: dir}
	cmd := newCommitCmd(g)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommitInsertHashesDataIntoAfterDigest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := repo.Init(ctx, dir, repo.Config{AuthorID: "user:alice", AuthorRole: "data_engineer"}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	out, err := runCommit(t, dir, "--table", "orders", "--operation", "INSERT", "--data", `{"id":1}`)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	r, err = repo.Open(ctx, dir, nil)
	require.NoError(t, err)
	defer r.Close()
	id, err := digest.FromHex(out[:len(out)-1])
	require.NoError(t, err)
	loaded, err := r.LoadCommit(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded.Changes, 1)
	assert.True(t, loaded.Changes[0].BeforeDigest.IsZero())
	assert.Equal(t, digest.HashBytes([]byte(`{"id":1}`)), loaded.Changes[0].AfterDigest)
}

func TestCommitUpdateRequiresBeforeAndAfterData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := repo.Init(ctx, dir, repo.Config{AuthorID: "user:alice", AuthorRole: "data_engineer"}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = runCommit(t, dir, "--table", "orders", "--operation", "UPDATE", "--before-data", `{"id":1,"total":1}`)
	require.Error(t, err, "UPDATE without --after-data must be rejected")

	out, err := runCommit(t, dir, "--table", "orders", "--operation", "UPDATE",
		"--before-data", `{"id":1,"total":1}`, "--after-data", `{"id":1,"total":2}`)
	require.NoError(t, err)

	r, err = repo.Open(ctx, dir, nil)
	require.NoError(t, err)
	defer r.Close()
	id, err := digest.FromHex(out[:len(out)-1])
	require.NoError(t, err)
	loaded, err := r.LoadCommit(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded.Changes, 1)
	assert.NotEqual(t, loaded.Changes[0].BeforeDigest, loaded.Changes[0].AfterDigest,
		"distinct before/after payloads must produce distinct digests")
}
