package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/scribehq/scribe/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchConfigInvokesCallbackOnWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := repo.Init(ctx, dir, repo.Config{AuthorID: "user:alice", AuthorRole: "data_engineer"}, nil)
	require.NoError(t, err)
	defer r.Close()

	updates := make(chan repo.Config, 4)
	stop, err := r.WatchConfig(func(cfg repo.Config) {
		updates <- cfg
	})
	require.NoError(t, err)
	defer stop()

	newCfg := repo.Config{AuthorID: "user:bob", AuthorRole: "analyst"}
	require.NoError(t, r.WriteConfig(newCfg))

	select {
	case got := <-updates:
		assert.Equal(t, "user:bob", got.AuthorID)
		assert.Equal(t, "analyst", got.AuthorRole)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload callback")
	}
}
