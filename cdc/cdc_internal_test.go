package cdc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/logging"
	"github.com/scribehq/scribe/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource feeds a fixed batch once, then goes idle, and records which
// events ack was called with so tests can assert on commit-before-ack
// ordering without a real Postgres instance.
type fakeSource struct {
	mu      sync.Mutex
	batch   []RowEvent
	served  bool
	acked   []RowEvent
	ackCall int
}

func (f *fakeSource) poll(ctx context.Context, batchSize int) ([]RowEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.served {
		return nil, nil
	}
	f.served = true
	return f.batch, nil
}

func (f *fakeSource) ack(ctx context.Context, events []RowEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackCall++
	f.acked = append(f.acked, events...)
	return nil
}

func (f *fakeSource) close(ctx context.Context) {}

func newTestMonitor(t *testing.T) (*Monitor, *repo.Repository) {
	t.Helper()
	r, err := repo.Init(context.Background(), t.TempDir(), repo.Config{AuthorID: "service:scribe-cdc", AuthorRole: "cdc"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	m := &Monitor{
		cfg:  Config{AuthorID: DefaultAuthorID, AuthorRole: "cdc"},
		repo: r,
		log:  logging.New("NOOP"),
	}
	return m, r
}

func TestCommitEventInsertHasOnlyAfterDigest(t *testing.T) {
	ctx := context.Background()
	m, r := newTestMonitor(t)

	id, err := m.commitEvent(ctx, RowEvent{
		TableName:  "orders",
		Operation:  envelope.Insert,
		PrimaryKey: `{"id":1}`,
		AfterJSON:  `{"id":1,"total":42}`,
		TxID:       "100",
	})
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	loaded, err := r.LoadCommit(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded.Changes, 1)
	assert.True(t, loaded.Changes[0].BeforeDigest.IsZero())
	assert.False(t, loaded.Changes[0].AfterDigest.IsZero())
	assert.Equal(t, digest.HashBytes([]byte(`{"id":1,"total":42}`)), loaded.Changes[0].AfterDigest)
}

func TestCommitEventDeleteHasOnlyBeforeDigest(t *testing.T) {
	ctx := context.Background()
	m, r := newTestMonitor(t)

	id, err := m.commitEvent(ctx, RowEvent{
		TableName:  "orders",
		Operation:  envelope.Delete,
		PrimaryKey: `{"id":1}`,
		BeforeJSON: `{"id":1,"total":42}`,
		TxID:       "101",
	})
	require.NoError(t, err)

	loaded, err := r.LoadCommit(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded.Changes, 1)
	assert.False(t, loaded.Changes[0].BeforeDigest.IsZero())
	assert.True(t, loaded.Changes[0].AfterDigest.IsZero())
}

func TestCommitEventProcessNameCarriesTxID(t *testing.T) {
	ctx := context.Background()
	m, r := newTestMonitor(t)

	id, err := m.commitEvent(ctx, RowEvent{
		TableName:  "orders",
		Operation:  envelope.Insert,
		PrimaryKey: `{"id":1}`,
		AfterJSON:  `{"id":1}`,
		TxID:       "909",
	})
	require.NoError(t, err)

	loaded, err := r.LoadCommit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "scribe-cdc:txid:909", loaded.Process.Name)
	assert.Empty(t, loaded.Process.Source)
}

func TestCommitEventChainsOffHead(t *testing.T) {
	ctx := context.Background()
	m, r := newTestMonitor(t)

	id1, err := m.commitEvent(ctx, RowEvent{TableName: "orders", Operation: envelope.Insert, PrimaryKey: `{"id":1}`, AfterJSON: `{"id":1}`, TxID: "1"})
	require.NoError(t, err)
	id2, err := m.commitEvent(ctx, RowEvent{TableName: "orders", Operation: envelope.Insert, PrimaryKey: `{"id":2}`, AfterJSON: `{"id":2}`, TxID: "2"})
	require.NoError(t, err)

	loaded2, err := r.LoadCommit(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, id1, loaded2.ParentID)
}

func TestChangeToRowEventInsert(t *testing.T) {
	c := wal2jsonChange{
		Kind:         "insert",
		Table:        "orders",
		ColumnNames:  []string{"id", "total"},
		ColumnValues: []any{float64(1), float64(42)},
	}
	ev := changeToRowEvent(c)
	assert.Equal(t, envelope.Insert, ev.Operation)
	assert.Equal(t, "orders", ev.TableName)
	assert.NotEmpty(t, ev.AfterJSON)
	assert.Empty(t, ev.BeforeJSON)
}

func TestChangeToRowEventDeleteUsesOldKeys(t *testing.T) {
	c := wal2jsonChange{
		Kind:  "delete",
		Table: "orders",
		OldKeys: &struct {
			KeyNames  []string `json:"keynames"`
			KeyValues []any    `json:"keyvalues"`
		}{KeyNames: []string{"id"}, KeyValues: []any{float64(1)}},
	}
	ev := changeToRowEvent(c)
	assert.Equal(t, envelope.Delete, ev.Operation)
	assert.NotEmpty(t, ev.BeforeJSON)
	assert.Empty(t, ev.AfterJSON)
}

func TestJoinIdentifiers(t *testing.T) {
	assert.Equal(t, "", joinIdentifiers(nil))
	assert.Equal(t, `"orders"`, joinIdentifiers([]string{"orders"}))
	assert.Equal(t, `"orders", "customers"`, joinIdentifiers([]string{"orders", "customers"}))
}

func TestStartAcksOnlyAfterSuccessfulCommits(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMonitor(t)
	src := &fakeSource{batch: []RowEvent{
		{TableName: "orders", Operation: envelope.Insert, PrimaryKey: `{"id":1}`, AfterJSON: `{"id":1}`, TxID: "1", ackID: 1},
		{TableName: "orders", Operation: envelope.Insert, PrimaryKey: `{"id":2}`, AfterJSON: `{"id":2}`, TxID: "2", ackID: 2},
	}}
	m.src = src
	m.cfg.PollInterval = 5 * time.Millisecond
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go func() { _ = m.Start(ctx, nil) }()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.ackCall, "ack should run exactly once, after the whole batch committed")
	require.Len(t, src.acked, 2)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{src.acked[0].ackID, src.acked[1].ackID})
}
