// Package cdc implements the change-data-capture ingestion adapter (C8,
// §4.8): it consumes normalized row events from an upstream Postgres
// database, in either trigger-poll or logical-replication mode, and
// translates each into a single-change envelope committed to a repo.Repository.
package cdc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/internal/logging"
	"github.com/scribehq/scribe/repo"
)

// Mode selects the upstream extraction strategy.
type Mode string

const (
	ModeTrigger  Mode = "trigger"
	ModeLogical  Mode = "logical"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = time.Second

// reconnectBackoff is the fixed delay after a connection error before the
// monitor loop retries, per §4.8.
const reconnectBackoff = time.Second

// RowEvent is the normalized upstream change the adapter translates into
// an envelope (§4.8).
type RowEvent struct {
	TableName    string
	Operation    envelope.Operation
	PrimaryKey   string
	BeforeJSON   string
	AfterJSON    string
	TxID         string
	LSN          string

	// ackID carries the audit row id in trigger mode, which source.ack uses
	// to mark the row processed once the event has been durably committed.
	// Logical mode leaves it zero: its ack compares the number of events
	// handed back with the size of the last polled batch. Opaque to Monitor;
	// passed back to source.ack verbatim.
	ackID int64
}

// Config configures a Monitor.
type Config struct {
	Mode            Mode
	ConnString      string
	WatchedTables   []string
	PollInterval    time.Duration
	BatchSize       int
	AuthorID        string
	AuthorRole      string
	SlotName        string
	PublicationName string
}

// DefaultAuthorID is used when Config.AuthorID is empty, identifying
// changes the adapter itself originates.
const DefaultAuthorID = "service:scribe-cdc"

// DefaultBatchSize bounds a single poll when Config.BatchSize is zero.
const DefaultBatchSize = 100

// source is the interface both extraction modes implement.
type source interface {
	// poll returns at most batchSize new events, or none if idle. Returned
	// events are not yet acknowledged upstream: the caller must call ack
	// once each has been durably committed, so a crash between poll and
	// commit leaves them eligible for redelivery rather than silently lost.
	poll(ctx context.Context, batchSize int) ([]RowEvent, error)
	// ack acknowledges events whose commit has succeeded, advancing the
	// upstream marker (audit row flag, replication slot position) so they
	// are not redelivered. Events whose commit failed must be omitted.
	ack(ctx context.Context, events []RowEvent) error
	// close releases the source's upstream connection.
	close(ctx context.Context)
}

// Monitor drives the CDC loop: poll a source, translate each event into an
// envelope, and commit it to repo.
type Monitor struct {
	cfg   Config
	cfgMu sync.RWMutex
	repo  *repo.Repository
	log   logging.Logger

	pool   *pgxpool.Pool
	src    source
	stopCh chan struct{}
	doneCh chan struct{}
}

// SetAuthor updates the author identity attached to events committed from
// here on, without interrupting an in-flight poll loop. Watched tables and
// connection parameters are fixed at New and cannot be changed live: the
// upstream source (trigger audit table or replication slot) is already
// bound to them.
func (m *Monitor) SetAuthor(authorID, authorRole string) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	m.cfg.AuthorID = authorID
	m.cfg.AuthorRole = authorRole
}

// New connects to the upstream database per cfg.Mode and returns a Monitor
// ready to Start.
func New(ctx context.Context, cfg Config, r *repo.Repository, log logging.Logger) (*Monitor, error) {
	if log == nil {
		log = logging.New("NOOP")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.AuthorID == "" {
		cfg.AuthorID = DefaultAuthorID
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, errs.Wrap(errs.PGConnect, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(errs.PGConnect, err)
	}

	var src source
	switch cfg.Mode {
	case ModeLogical:
		src, err = newLogicalSource(ctx, pool, cfg)
	default:
		src, err = newTriggerSource(ctx, pool, cfg)
	}
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Monitor{
		cfg: cfg, repo: r, log: log,
		pool: pool, src: src,
		stopCh: make(chan struct{}), doneCh: make(chan struct{}),
	}, nil
}

// Start runs the blocking poll loop until Stop is called. callback, if
// non-nil, is invoked with each committed envelope's commit id.
func (m *Monitor) Start(ctx context.Context, callback func(digest.Digest)) error {
	defer close(m.doneCh)
	for {
		select {
		case <-m.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		events, err := m.src.poll(ctx, m.cfg.BatchSize)
		if err != nil {
			m.log.Errorf("cdc: poll failed: %v", err)
			select {
			case <-time.After(reconnectBackoff):
			case <-m.stopCh:
				return nil
			}
			continue
		}

		if len(events) == 0 {
			select {
			case <-time.After(m.cfg.PollInterval):
			case <-m.stopCh:
				return nil
			}
			continue
		}

		var committed []RowEvent
		for _, ev := range events {
			id, err := m.commitEvent(ctx, ev)
			if err != nil {
				m.log.Errorf("cdc: commit event failed: %v", err)
				continue
			}
			committed = append(committed, ev)
			if callback != nil {
				callback(id)
			}
		}

		if len(committed) > 0 {
			if err := m.src.ack(ctx, committed); err != nil {
				m.log.Errorf("cdc: ack failed, events may be redelivered: %v", err)
			}
		}
	}
}

// Stop requests the loop stop after its current batch and blocks until it
// has exited.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// Close releases the upstream connection pool. Call after Stop returns.
func (m *Monitor) Close(ctx context.Context) {
	m.src.close(ctx)
	m.pool.Close()
}

func (m *Monitor) commitEvent(ctx context.Context, ev RowEvent) (digest.Digest, error) {
	before := digest.Zero
	if ev.BeforeJSON != "" {
		before = digest.HashBytes([]byte(ev.BeforeJSON))
	}
	after := digest.Zero
	if ev.AfterJSON != "" {
		after = digest.HashBytes([]byte(ev.AfterJSON))
	}

	m.cfgMu.RLock()
	authorID, authorRole := m.cfg.AuthorID, m.cfg.AuthorRole
	m.cfgMu.RUnlock()

	env := envelope.New()
	env.SetAuthor(authorID, authorRole, "")
	env.SetProcess(fmt.Sprintf("scribe-cdc:txid:%s", ev.TxID), "v1", "", "")
	env.SetMessage(fmt.Sprintf("cdc: %s %s", ev.Operation, ev.TableName))

	if err := env.AddChange(envelope.Change{
		Table:        ev.TableName,
		Operation:    ev.Operation,
		PrimaryKey:   ev.PrimaryKey,
		BeforeDigest: before,
		AfterDigest:  after,
	}); err != nil {
		return digest.Zero, err
	}

	if err := m.repo.StoreCommit(ctx, env); err != nil {
		return digest.Zero, err
	}
	return env.CommitID, nil
}
