package cdc

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/errs"
)

// auditTableName is the upstream append-only audit table trigger mode
// expects the watched database to maintain, per §4.8.
const auditTableName = "scribe_audit"

// triggerSource implements source by polling an upstream audit table with
// `SELECT ... FOR UPDATE SKIP LOCKED`. Rows are marked processed only once
// ack is called for them, after their commit to the repo has succeeded: a
// crash between poll and ack leaves the rows unprocessed and safely
// re-pollable, at the cost of a concurrent second poller being able to pick
// up the same unacked rows before ack runs. Single-writer use (one Monitor
// per audit table) avoids that race entirely.
type triggerSource struct {
	pool *pgxpool.Pool
}

func newTriggerSource(ctx context.Context, pool *pgxpool.Pool, cfg Config) (*triggerSource, error) {
	return &triggerSource{pool: pool}, nil
}

func (t *triggerSource) poll(ctx context.Context, batchSize int) ([]RowEvent, error) {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errs.Wrap(errs.PGConnect, err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, table_name, operation, primary_key, before_json, after_json, txid::text
		FROM `+auditTableName+`
		WHERE NOT processed
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return nil, errs.Wrap(errs.PGQuery, err)
	}

	var events []RowEvent
	for rows.Next() {
		var id int64
		var table, operation, pk string
		var before, after *string
		var txid string
		if err := rows.Scan(&id, &table, &operation, &pk, &before, &after, &txid); err != nil {
			rows.Close()
			return nil, errs.Wrap(errs.PGQuery, err)
		}
		ev := RowEvent{
			TableName:  table,
			Operation:  envelope.Operation(operation),
			PrimaryKey: pk,
			TxID:       txid,
			ackID:      id,
		}
		if before != nil {
			ev.BeforeJSON = *before
		}
		if after != nil {
			ev.AfterJSON = *after
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.PGQuery, err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Wrap(errs.PGQuery, err)
	}
	return events, nil
}

// ack marks each committed event's audit row processed, so it is excluded
// from future polls. Called only after the event has been durably written
// to the repo.
func (t *triggerSource) ack(ctx context.Context, events []RowEvent) error {
	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ackID
	}
	if _, err := t.pool.Exec(ctx, `UPDATE `+auditTableName+` SET processed = true WHERE id = ANY($1)`, ids); err != nil {
		return errs.Wrap(errs.PGQuery, err)
	}
	return nil
}

func (t *triggerSource) close(ctx context.Context) {}
