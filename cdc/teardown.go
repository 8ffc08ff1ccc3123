package cdc

import (
	"context"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribehq/scribe/internal/errs"
)

// Cleanup drops the logical-replication slot and publication cfg names, for
// `watch --cleanup`. It is a no-op for trigger mode, which owns no
// replication-specific upstream state.
func Cleanup(ctx context.Context, cfg Config) error {
	if cfg.Mode != ModeLogical {
		return nil
	}
	if cfg.SlotName == "" {
		cfg.SlotName = DefaultSlotName
	}
	if cfg.PublicationName == "" {
		cfg.PublicationName = DefaultPublicationName
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return errs.Wrap(errs.PGConnect, err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `DROP PUBLICATION IF EXISTS `+cfg.PublicationName); err != nil {
		return errs.Wrap(errs.PGQuery, err)
	}

	replConn, err := pgxReplConn(ctx, cfg.ConnString)
	if err != nil {
		return err
	}
	defer replConn.Close(ctx)

	if err := pglogrepl.DropReplicationSlot(ctx, replConn, cfg.SlotName, pglogrepl.DropReplicationSlotOptions{}); err != nil && !isMissingSlotError(err) {
		return errs.Wrap(errs.PGReplication, err)
	}
	return nil
}

func isMissingSlotError(err error) bool {
	pgErr, ok := err.(interface{ SQLState() string })
	return ok && pgErr.SQLState() == "42704" // undefined_object
}
