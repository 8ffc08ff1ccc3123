package store

import (
	"context"
	"database/sql"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
	"github.com/scribehq/scribe/internal/errs"
)

// StoreCommit inserts the commit row and one row per change, within the
// open transaction. A zero parent_id is stored as SQL NULL, never as the
// hex of the zero digest (§4.4). Storing the same commit_id twice violates
// the commits primary key and fails with errs.DB (§8 property 7).
func (t *Tx) StoreCommit(ctx context.Context, env *envelope.Envelope) error {
	if env.CommitID.IsZero() {
		return errs.New(errs.InvalidArg, "store_commit: envelope has not been finalized")
	}

	var parentID any
	if !env.ParentID.IsZero() {
		parentID = digest.ToHex(env.ParentID)
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO commits (
			commit_id, parent_id, tree_hash,
			author_id, author_role, author_email,
			process_name, process_version, process_params, process_source,
			message, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		digest.ToHex(env.CommitID), parentID, digest.ToHex(env.TreeHash),
		env.Author.ID, nullableString(env.Author.Role), nullableString(env.Author.Email),
		env.Process.Name, nullableString(env.Process.Version), nullableString(env.Process.Params), nullableString(env.Process.Source),
		nullableString(env.Message), env.Timestamp,
	)
	if err != nil {
		return errs.Wrap(errs.DB, err)
	}

	for _, c := range env.Changes {
		var before, after any
		if !c.BeforeDigest.IsZero() {
			before = digest.ToHex(c.BeforeDigest)
		}
		if !c.AfterDigest.IsZero() {
			after = digest.ToHex(c.AfterDigest)
		}
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO changes (commit_id, table_name, operation, primary_key, before_hash, after_hash)
			VALUES (?, ?, ?, ?, ?, ?)`,
			digest.ToHex(env.CommitID), c.Table, string(c.Operation), c.PrimaryKey, before, after,
		)
		if err != nil {
			return errs.Wrap(errs.DB, err)
		}
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// LoadCommit returns the complete envelope including its ordered changes,
// or (nil, nil) if not present.
func (s *Store) LoadCommit(ctx context.Context, id digest.Digest) (*envelope.Envelope, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT parent_id, tree_hash, author_id, author_role, author_email,
		       process_name, process_version, process_params, process_source,
		       message, timestamp
		FROM commits WHERE commit_id = ?`, digest.ToHex(id))

	var parentID, authorRole, authorEmail, processVersion, processParams, processSource, message sql.NullString
	var treeHash, authorID, processName string
	var timestamp int64

	err := row.Scan(&parentID, &treeHash, &authorID, &authorRole, &authorEmail,
		&processName, &processVersion, &processParams, &processSource, &message, &timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.DB, err)
	}

	env := envelope.New()
	env.CommitID = id
	if parentID.Valid {
		pid, err := digest.FromHex(parentID.String)
		if err != nil {
			return nil, errs.Wrap(errs.RepoCorrupt, err)
		}
		env.ParentID = pid
	}
	th, err := digest.FromHex(treeHash)
	if err != nil {
		return nil, errs.Wrap(errs.RepoCorrupt, err)
	}
	env.TreeHash = th
	env.Author = envelope.Author{ID: authorID, Role: authorRole.String, Email: authorEmail.String}
	env.Process = envelope.Process{
		Name: processName, Version: processVersion.String,
		Params: processParams.String, Source: processSource.String,
	}
	env.Message = message.String
	env.Timestamp = timestamp

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, operation, primary_key, before_hash, after_hash
		FROM changes WHERE commit_id = ? ORDER BY id ASC`, digest.ToHex(id))
	if err != nil {
		return nil, errs.Wrap(errs.DB, err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, operation, pk string
		var before, after sql.NullString
		if err := rows.Scan(&table, &operation, &pk, &before, &after); err != nil {
			return nil, errs.Wrap(errs.DB, err)
		}
		c := envelope.Change{Table: table, Operation: envelope.Operation(operation), PrimaryKey: pk}
		if before.Valid {
			d, err := digest.FromHex(before.String)
			if err != nil {
				return nil, errs.Wrap(errs.RepoCorrupt, err)
			}
			c.BeforeDigest = d
		}
		if after.Valid {
			d, err := digest.FromHex(after.String)
			if err != nil {
				return nil, errs.Wrap(errs.RepoCorrupt, err)
			}
			c.AfterDigest = d
		}
		env.Changes = append(env.Changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.DB, err)
	}

	return env, nil
}

// CommitExists reports whether id is present in the store.
func (s *Store) CommitExists(ctx context.Context, id digest.Digest) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM commits WHERE commit_id = ?)`, digest.ToHex(id)).Scan(&exists)
	if err != nil {
		return false, errs.Wrap(errs.DB, err)
	}
	return exists, nil
}

// CommitCount returns the total number of commits in the store.
func (s *Store) CommitCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&n); err != nil {
		return 0, errs.Wrap(errs.DB, err)
	}
	return n, nil
}

// DefaultHistoryLimit is used by GetHistory when limit <= 0.
const DefaultHistoryLimit = 100

// GetHistory walks the parent chain starting at from, returning at most
// limit ids newest-first. It stops on a zero parent or a missing parent
// (§4.4, §8 property 6).
func (s *Store) GetHistory(ctx context.Context, from digest.Digest, limit int) ([]digest.Digest, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var out []digest.Digest
	cur := from
	for len(out) < limit {
		if cur.IsZero() {
			break
		}
		var parentID sql.NullString
		err := s.db.QueryRowContext(ctx, `SELECT parent_id FROM commits WHERE commit_id = ?`, digest.ToHex(cur)).Scan(&parentID)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.DB, err)
		}
		out = append(out, cur)
		if !parentID.Valid {
			break
		}
		next, err := digest.FromHex(parentID.String)
		if err != nil {
			return nil, errs.Wrap(errs.RepoCorrupt, err)
		}
		cur = next
	}
	return out, nil
}

// FindByAuthor returns commit ids authored by authorID, newest first.
func (s *Store) FindByAuthor(ctx context.Context, authorID string) ([]digest.Digest, error) {
	return s.queryIDs(ctx, `SELECT commit_id FROM commits WHERE author_id = ? ORDER BY timestamp DESC`, authorID)
}

// FindByProcess returns commit ids produced by the named process, newest first.
func (s *Store) FindByProcess(ctx context.Context, name string) ([]digest.Digest, error) {
	return s.queryIDs(ctx, `SELECT commit_id FROM commits WHERE process_name = ? ORDER BY timestamp DESC`, name)
}

func (s *Store) queryIDs(ctx context.Context, query string, arg string) ([]digest.Digest, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errs.Wrap(errs.DB, err)
	}
	defer rows.Close()

	var out []digest.Digest
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, errs.Wrap(errs.DB, err)
		}
		d, err := digest.FromHex(hex)
		if err != nil {
			return nil, errs.Wrap(errs.RepoCorrupt, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.DB, err)
	}
	return out, nil
}
