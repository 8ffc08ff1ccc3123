// Package envelope implements the commit envelope data model: the
// in-memory commit object, its canonical serialization, and finalize/verify
// (§3, §4.2 of the specification).
package envelope

import (
	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/internal/errs"
)

// Operation is the row-level mutation kind.
type Operation string

const (
	Insert Operation = "INSERT"
	Update Operation = "UPDATE"
	Delete Operation = "DELETE"
)

func (op Operation) valid() bool {
	switch op {
	case Insert, Update, Delete:
		return true
	default:
		return false
	}
}

// Change is a single row-level event.
type Change struct {
	Table         string
	Operation     Operation
	PrimaryKey    string
	BeforeDigest  digest.Digest
	AfterDigest   digest.Digest
}

// Validate checks the invariants from spec.md §3: UPDATE requires both
// digests non-zero, INSERT requires a zero before-digest, DELETE requires a
// zero after-digest, and operation must be one of the three enumerated
// values.
func (c Change) Validate() error {
	if c.Table == "" {
		return errs.New(errs.InvalidArg, "change: table_name is required")
	}
	if !c.Operation.valid() {
		return errs.New(errs.InvalidArg, "change: operation %q is not one of INSERT/UPDATE/DELETE", c.Operation)
	}
	switch c.Operation {
	case Insert:
		if !c.BeforeDigest.IsZero() {
			return errs.New(errs.InvalidArg, "change: INSERT must have a zero before_digest")
		}
	case Delete:
		if !c.AfterDigest.IsZero() {
			return errs.New(errs.InvalidArg, "change: DELETE must have a zero after_digest")
		}
	case Update:
		if c.BeforeDigest.IsZero() || c.AfterDigest.IsZero() {
			return errs.New(errs.InvalidArg, "change: UPDATE must have non-zero before_digest and after_digest")
		}
	}
	return nil
}

// Author identifies the human or automated actor responsible for a commit.
type Author struct {
	ID    string
	Role  string
	Email string
}

// Process identifies the executable that produced a commit.
type Process struct {
	Name    string
	Version string
	Params  string
	Source  string
}

// Envelope is the in-memory commit object. commit_id and tree_hash are
// computed, never set directly by callers; use SetTreeHash only to override
// the derived tree hash (for advanced callers, e.g. replays), and Finalize
// to compute commit_id.
type Envelope struct {
	CommitID  digest.Digest
	ParentID  digest.Digest
	TreeHash  digest.Digest
	Author    Author
	Process   Process
	Timestamp int64
	Message   string
	Changes   []Change
}

// New returns an empty envelope ready for setters and AddChange.
func New() *Envelope {
	return &Envelope{}
}

// Clone returns a deep copy of env.
func (env *Envelope) Clone() *Envelope {
	out := *env
	out.Changes = make([]Change, len(env.Changes))
	copy(out.Changes, env.Changes)
	return &out
}
