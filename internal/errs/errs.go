// Package errs defines the stable error taxonomy used throughout scribe
// (§7 of the specification) as an explicit, returned value rather than the
// source's thread-local error-detail buffer — see the internal/errs entry
// of DESIGN.md. Call sites get a typed Kind plus a free-form Detail without any
// process-wide state, the same way the teacher translates driver-specific
// storage errors into its own sentinel errors in errors.go and
// blobnotfounderr.go.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the stable taxonomy of error kinds from spec.md §7.
type Kind string

const (
	OK Kind = ""

	NOMEM       Kind = "NOMEM"
	InvalidArg  Kind = "INVALID_ARG"
	NotFound    Kind = "NOT_FOUND"
	NotARepo    Kind = "NOT_A_REPO"
	RepoExists  Kind = "REPO_EXISTS"
	RepoCorrupt Kind = "REPO_CORRUPT"
	IO          Kind = "IO"
	DB          Kind = "DB"
	ObjMissing  Kind = "OBJECT_MISSING"
	HashMismatch Kind = "HASH_MISMATCH"
	Crypto      Kind = "CRYPTO"
	PGConnect   Kind = "PG_CONNECT"
	PGQuery     Kind = "PG_QUERY"
	PGReplication Kind = "PG_REPLICATION"
	JSONParse   Kind = "JSON_PARSE"
	JSONSchema  Kind = "JSON_SCHEMA"
)

// Error is scribe's typed error value: a stable Kind, a human-readable
// Detail, and optionally the underlying error it wraps.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error of the given kind with a formatted detail message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an existing error, preserving it for errors.Unwrap
// and errors.Is/As chains.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// Is reports whether err (or anything it wraps) is a scribe *Error of kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a scribe *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return OK
}
