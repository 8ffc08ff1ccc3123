package store

import "errors"

// ErrUnknownSchemaVersion is wrapped as errs.RepoCorrupt when the stored
// config.schema_version does not match SchemaVersion.
var ErrUnknownSchemaVersion = errors.New("store: unknown schema_version, repository may be from an incompatible release")
