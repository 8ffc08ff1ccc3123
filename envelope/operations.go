package envelope

import "github.com/scribehq/scribe/digest"

// SetParent replaces the parent commit id.
func (env *Envelope) SetParent(id digest.Digest) {
	env.ParentID = id
}

// SetMessage replaces the commit message.
func (env *Envelope) SetMessage(msg string) {
	env.Message = msg
}

// SetAuthor replaces the author block.
func (env *Envelope) SetAuthor(id, role, email string) {
	env.Author = Author{ID: id, Role: role, Email: email}
}

// SetProcess replaces the process block.
func (env *Envelope) SetProcess(name, version, params, source string) {
	env.Process = Process{Name: name, Version: version, Params: params, Source: source}
}

// SetTreeHash overrides the derived Merkle root. Finalize will not
// recompute tree_hash if it is already non-zero.
func (env *Envelope) SetTreeHash(h digest.Digest) {
	env.TreeHash = h
}

// AddChange validates c and appends it, preserving insertion order, which
// is significant to hashing.
func (env *Envelope) AddChange(c Change) error {
	if err := c.Validate(); err != nil {
		return err
	}
	env.Changes = append(env.Changes, c)
	return nil
}
