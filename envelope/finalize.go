package envelope

import (
	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/merkle"
)

// Finalize computes tree_hash (if not already overridden) and then
// commit_id, per §4.2:
//
//  1. If tree_hash is zero and any change has a non-zero before_digest or
//     after_digest, build a Merkle tree over those non-zero digests in the
//     order (change_i.before if non-zero, change_i.after if non-zero) for
//     i = 0..n-1, and set tree_hash to the root.
//  2. Clear commit_id to zero, serialize canonically, set
//     commit_id := hash_bytes(serialization). The self-reference is
//     therefore never part of its own preimage.
func Finalize(env *Envelope) error {
	if env == nil {
		return errs.New(errs.InvalidArg, "finalize: envelope is nil")
	}

	if env.TreeHash.IsZero() {
		hasNonZero := false
		for _, c := range env.Changes {
			if !c.BeforeDigest.IsZero() || !c.AfterDigest.IsZero() {
				hasNonZero = true
				break
			}
		}
		if hasNonZero {
			// Per spec.md §8 S6, the leaves built from change digests are
			// hash_leaf(digest_bytes), i.e. the leaf domain prefix IS
			// applied here even though the digests are themselves
			// already-hashed values — see merkle.AddBytes vs AddHash and
			// the §9 Open Question on the two conventions.
			tree := merkle.New()
			for _, c := range env.Changes {
				if !c.BeforeDigest.IsZero() {
					if err := tree.AddBytes(c.BeforeDigest[:]); err != nil {
						return errs.Wrap(errs.NOMEM, err)
					}
				}
				if !c.AfterDigest.IsZero() {
					if err := tree.AddBytes(c.AfterDigest[:]); err != nil {
						return errs.Wrap(errs.NOMEM, err)
					}
				}
			}
			if err := tree.Build(); err != nil {
				return errs.Wrap(errs.NOMEM, err)
			}
			env.TreeHash = tree.Root()
		}
	}

	env.CommitID = digest.Zero
	ser, err := canonicalJSON(env)
	if err != nil {
		return errs.Wrap(errs.NOMEM, err)
	}
	env.CommitID = digest.HashBytes(ser)
	return nil
}

// Verify clones env, zeroes commit_id on the clone, re-serializes, and
// checks equality with the stored commit_id. Returns errs.HashMismatch if
// they differ.
func Verify(env *Envelope) error {
	if env == nil {
		return errs.New(errs.InvalidArg, "verify: envelope is nil")
	}
	if env.CommitID.IsZero() {
		return errs.New(errs.InvalidArg, "verify: envelope has no commit_id to verify")
	}

	clone := env.Clone()
	want := clone.CommitID
	clone.CommitID = digest.Zero

	ser, err := canonicalJSON(clone)
	if err != nil {
		return errs.Wrap(errs.NOMEM, err)
	}
	got := digest.HashBytes(ser)
	if got != want {
		return errs.New(errs.HashMismatch, "commit_id %s does not match recomputed %s", digest.ToHex(want), digest.ToHex(got))
	}
	return nil
}
