// Package testgen provides a seeded, deterministic generator of change
// batches for property tests, the way the teacher's own mmrtesting package
// builds reproducible test fixtures from a fixed seed rather than ambient
// randomness.
package testgen

import (
	"fmt"
	"math/rand"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/envelope"
)

// Generator deterministically produces envelope.Change batches from a
// fixed seed: the same seed always yields the same sequence of changes.
type Generator struct {
	rnd    *rand.Rand
	tables []string
}

// New returns a Generator seeded with seed, cycling through tables for
// each generated change.
func New(seed int64, tables []string) *Generator {
	if len(tables) == 0 {
		tables = []string{"orders", "customers", "inventory"}
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), tables: tables}
}

// Change returns the next deterministic change in the sequence: table
// chosen round-robin, operation chosen from the seeded source, primary key
// and payload digests derived from the running sequence number.
func (g *Generator) Change(seq int) envelope.Change {
	table := g.tables[seq%len(g.tables)]
	pk := fmt.Sprintf(`{"id":%d}`, seq)

	switch g.rnd.Intn(3) {
	case 0:
		return envelope.Change{
			Table: table, Operation: envelope.Insert, PrimaryKey: pk,
			AfterDigest: digest.HashBytes([]byte(fmt.Sprintf("%s:%d:after", table, seq))),
		}
	case 1:
		return envelope.Change{
			Table: table, Operation: envelope.Update, PrimaryKey: pk,
			BeforeDigest: digest.HashBytes([]byte(fmt.Sprintf("%s:%d:before", table, seq))),
			AfterDigest:  digest.HashBytes([]byte(fmt.Sprintf("%s:%d:after", table, seq))),
		}
	default:
		return envelope.Change{
			Table: table, Operation: envelope.Delete, PrimaryKey: pk,
			BeforeDigest: digest.HashBytes([]byte(fmt.Sprintf("%s:%d:before", table, seq))),
		}
	}
}

// Batch returns n consecutive changes starting at sequence number 0.
func (g *Generator) Batch(n int) []envelope.Change {
	out := make([]envelope.Change, n)
	for i := 0; i < n; i++ {
		out[i] = g.Change(i)
	}
	return out
}

// Envelope builds a finalized, ready-to-store envelope of n changes
// authored by author/role via process/version, parented to parent.
func (g *Generator) Envelope(parent digest.Digest, author, role, process, version string, n int) (*envelope.Envelope, error) {
	env := envelope.New()
	env.SetParent(parent)
	env.SetAuthor(author, role, "")
	env.SetProcess(process, version, "", "")
	for _, c := range g.Batch(n) {
		if err := env.AddChange(c); err != nil {
			return nil, err
		}
	}
	if err := envelope.Finalize(env); err != nil {
		return nil, err
	}
	return env, nil
}
