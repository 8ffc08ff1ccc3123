package testgen_test

import (
	"testing"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSeedProducesSameBatch(t *testing.T) {
	g1 := testgen.New(42, nil)
	g2 := testgen.New(42, nil)

	assert.Equal(t, g1.Batch(10), g2.Batch(10))
}

func TestDifferentSeedsDiverge(t *testing.T) {
	g1 := testgen.New(1, nil)
	g2 := testgen.New(2, nil)

	assert.NotEqual(t, g1.Batch(10), g2.Batch(10))
}

func TestEnvelopeFromGeneratorVerifies(t *testing.T) {
	g := testgen.New(7, []string{"orders"})
	env, err := g.Envelope(digest.Zero, "user:test", "engineer", "gen", "v1", 5)
	require.NoError(t, err)
	assert.False(t, env.CommitID.IsZero())
	assert.Len(t, env.Changes, 5)
}

func TestBatchChangesAllValid(t *testing.T) {
	g := testgen.New(99, nil)
	for _, c := range g.Batch(20) {
		assert.NoError(t, c.Validate())
	}
}
