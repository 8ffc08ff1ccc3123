package merkle

import "github.com/scribehq/scribe/digest"

// ProofStep is one level of an inclusion proof: the sibling digest at that
// level, plus a position bit (0 = sibling on the right, 1 = sibling on the
// left).
type ProofStep struct {
	Sibling digest.Digest
	Bit     uint8
}

// Proof is the ordered list of sibling digests from leaf to root, needed to
// recompute the root from a single leaf hash.
type Proof []ProofStep

// Prove returns the inclusion proof for leaf index i. Build is called
// implicitly if the tree has not already been built.
func (t *Tree) Prove(i int) (Proof, error) {
	if !t.built {
		_ = t.Build()
	}
	if i < 0 || i >= len(t.leaves) {
		return nil, errIndexRange
	}
	if len(t.levels) == 0 {
		return nil, nil
	}

	var proof Proof
	cur := i
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var step ProofStep
		if cur%2 == 0 {
			if cur+1 < len(nodes) {
				step = ProofStep{Sibling: nodes[cur+1], Bit: 0}
			} else {
				// Odd level: the last node pairs with itself.
				step = ProofStep{Sibling: nodes[cur], Bit: 0}
			}
		} else {
			step = ProofStep{Sibling: nodes[cur-1], Bit: 1}
		}
		proof = append(proof, step)
		cur /= 2
	}
	return proof, nil
}

// VerifyProof folds leafHash through proof, choosing sides from each step's
// bit, and reports whether the result equals root.
func VerifyProof(proof Proof, leafHash digest.Digest, root digest.Digest) bool {
	cur := leafHash
	for _, step := range proof {
		if step.Bit == 0 {
			cur = digest.HashInternal(cur, step.Sibling)
		} else {
			cur = digest.HashInternal(step.Sibling, cur)
		}
	}
	return cur == root
}
