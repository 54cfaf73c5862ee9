package merkle_tree

import (
	"math/big"

	"shield/shield-pool/hasher"
)

// ReferenceRoot recomputes the root of a height-levels tree over the given
// leaves from scratch, padding every level with the matching empty-subtree
// constant. It is quadratic in the tree size and exists only to cross-check
// the incremental accumulator in tests.
func ReferenceRoot(sponge hasher.Sponge, levels uint32, leaves []*big.Int) (*big.Int, error) {
	zeros, err := ComputeZeroHashes(sponge)
	if err != nil {
		return nil, err
	}
	if uint64(len(leaves)) > uint64(1)<<levels {
		return nil, ErrTreeFull
	}
	if len(leaves) == 0 {
		// The accumulator reports zeros[levels-1] before the first insert;
		// recomputation is only defined for non-empty leaf sequences.
		return new(big.Int).Set(zeros[levels-1]), nil
	}
	nodes := make([]*big.Int, len(leaves))
	copy(nodes, leaves)
	for level := uint32(0); level < levels; level++ {
		parents := make([]*big.Int, (len(nodes)+1)/2)
		for i := range parents {
			left := nodes[2*i]
			right := zeros[level]
			if 2*i+1 < len(nodes) {
				right = nodes[2*i+1]
			}
			parent, err := Combine(sponge, left, right)
			if err != nil {
				return nil, err
			}
			parents[i] = parent
		}
		nodes = parents
	}
	return nodes[0], nil
}
