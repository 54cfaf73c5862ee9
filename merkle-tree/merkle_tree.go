package merkle_tree

import (
	"errors"
	"math/big"

	"github.com/iden3/go-iden3-crypto/keccak256"

	"shield/shield-pool/hasher"
)

const (
	// RootHistorySize bounds the window of historical roots accepted by
	// IsKnownRoot. Proofs are generated against a root that may go stale
	// while other deposits land, so membership is checked against the most
	// recent RootHistorySize roots rather than only the latest one.
	RootHistorySize = 30

	// MaxDepth is the size of the zero-hash table; tree heights must stay
	// strictly below it.
	MaxDepth = 32
)

var (
	ErrInvalidTreeHeight = errors.New("tree height must be between 1 and 31")
	ErrTreeFull          = errors.New("merkle tree is full, no more leaves can be added")
	ErrIndexOutOfBounds  = errors.New("zero hash index out of bounds")
)

// zeroLeaf is the value of an empty leaf, a nothing-up-my-sleeve constant
// derived from the scheme name and reduced into the field. It is never a
// valid commitment, which is what lets IsKnownRoot reject the zero sentinel
// unconditionally.
var zeroLeaf = new(big.Int).Mod(
	new(big.Int).SetBytes(keccak256.Hash([]byte("shield-pool"))),
	hasher.FieldModulus(),
)

// ZeroLeaf returns the empty-leaf constant.
func ZeroLeaf() *big.Int {
	return new(big.Int).Set(zeroLeaf)
}

// ComputeZeroHashes derives the full zero-subtree table: entry i is the root
// of an empty subtree of height i, obtained by folding the empty leaf onto
// itself through the combinator. The table depends only on the sponge, never
// on runtime state.
func ComputeZeroHashes(sponge hasher.Sponge) ([MaxDepth]*big.Int, error) {
	var zeros [MaxDepth]*big.Int
	zeros[0] = ZeroLeaf()
	for i := 1; i < MaxDepth; i++ {
		h, err := Combine(sponge, zeros[i-1], zeros[i-1])
		if err != nil {
			return zeros, err
		}
		zeros[i] = h
	}
	return zeros, nil
}

// Accumulator is an append-only incremental merkle tree. Instead of storing
// leaves it retains one hash per level (the frontier of the left-most
// incomplete subtree), which is enough to fold each new leaf into a fresh
// root in O(levels) work. Every insert pushes the new root into a fixed
// circular history buffer.
//
// Accumulator is not safe for concurrent use; the ledger above it serializes
// all access.
type Accumulator struct {
	levels         uint32
	sponge         hasher.Sponge
	zeros          [MaxDepth]*big.Int
	filledSubtrees []*big.Int
	roots          [RootHistorySize]*big.Int
	currentRoot    uint32
	nextIndex      uint32
}

func NewAccumulator(levels uint32, sponge hasher.Sponge) (*Accumulator, error) {
	if levels == 0 || levels >= MaxDepth {
		return nil, ErrInvalidTreeHeight
	}
	zeros, err := ComputeZeroHashes(sponge)
	if err != nil {
		return nil, err
	}
	filled := make([]*big.Int, levels)
	copy(filled, zeros[:levels])
	acc := &Accumulator{
		levels:         levels,
		sponge:         sponge,
		zeros:          zeros,
		filledSubtrees: filled,
	}
	acc.roots[0] = zeros[levels-1]
	return acc, nil
}

// Insert appends a leaf and returns its index. The walk starts at the leaf
// position and climbs one level per iteration: a left child pairs with the
// empty subtree of its level and becomes the new frontier there, a right
// child pairs with the frontier recorded when its sibling was inserted.
func (a *Accumulator) Insert(leaf *big.Int) (uint32, error) {
	if a.nextIndex == uint32(1)<<a.levels {
		return 0, ErrTreeFull
	}
	currentIndex := a.nextIndex
	currentHash := new(big.Int).Set(leaf)
	for level := uint32(0); level < a.levels; level++ {
		var left, right *big.Int
		if currentIndex%2 == 0 {
			left, right = currentHash, a.zeros[level]
			a.filledSubtrees[level] = currentHash
		} else {
			left, right = a.filledSubtrees[level], currentHash
		}
		parent, err := Combine(a.sponge, left, right)
		if err != nil {
			return 0, err
		}
		currentHash = parent
		currentIndex /= 2
	}
	a.currentRoot = (a.currentRoot + 1) % RootHistorySize
	a.roots[a.currentRoot] = currentHash
	index := a.nextIndex
	a.nextIndex++
	return index, nil
}

// IsKnownRoot reports whether root is one of the retained historical roots.
// The zero sentinel is rejected outright: no populated slot can hold it.
func (a *Accumulator) IsKnownRoot(root *big.Int) bool {
	if root == nil || root.Sign() == 0 {
		return false
	}
	i := a.currentRoot
	for {
		if r := a.roots[i]; r != nil && r.Cmp(root) == 0 {
			return true
		}
		if i == 0 {
			i = RootHistorySize
		}
		i--
		if i == a.currentRoot {
			return false
		}
	}
}

// LastRoot returns the most recently written root.
func (a *Accumulator) LastRoot() *big.Int {
	return new(big.Int).Set(a.roots[a.currentRoot])
}

// ZeroHash returns the empty-subtree constant for the given level.
func (a *Accumulator) ZeroHash(level uint32) (*big.Int, error) {
	if level >= MaxDepth {
		return nil, ErrIndexOutOfBounds
	}
	return new(big.Int).Set(a.zeros[level]), nil
}

// LeafCount returns the number of leaves inserted so far.
func (a *Accumulator) LeafCount() uint32 {
	return a.nextIndex
}

// Levels returns the tree height fixed at construction.
func (a *Accumulator) Levels() uint32 {
	return a.levels
}

// Snapshot captures the mutable accumulator state so a ledger operation that
// wraps a single insert can be unwound as a whole when a later step fails.
// Only the next history slot is retained, so a snapshot covers at most one
// intervening insert. Stored node hashes are never mutated in place, so
// shallow copies are sufficient.
type Snapshot struct {
	filledSubtrees []*big.Int
	rootSlot       *big.Int
	currentRoot    uint32
	nextIndex      uint32
}

func (a *Accumulator) Snapshot() Snapshot {
	filled := make([]*big.Int, len(a.filledSubtrees))
	copy(filled, a.filledSubtrees)
	next := (a.currentRoot + 1) % RootHistorySize
	return Snapshot{
		filledSubtrees: filled,
		rootSlot:       a.roots[next],
		currentRoot:    a.currentRoot,
		nextIndex:      a.nextIndex,
	}
}

func (a *Accumulator) Restore(s Snapshot) {
	copy(a.filledSubtrees, s.filledSubtrees)
	next := (s.currentRoot + 1) % RootHistorySize
	a.roots[next] = s.rootSlot
	a.currentRoot = s.currentRoot
	a.nextIndex = s.nextIndex
}
