package merkle_tree

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shield/shield-pool/hasher"
)

func testLeaf(i int64) *big.Int {
	return big.NewInt(i + 1)
}

func TestNewAccumulatorHeightBounds(t *testing.T) {
	sponge := hasher.NewMimcSponge()

	for _, levels := range []uint32{0, 32, 64} {
		_, err := NewAccumulator(levels, sponge)
		assert.ErrorIs(t, err, ErrInvalidTreeHeight, "levels=%d", levels)
	}
	for _, levels := range []uint32{1, 20, 31} {
		acc, err := NewAccumulator(levels, sponge)
		require.NoError(t, err, "levels=%d", levels)
		assert.Equal(t, levels, acc.Levels())
	}
}

func TestInitialRootIsEmptySubtreeHash(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	levels := uint32(8)
	acc, err := NewAccumulator(levels, sponge)
	require.NoError(t, err)

	zero, err := acc.ZeroHash(levels - 1)
	require.NoError(t, err)
	assert.Equal(t, 0, acc.LastRoot().Cmp(zero))
	assert.Equal(t, uint32(0), acc.LeafCount())
}

func TestInsertMatchesReferenceRecompute(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	levels := uint32(4)
	acc, err := NewAccumulator(levels, sponge)
	require.NoError(t, err)

	var leaves []*big.Int
	for i := int64(0); i < 1<<levels; i++ {
		leaf := testLeaf(i)
		index, err := acc.Insert(leaf)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), index)

		leaves = append(leaves, leaf)
		want, err := ReferenceRoot(sponge, levels, leaves)
		require.NoError(t, err)
		assert.Equal(t, 0, acc.LastRoot().Cmp(want), "root mismatch after %d inserts", i+1)
	}
}

func TestInsertFullTree(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	acc, err := NewAccumulator(2, sponge)
	require.NoError(t, err)

	roots := []*big.Int{acc.LastRoot()}
	for i := int64(0); i < 4; i++ {
		index, err := acc.Insert(testLeaf(i))
		require.NoError(t, err)
		assert.Equal(t, uint32(i), index)

		root := acc.LastRoot()
		assert.NotEqual(t, 0, root.Cmp(roots[len(roots)-1]), "root did not change on insert %d", i)
		roots = append(roots, root)
	}

	_, err = acc.Insert(testLeaf(99))
	assert.ErrorIs(t, err, ErrTreeFull)
}

func TestRootHistoryWindow(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	acc, err := NewAccumulator(10, sponge)
	require.NoError(t, err)

	insertions := RootHistorySize + 12
	var roots []*big.Int
	for i := 0; i < insertions; i++ {
		_, err := acc.Insert(testLeaf(int64(i)))
		require.NoError(t, err)
		roots = append(roots, acc.LastRoot())
	}

	for i, root := range roots {
		known := acc.IsKnownRoot(root)
		if i >= insertions-RootHistorySize {
			assert.True(t, known, "recent root %d must be known", i)
		} else {
			assert.False(t, known, "evicted root %d must be forgotten", i)
		}
	}
}

func TestIsKnownRootRejectsZeroSentinel(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	acc, err := NewAccumulator(6, sponge)
	require.NoError(t, err)

	assert.False(t, acc.IsKnownRoot(new(big.Int)))
	assert.False(t, acc.IsKnownRoot(nil))

	_, err = acc.Insert(testLeaf(1))
	require.NoError(t, err)
	assert.False(t, acc.IsKnownRoot(new(big.Int)))
	assert.True(t, acc.IsKnownRoot(acc.LastRoot()))
	assert.False(t, acc.IsKnownRoot(big.NewInt(123456789)))
}

func TestZeroHashTable(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	acc, err := NewAccumulator(3, sponge)
	require.NoError(t, err)

	prev, err := acc.ZeroHash(0)
	require.NoError(t, err)
	assert.Equal(t, 0, prev.Cmp(ZeroLeaf()))

	for level := uint32(1); level < MaxDepth; level++ {
		zero, err := acc.ZeroHash(level)
		require.NoError(t, err)
		want, err := Combine(sponge, prev, prev)
		require.NoError(t, err)
		assert.Equal(t, 0, zero.Cmp(want), "level %d", level)
		prev = zero
	}

	_, err = acc.ZeroHash(MaxDepth)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestCombineRejectsOutOfField(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	modulus := hasher.FieldModulus()
	inField := big.NewInt(7)

	_, err := Combine(sponge, modulus, inField)
	assert.ErrorIs(t, err, ErrOutOfField)
	_, err = Combine(sponge, inField, new(big.Int).Add(modulus, big.NewInt(1)))
	assert.ErrorIs(t, err, ErrOutOfField)

	h, err := Combine(sponge, inField, inField)
	require.NoError(t, err)
	assert.True(t, h.Cmp(modulus) < 0 && h.Sign() >= 0)
}

func TestCombineIsOrderSensitive(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	a, b := big.NewInt(1), big.NewInt(2)

	ab, err := Combine(sponge, a, b)
	require.NoError(t, err)
	ba, err := Combine(sponge, b, a)
	require.NoError(t, err)
	assert.NotEqual(t, 0, ab.Cmp(ba))

	again, err := Combine(sponge, a, b)
	require.NoError(t, err)
	assert.Equal(t, 0, ab.Cmp(again))
}

func TestSnapshotRestore(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	acc, err := NewAccumulator(5, sponge)
	require.NoError(t, err)

	for i := int64(0); i < 3; i++ {
		_, err := acc.Insert(testLeaf(i))
		require.NoError(t, err)
	}
	rootBefore := acc.LastRoot()
	countBefore := acc.LeafCount()

	snap := acc.Snapshot()
	_, err = acc.Insert(testLeaf(100))
	require.NoError(t, err)
	require.NotEqual(t, 0, acc.LastRoot().Cmp(rootBefore))

	acc.Restore(snap)
	assert.Equal(t, 0, acc.LastRoot().Cmp(rootBefore))
	assert.Equal(t, countBefore, acc.LeafCount())

	// Re-inserting after a restore must hand out the same index again.
	idx, err := acc.Insert(testLeaf(100))
	require.NoError(t, err)
	assert.Equal(t, countBefore, idx)
}

func TestLargeSequenceAgainstReference(t *testing.T) {
	sponge := hasher.NewMimcSponge()
	levels := uint32(6)
	acc, err := NewAccumulator(levels, sponge)
	require.NoError(t, err)

	var leaves []*big.Int
	for i := int64(0); i < 40; i++ {
		leaf := new(big.Int).Mod(
			new(big.Int).Mul(testLeaf(i), big.NewInt(1000003)),
			hasher.FieldModulus(),
		)
		_, err := acc.Insert(leaf)
		require.NoError(t, err)
		leaves = append(leaves, leaf)
	}
	want, err := ReferenceRoot(sponge, levels, leaves)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", want), fmt.Sprintf("%x", acc.LastRoot()))
}
