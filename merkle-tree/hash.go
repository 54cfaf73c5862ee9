package merkle_tree

import (
	"errors"
	"math/big"

	"shield/shield-pool/hasher"
)

var ErrOutOfField = errors.New("input is not a reduced field element")

// Combine hashes two children into their parent node. The chaining is fixed
// by the proving circuit: the sponge is seeded with (left, 0), its first
// output is added to right inside the field, and a second sponge round over
// that sum and the carried second output yields the parent. Changing this
// encoding invalidates every root the circuit can prove against.
func Combine(sponge hasher.Sponge, left, right *big.Int) (*big.Int, error) {
	modulus := hasher.FieldModulus()
	if left.Sign() < 0 || left.Cmp(modulus) >= 0 {
		return nil, ErrOutOfField
	}
	if right.Sign() < 0 || right.Cmp(modulus) >= 0 {
		return nil, ErrOutOfField
	}
	xL, xR := sponge.Sponge(left, new(big.Int))
	xL.Add(xL, right)
	xL.Mod(xL, modulus)
	xL, _ = sponge.Sponge(xL, xR)
	return xL, nil
}
