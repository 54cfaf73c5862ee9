package hasher

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/iden3/go-iden3-crypto/keccak256"
)

// Sponge is the two-to-one hash boundary of the accumulator. An
// implementation must be a pure deterministic permutation over the BN254
// scalar field: both outputs are reduced modulo the field and depend only on
// the two inputs. The proving circuit carries its own encoding of the same
// permutation, so swapping implementations breaks root compatibility with
// previously issued proofs.
type Sponge interface {
	Sponge(xL, xR *big.Int) (*big.Int, *big.Int)
}

const feistelRounds = 220

var (
	fieldModulus = fr.Modulus()
	five         = big.NewInt(5)

	roundConstants [feistelRounds]*big.Int
)

func init() {
	// Round constants are a keccak256 chain seeded with the scheme name,
	// each link reduced into the field. The first and last rounds use zero so
	// the permutation keys cleanly into the Feistel structure.
	seed := keccak256.Hash([]byte("mimcsponge"))
	roundConstants[0] = new(big.Int)
	c := seed
	for i := 1; i < feistelRounds-1; i++ {
		c = keccak256.Hash(c)
		roundConstants[i] = new(big.Int).Mod(new(big.Int).SetBytes(c), fieldModulus)
	}
	roundConstants[feistelRounds-1] = new(big.Int)
}

// MimcSponge is the default Sponge: a MiMC Feistel permutation with
// exponent 5 over the BN254 scalar field.
type MimcSponge struct{}

func NewMimcSponge() *MimcSponge {
	return &MimcSponge{}
}

func (m *MimcSponge) Sponge(xL, xR *big.Int) (*big.Int, *big.Int) {
	l := new(big.Int).Mod(xL, fieldModulus)
	r := new(big.Int).Mod(xR, fieldModulus)
	t := new(big.Int)
	for i := 0; i < feistelRounds; i++ {
		t.Add(l, roundConstants[i])
		t.Mod(t, fieldModulus)
		t.Exp(t, five, fieldModulus)
		t.Add(t, r)
		t.Mod(t, fieldModulus)
		if i < feistelRounds-1 {
			r = l
			l = t
			t = new(big.Int)
		} else {
			r = t
		}
	}
	return l, r
}

// FieldModulus returns the BN254 scalar field modulus shared by every sponge
// implementation.
func FieldModulus() *big.Int {
	return new(big.Int).Set(fieldModulus)
}
