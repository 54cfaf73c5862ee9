package verifier

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
)

func TestGroth16VerifierRejectsGarbageProof(t *testing.T) {
	v := NewGroth16Verifier(groth16.NewVerifyingKey(ecc.BN254))

	var inputs [NumPublicInputs]*big.Int
	for i := range inputs {
		inputs[i] = big.NewInt(int64(i))
	}
	ok, err := v.Verify([]byte{0x01, 0x02, 0x03}, inputs)
	assert.False(t, ok)
	assert.Error(t, err)
}
