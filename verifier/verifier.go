// Package verifier is the proof-system boundary of the pool: it checks a
// serialized zero-knowledge proof against the six public scalars of a
// withdrawal. Proof generation and the circuit itself live with the external
// prover; this package only consumes its artifacts.
package verifier

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
)

// NumPublicInputs is the fixed public-input count of the withdrawal circuit:
// root, nullifier hash, recipient, relayer, fee, refund, in that order.
const NumPublicInputs = 6

// Verifier validates a withdrawal proof against its public inputs. A false
// result without an error means the proof simply does not verify; an error
// means the proof could not be checked at all.
type Verifier interface {
	Verify(proof []byte, publicInputs [NumPublicInputs]*big.Int) (bool, error)
}

// withdrawalStatement mirrors the public interface of the external
// withdrawal circuit. Only the assignment side is used here: witnesses built
// from it feed groth16.Verify, while compilation happens in the prover's
// repository against the same layout.
type withdrawalStatement struct {
	Root          frontend.Variable `gnark:",public"`
	NullifierHash frontend.Variable `gnark:",public"`
	Recipient     frontend.Variable `gnark:",public"`
	Relayer       frontend.Variable `gnark:",public"`
	Fee           frontend.Variable `gnark:",public"`
	Refund        frontend.Variable `gnark:",public"`
}

func (s *withdrawalStatement) Define(frontend.API) error {
	// The constraint system is compiled by the external prover; this type
	// only carries public assignments.
	return nil
}

// Groth16Verifier verifies BN254 groth16 proofs with a verifying key
// produced by the external circuit's trusted setup.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

func (v *Groth16Verifier) Verify(proofBytes []byte, publicInputs [NumPublicInputs]*big.Int) (bool, error) {
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return false, fmt.Errorf("unmarshal proof: %w", err)
	}
	assignment := &withdrawalStatement{
		Root:          publicInputs[0],
		NullifierHash: publicInputs[1],
		Recipient:     publicInputs[2],
		Relayer:       publicInputs[3],
		Fee:           publicInputs[4],
		Refund:        publicInputs[5],
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("build public witness: %w", err)
	}
	if err := groth16.Verify(proof, v.vk, witness); err != nil {
		return false, nil
	}
	return true, nil
}
