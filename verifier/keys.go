package verifier

import (
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"

	"shield/shield-pool/logging"
)

// LoadVerifyingKey reads a BN254 groth16 verifying key written by the
// external circuit's setup.
func LoadVerifyingKey(filepath string) (groth16.VerifyingKey, error) {
	logging.Logger().Info().Str("path", filepath).Msg("reading verifying key")
	vk := groth16.NewVerifyingKey(ecc.BN254)
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("open verifying key: %w", err)
	}
	defer f.Close()
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return vk, nil
}
