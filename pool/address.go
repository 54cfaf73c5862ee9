package pool

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Address identifies an account in the value-transfer layer. Addresses are
// 20 bytes and embed into the proving field as unsigned big-endian scalars,
// which is how they appear among the public inputs of a withdrawal proof.
type Address [20]byte

func HexToAddress(s string) (Address, error) {
	var addr Address
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// Scalar returns the address as a field element for proof verification.
func (a Address) Scalar() *big.Int {
	return new(big.Int).SetBytes(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}
