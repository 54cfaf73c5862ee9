package pool

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

// DepositEvent is appended for every successful deposit.
type DepositEvent struct {
	Commitment *big.Int
	LeafIndex  uint32
	Timestamp  time.Time
}

// WithdrawalEvent is appended for every successful withdrawal.
type WithdrawalEvent struct {
	Recipient     Address
	NullifierHash *big.Int
	Relayer       Address
	Fee           *uint256.Int
}
