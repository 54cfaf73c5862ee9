package pool

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferRejected    = errors.New("recipient rejects native transfers")
)

// Bank is the in-memory settlement layer both asset policies move value
// through. It keeps two independent ledgers: native currency and the pool's
// fungible token. An account can be marked as rejecting incoming native
// transfers, which models a recipient without a payable receive path and is
// what exercises the refund-redirect behavior of the token policy.
//
// Bank is not safe for concurrent use; it inherits the ledger's serialized
// execution model.
type Bank struct {
	native  map[Address]*uint256.Int
	token   map[Address]*uint256.Int
	blocked map[Address]bool
}

func NewBank() *Bank {
	return &Bank{
		native:  make(map[Address]*uint256.Int),
		token:   make(map[Address]*uint256.Int),
		blocked: make(map[Address]bool),
	}
}

func (b *Bank) MintNative(addr Address, amount *uint256.Int) {
	b.credit(b.native, addr, amount)
}

func (b *Bank) MintToken(addr Address, amount *uint256.Int) {
	b.credit(b.token, addr, amount)
}

func (b *Bank) NativeBalance(addr Address) *uint256.Int {
	return b.balance(b.native, addr)
}

func (b *Bank) TokenBalance(addr Address) *uint256.Int {
	return b.balance(b.token, addr)
}

// RejectNative marks addr as refusing incoming native transfers.
func (b *Bank) RejectNative(addr Address, reject bool) {
	b.blocked[addr] = reject
}

// BankSnapshot captures both value ledgers so a multi-leg settlement can be
// unwound as a unit. The reject set is configuration, not value, and is not
// part of a snapshot.
type BankSnapshot struct {
	native map[Address]*uint256.Int
	token  map[Address]*uint256.Int
}

func (b *Bank) Snapshot() BankSnapshot {
	return BankSnapshot{
		native: cloneBalances(b.native),
		token:  cloneBalances(b.token),
	}
}

// Restore rewinds both ledgers to the snapshot. The snapshot stays valid and
// can be restored again.
func (b *Bank) Restore(snapshot BankSnapshot) {
	b.native = cloneBalances(snapshot.native)
	b.token = cloneBalances(snapshot.token)
}

func cloneBalances(ledger map[Address]*uint256.Int) map[Address]*uint256.Int {
	out := make(map[Address]*uint256.Int, len(ledger))
	for addr, v := range ledger {
		out[addr] = new(uint256.Int).Set(v)
	}
	return out
}

func (b *Bank) TransferNative(from, to Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if b.blocked[to] {
		return ErrTransferRejected
	}
	return b.transfer(b.native, from, to, amount)
}

func (b *Bank) TransferToken(from, to Address, amount *uint256.Int) error {
	return b.transfer(b.token, from, to, amount)
}

func (b *Bank) transfer(ledger map[Address]*uint256.Int, from, to Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	balance := b.balance(ledger, from)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	ledger[from] = balance.Sub(balance, amount)
	b.credit(ledger, to, amount)
	return nil
}

func (b *Bank) credit(ledger map[Address]*uint256.Int, addr Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	ledger[addr] = new(uint256.Int).Add(b.balance(ledger, addr), amount)
}

func (b *Bank) balance(ledger map[Address]*uint256.Int, addr Address) *uint256.Int {
	if v, ok := ledger[addr]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}
