package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"shield/shield-pool/logging"
)

var (
	ErrValueMismatch   = errors.New("supplied value does not match the expected amount")
	ErrTransferFailure = errors.New("asset transfer failed")
)

// PayoutRequest carries everything a policy needs to settle a withdrawal.
// Caller is the account submitting the withdrawal (typically the relayer)
// and Value the native amount it attached to the call.
type PayoutRequest struct {
	Caller    Address
	Recipient Address
	Relayer   Address
	Fee       *uint256.Int
	Refund    *uint256.Int
	Value     *uint256.Int
}

// AssetTransferPolicy performs the actual value movement on deposit and
// withdrawal. The ledger commits its own bookkeeping before invoking the
// policy and treats any returned error as fatal to the whole operation.
// A policy must settle all of its legs or none: when PayWithdraw returns an
// error, bank balances are exactly what they were before the call.
type AssetTransferPolicy interface {
	PullDeposit(ctx context.Context, from Address, value *uint256.Int) error
	PayWithdraw(ctx context.Context, req PayoutRequest) error
}

// NativePolicy settles deposits and withdrawals in the bank's native
// currency. The deposited value rides along with the call itself, so the
// caller must attach exactly the denomination and refunds are meaningless.
type NativePolicy struct {
	bank         *Bank
	pool         Address
	denomination *uint256.Int
}

func NewNativePolicy(bank *Bank, pool Address, denomination *uint256.Int) *NativePolicy {
	return &NativePolicy{bank: bank, pool: pool, denomination: denomination.Clone()}
}

func (p *NativePolicy) PullDeposit(_ context.Context, from Address, value *uint256.Int) error {
	if value == nil || !value.Eq(p.denomination) {
		return fmt.Errorf("%w: deposit requires exactly the denomination", ErrValueMismatch)
	}
	if err := p.bank.TransferNative(from, p.pool, p.denomination); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}
	return nil
}

func (p *NativePolicy) PayWithdraw(_ context.Context, req PayoutRequest) error {
	if req.Value != nil && !req.Value.IsZero() {
		return fmt.Errorf("%w: native withdrawal does not accept attached value", ErrValueMismatch)
	}
	if req.Refund != nil && !req.Refund.IsZero() {
		return fmt.Errorf("%w: refund is only meaningful for token pools", ErrValueMismatch)
	}
	snapshot := p.bank.Snapshot()
	payout := new(uint256.Int).Sub(p.denomination, req.Fee)
	if err := p.bank.TransferNative(p.pool, req.Recipient, payout); err != nil {
		p.bank.Restore(snapshot)
		return fmt.Errorf("%w: recipient payout: %w", ErrTransferFailure, err)
	}
	if !req.Fee.IsZero() {
		if err := p.bank.TransferNative(p.pool, req.Relayer, req.Fee); err != nil {
			p.bank.Restore(snapshot)
			return fmt.Errorf("%w: relayer fee: %w", ErrTransferFailure, err)
		}
	}
	return nil
}

// TokenPolicy settles deposits and withdrawals in the pool's fungible token.
// The native value attached to a withdrawal must equal the requested refund,
// which is forwarded to the recipient so a fresh account can pay for its own
// follow-up transactions.
type TokenPolicy struct {
	bank         *Bank
	pool         Address
	denomination *uint256.Int
}

func NewTokenPolicy(bank *Bank, pool Address, denomination *uint256.Int) *TokenPolicy {
	return &TokenPolicy{bank: bank, pool: pool, denomination: denomination.Clone()}
}

func (p *TokenPolicy) PullDeposit(_ context.Context, from Address, value *uint256.Int) error {
	if value != nil && !value.IsZero() {
		return fmt.Errorf("%w: token deposit does not accept attached value", ErrValueMismatch)
	}
	if err := p.bank.TransferToken(from, p.pool, p.denomination); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}
	return nil
}

func (p *TokenPolicy) PayWithdraw(_ context.Context, req PayoutRequest) error {
	value := req.Value
	if value == nil {
		value = new(uint256.Int)
	}
	refund := req.Refund
	if refund == nil {
		refund = new(uint256.Int)
	}
	if !value.Eq(refund) {
		return fmt.Errorf("%w: attached value must equal the refund", ErrValueMismatch)
	}
	snapshot := p.bank.Snapshot()
	if !refund.IsZero() {
		if err := p.bank.TransferNative(req.Caller, p.pool, refund); err != nil {
			return fmt.Errorf("%w: refund pull: %w", ErrTransferFailure, err)
		}
	}
	payout := new(uint256.Int).Sub(p.denomination, req.Fee)
	if err := p.bank.TransferToken(p.pool, req.Recipient, payout); err != nil {
		p.bank.Restore(snapshot)
		return fmt.Errorf("%w: recipient payout: %w", ErrTransferFailure, err)
	}
	if !req.Fee.IsZero() {
		if err := p.bank.TransferToken(p.pool, req.Relayer, req.Fee); err != nil {
			p.bank.Restore(snapshot)
			return fmt.Errorf("%w: relayer fee: %w", ErrTransferFailure, err)
		}
	}
	if !refund.IsZero() {
		// A recipient that cannot take native value must not sink the whole
		// withdrawal; the refund is handed to the relayer instead.
		if err := p.bank.TransferNative(p.pool, req.Recipient, refund); err != nil {
			logging.Logger().Warn().
				Str("recipient", req.Recipient.Hex()).
				Str("relayer", req.Relayer.Hex()).
				Err(err).
				Msg("refund forwarding failed, redirecting to relayer")
			if err := p.bank.TransferNative(p.pool, req.Relayer, refund); err != nil {
				logging.Logger().Error().Err(err).Msg("refund redirect failed, value stays in the pool")
			}
		}
	}
	return nil
}
