package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"shield/shield-pool/hasher"
	"shield/shield-pool/logging"
	merkletree "shield/shield-pool/merkle-tree"
	"shield/shield-pool/verifier"
)

var (
	ErrZeroDenomination       = errors.New("denomination must be greater than zero")
	ErrDuplicateCommitment    = errors.New("commitment has already been deposited")
	ErrFeeExceedsDenomination = errors.New("fee exceeds the denomination")
	ErrAlreadySpent           = errors.New("nullifier has already been spent")
	ErrUnknownRoot            = errors.New("root is not in the recent history window")
	ErrInvalidProof           = errors.New("withdrawal proof is invalid")
	ErrReentrantCall          = errors.New("reentrant call into the ledger")
)

// Config is the immutable construction-time configuration of a Ledger.
type Config struct {
	Levels       uint32
	Denomination *uint256.Int
}

// Ledger orchestrates the deposit/withdraw protocol on top of the merkle
// accumulator: it owns the commitment and nullifier sets, gates withdrawals
// behind proof verification and delegates value movement to an
// AssetTransferPolicy. Every mutation either commits completely or not at
// all.
//
// Ledger assumes the externally serialized execution model of the protocol:
// callers must not invoke it from multiple goroutines. The reentrancy guard
// only defends against an asset policy calling back into the ledger from
// inside a deposit or withdrawal.
type Ledger struct {
	denomination *uint256.Int
	tree         *merkletree.Accumulator
	verifier     verifier.Verifier
	policy       AssetTransferPolicy

	commitments map[[32]byte]bool
	nullifiers  map[[32]byte]bool

	deposits    []DepositEvent
	withdrawals []WithdrawalEvent

	entered bool
	now     func() time.Time
}

func NewLedger(cfg Config, sponge hasher.Sponge, v verifier.Verifier, policy AssetTransferPolicy) (*Ledger, error) {
	if cfg.Denomination == nil || cfg.Denomination.IsZero() {
		return nil, ErrZeroDenomination
	}
	tree, err := merkletree.NewAccumulator(cfg.Levels, sponge)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		denomination: cfg.Denomination.Clone(),
		tree:         tree,
		verifier:     v,
		policy:       policy,
		commitments:  make(map[[32]byte]bool),
		nullifiers:   make(map[[32]byte]bool),
		now:          time.Now,
	}, nil
}

// Deposit inserts a commitment into the accumulator, records it as seen and
// pulls the denomination from the depositor through the asset policy. The
// assigned leaf index is returned. A policy failure unwinds the commitment
// record and the tree insertion, leaving no trace of the attempt.
func (l *Ledger) Deposit(ctx context.Context, commitment *big.Int, from Address, value *uint256.Int) (uint32, error) {
	if err := l.enter(); err != nil {
		return 0, err
	}
	defer l.exit()

	key, err := fieldKey(commitment)
	if err != nil {
		return 0, err
	}
	if l.commitments[key] {
		return 0, ErrDuplicateCommitment
	}

	snapshot := l.tree.Snapshot()
	index, err := l.tree.Insert(commitment)
	if err != nil {
		return 0, err
	}
	l.commitments[key] = true

	if err := l.policy.PullDeposit(ctx, from, value); err != nil {
		delete(l.commitments, key)
		l.tree.Restore(snapshot)
		return 0, err
	}

	event := DepositEvent{
		Commitment: new(big.Int).Set(commitment),
		LeafIndex:  index,
		Timestamp:  l.now(),
	}
	l.deposits = append(l.deposits, event)
	logging.Logger().Info().
		Str("commitment", fmt.Sprintf("%#x", commitment)).
		Uint32("leafIndex", index).
		Msg("deposit accepted")
	return index, nil
}

// WithdrawRequest is a withdrawal attempt: a proof of membership for some
// unrevealed commitment, the historical root it was generated against, and
// the public payout parameters bound into the proof.
type WithdrawRequest struct {
	Proof         []byte
	Root          *big.Int
	NullifierHash *big.Int
	Recipient     Address
	Relayer       Address
	Fee           *uint256.Int
	Refund        *uint256.Int

	// Caller and Value describe the submitting transaction itself.
	Caller Address
	Value  *uint256.Int
}

// Withdraw validates the request, verifies the proof, marks the nullifier
// spent and pays out through the asset policy. The checks run in a fixed
// order and the verifier is only consulted after every cheaper check has
// passed. The nullifier is flagged before the policy runs; a policy failure
// unflags it again so a rejected withdrawal can be resubmitted.
func (l *Ledger) Withdraw(ctx context.Context, req WithdrawRequest) error {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()

	fee := normalize(req.Fee)
	refund := normalize(req.Refund)
	if fee.Gt(l.denomination) {
		return ErrFeeExceedsDenomination
	}
	key, err := fieldKey(req.NullifierHash)
	if err != nil {
		return err
	}
	if l.nullifiers[key] {
		return ErrAlreadySpent
	}
	if !l.tree.IsKnownRoot(req.Root) {
		return ErrUnknownRoot
	}

	publicInputs := [verifier.NumPublicInputs]*big.Int{
		new(big.Int).Set(req.Root),
		new(big.Int).Set(req.NullifierHash),
		req.Recipient.Scalar(),
		req.Relayer.Scalar(),
		fee.ToBig(),
		refund.ToBig(),
	}
	ok, err := l.verifier.Verify(req.Proof, publicInputs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	if !ok {
		return ErrInvalidProof
	}

	// Spent flag first: the payout step is the only external interaction and
	// must observe the nullifier as consumed.
	l.nullifiers[key] = true
	payout := PayoutRequest{
		Caller:    req.Caller,
		Recipient: req.Recipient,
		Relayer:   req.Relayer,
		Fee:       fee,
		Refund:    refund,
		Value:     normalize(req.Value),
	}
	if err := l.policy.PayWithdraw(ctx, payout); err != nil {
		delete(l.nullifiers, key)
		return err
	}

	event := WithdrawalEvent{
		Recipient:     req.Recipient,
		NullifierHash: new(big.Int).Set(req.NullifierHash),
		Relayer:       req.Relayer,
		Fee:           fee.Clone(),
	}
	l.withdrawals = append(l.withdrawals, event)
	logging.Logger().Info().
		Str("recipient", req.Recipient.Hex()).
		Str("nullifierHash", fmt.Sprintf("%#x", req.NullifierHash)).
		Str("relayer", req.Relayer.Hex()).
		Str("fee", fee.Dec()).
		Msg("withdrawal paid")
	return nil
}

// IsSpent reports whether the nullifier hash has been consumed.
func (l *Ledger) IsSpent(nullifierHash *big.Int) bool {
	key, err := fieldKey(nullifierHash)
	if err != nil {
		return false
	}
	return l.nullifiers[key]
}

// IsSpentArray answers IsSpent for a batch of nullifier hashes.
func (l *Ledger) IsSpentArray(nullifierHashes []*big.Int) []bool {
	spent := make([]bool, len(nullifierHashes))
	for i, n := range nullifierHashes {
		spent[i] = l.IsSpent(n)
	}
	return spent
}

func (l *Ledger) Denomination() *uint256.Int {
	return l.denomination.Clone()
}

func (l *Ledger) LastRoot() *big.Int {
	return l.tree.LastRoot()
}

func (l *Ledger) IsKnownRoot(root *big.Int) bool {
	return l.tree.IsKnownRoot(root)
}

func (l *Ledger) ZeroHash(level uint32) (*big.Int, error) {
	return l.tree.ZeroHash(level)
}

func (l *Ledger) LeafCount() uint32 {
	return l.tree.LeafCount()
}

func (l *Ledger) DepositEvents() []DepositEvent {
	out := make([]DepositEvent, len(l.deposits))
	copy(out, l.deposits)
	return out
}

func (l *Ledger) WithdrawalEvents() []WithdrawalEvent {
	out := make([]WithdrawalEvent, len(l.withdrawals))
	copy(out, l.withdrawals)
	return out
}

func (l *Ledger) enter() error {
	if l.entered {
		return ErrReentrantCall
	}
	l.entered = true
	return nil
}

func (l *Ledger) exit() {
	l.entered = false
}

func normalize(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

func fieldKey(v *big.Int) ([32]byte, error) {
	var key [32]byte
	if v == nil || v.Sign() < 0 || v.Cmp(hasher.FieldModulus()) >= 0 {
		return key, merkletree.ErrOutOfField
	}
	v.FillBytes(key[:])
	return key, nil
}
