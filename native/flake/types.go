package flake

import (
	"fmt"
	"math/big"
)

const (
	// MaxFeeBps caps the protocol fee at 10%.
	MaxFeeBps uint32 = 1_000
	// BpsDenominator expresses 100% in basis points.
	BpsDenominator = 10_000
)

// State enumerates the lifecycle of a Flake. StateUninitialized is never
// persisted: a Flake that has not been created has no record at all.
type State uint8

const (
	StateUninitialized State = iota
	StateActive
	StateResolved
	StateRefunding
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateResolved:
		return "resolved"
	case StateRefunding:
		return "refunding"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid reports whether the state may appear on a stored record.
func (s State) Valid() bool {
	switch s {
	case StateActive, StateResolved, StateRefunding:
		return true
	default:
		return false
	}
}

// Flake is a single escrow pool. Winner, DistributedPayout and DistributedFee
// are written exactly once at resolution.
type Flake struct {
	ID                uint64
	Creator           [20]byte
	State             State
	FeeBps            uint32
	FeeRecipient      [20]byte
	Winner            [20]byte
	TotalStake        *big.Int
	LifetimeStake     *big.Int
	DistributedPayout *big.Int
	DistributedFee    *big.Int
	RefundedAmount    *big.Int
	CreatedAt         int64
	ResolvedAt        int64
	CancelledAt       int64
}

// Clone returns a deep copy of the Flake so callers can safely mutate the copy
// without affecting the stored instance.
func (f *Flake) Clone() *Flake {
	if f == nil {
		return nil
	}
	clone := *f
	clone.TotalStake = cloneBigInt(f.TotalStake)
	clone.LifetimeStake = cloneBigInt(f.LifetimeStake)
	clone.DistributedPayout = cloneBigInt(f.DistributedPayout)
	clone.DistributedFee = cloneBigInt(f.DistributedFee)
	clone.RefundedAmount = cloneBigInt(f.RefundedAmount)
	return &clone
}

// Participant is the per-Flake record of a single identity.
type Participant struct {
	Address       [20]byte
	Stake         *big.Int
	Participating bool
	RefundClaimed bool
}

// Clone returns a deep copy of the participant record.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Stake = cloneBigInt(p.Stake)
	return &clone
}

// Roles holds the two privileged identities of the ledger.
type Roles struct {
	Owner  [20]byte
	Oracle [20]byte
}

// Call describes the authenticated invocation context: who is calling and how
// much native value is attached to the call.
type Call struct {
	Caller [20]byte
	Value  *big.Int
}

// CreateParams carries the arguments of Engine.Create. A zero FeeRecipient
// selects the current owner; a zero Beneficiary selects the caller.
type CreateParams struct {
	ID                   uint64
	ExpectedParticipants [][20]byte
	FeeBps               uint32
	FeeRecipient         [20]byte
	Beneficiary          [20]byte
}

// SanitizeFlake validates a stored record and returns a clone with non-nil
// amount fields. The function does not mutate the original value.
func SanitizeFlake(f *Flake) (*Flake, error) {
	if f == nil {
		return nil, fmt.Errorf("nil flake")
	}
	clone := f.Clone()
	if !clone.State.Valid() {
		return nil, fmt.Errorf("invalid flake state: %d", clone.State)
	}
	if clone.FeeBps > MaxFeeBps {
		return nil, fmt.Errorf("flake fee bps out of range: %d", clone.FeeBps)
	}
	for name, v := range map[string]*big.Int{
		"totalStake":        clone.TotalStake,
		"lifetimeStake":     clone.LifetimeStake,
		"distributedPayout": clone.DistributedPayout,
		"distributedFee":    clone.DistributedFee,
		"refundedAmount":    clone.RefundedAmount,
	} {
		if v.Sign() < 0 {
			return nil, fmt.Errorf("flake %s must be non-negative", name)
		}
	}
	return clone, nil
}

// ComputeFee splits a pool into the fee owed to the fee recipient and the
// payout owed to the winner. The fee is floor(total * feeBps / 10000).
func ComputeFee(total *big.Int, feeBps uint32) (payout, fee *big.Int) {
	amount := cloneBigInt(total)
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Quo(fee, big.NewInt(BpsDenominator))
	payout = new(big.Int).Sub(amount, fee)
	return payout, fee
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	return addr == ([20]byte{})
}
