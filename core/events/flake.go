package events

import (
	"math/big"

	"flakeledger/core/types"
	"flakeledger/crypto"
)

const (
	TypeFlakeCreated           = "flake.created"
	TypeFlakeStakeAdded        = "flake.stakeAdded"
	TypeFlakeResolved          = "flake.resolved"
	TypeFlakeRefundOpened      = "flake.refundOpened"
	TypeFlakeRefundClaimed     = "flake.refundClaimed"
	TypeFlakeOracleUpdated     = "flake.oracleUpdated"
	TypeFlakeOwnershipMoved    = "flake.ownershipTransferred"
	TypeFlakeFeeRecipientMoved = "flake.feeRecipientUpdated"
)

// FlakeCreated is emitted once per pool when it becomes Active.
type FlakeCreated struct {
	ID           uint64
	Creator      [20]byte
	FeeBps       uint32
	FeeRecipient [20]byte
}

func (FlakeCreated) EventType() string { return TypeFlakeCreated }

func (e FlakeCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeCreated,
		Attributes: map[string]string{
			"id":           uintToString(e.ID),
			"creator":      crypto.FormatAddress(e.Creator),
			"feeBps":       uintToString(uint64(e.FeeBps)),
			"feeRecipient": crypto.FormatAddress(e.FeeRecipient),
		},
	}
}

// StakeAdded captures a credit to a participant. Sender funded the stake and
// Participant received it; they differ when staking on behalf of someone.
type StakeAdded struct {
	ID          uint64
	Sender      [20]byte
	Participant [20]byte
	Amount      *big.Int
	NewTotal    *big.Int
}

func (StakeAdded) EventType() string { return TypeFlakeStakeAdded }

func (e StakeAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeStakeAdded,
		Attributes: map[string]string{
			"id":          uintToString(e.ID),
			"sender":      crypto.FormatAddress(e.Sender),
			"participant": crypto.FormatAddress(e.Participant),
			"amount":      formatAmount(e.Amount),
			"newTotal":    formatAmount(e.NewTotal),
		},
	}
}

type FlakeResolved struct {
	ID        uint64
	Winner    [20]byte
	Payout    *big.Int
	Fee       *big.Int
	Timestamp int64
}

func (FlakeResolved) EventType() string { return TypeFlakeResolved }

func (e FlakeResolved) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeResolved,
		Attributes: map[string]string{
			"id":        uintToString(e.ID),
			"winner":    crypto.FormatAddress(e.Winner),
			"payout":    formatAmount(e.Payout),
			"fee":       formatAmount(e.Fee),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

type FlakeRefundOpened struct {
	ID        uint64
	Timestamp int64
}

func (FlakeRefundOpened) EventType() string { return TypeFlakeRefundOpened }

func (e FlakeRefundOpened) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeRefundOpened,
		Attributes: map[string]string{
			"id":        uintToString(e.ID),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

type RefundClaimed struct {
	ID          uint64
	Participant [20]byte
	Amount      *big.Int
}

func (RefundClaimed) EventType() string { return TypeFlakeRefundClaimed }

func (e RefundClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeRefundClaimed,
		Attributes: map[string]string{
			"id":          uintToString(e.ID),
			"participant": crypto.FormatAddress(e.Participant),
			"amount":      formatAmount(e.Amount),
		},
	}
}

type OracleUpdated struct {
	Old [20]byte
	New [20]byte
}

func (OracleUpdated) EventType() string { return TypeFlakeOracleUpdated }

func (e OracleUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeOracleUpdated,
		Attributes: map[string]string{
			"old": crypto.FormatAddress(e.Old),
			"new": crypto.FormatAddress(e.New),
		},
	}
}

type OwnershipTransferred struct {
	Old [20]byte
	New [20]byte
}

func (OwnershipTransferred) EventType() string { return TypeFlakeOwnershipMoved }

func (e OwnershipTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeOwnershipMoved,
		Attributes: map[string]string{
			"old": crypto.FormatAddress(e.Old),
			"new": crypto.FormatAddress(e.New),
		},
	}
}

type FeeRecipientUpdated struct {
	ID           uint64
	NewRecipient [20]byte
}

func (FeeRecipientUpdated) EventType() string { return TypeFlakeFeeRecipientMoved }

func (e FeeRecipientUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFlakeFeeRecipientMoved,
		Attributes: map[string]string{
			"id":           uintToString(e.ID),
			"feeRecipient": crypto.FormatAddress(e.NewRecipient),
		},
	}
}
