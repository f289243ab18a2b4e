package events

import (
	"math/big"

	"flakeledger/core/types"
	"flakeledger/crypto"
)

const (
	// TypeTransfer is emitted for every native balance movement.
	TypeTransfer = "transfer.native"
)

// Transfer records a native value movement between two identities.
type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"from":   crypto.FormatAddress(e.From),
			"to":     crypto.FormatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}
