package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
	ErrInvalidAmount       = errors.New("bank: amount must be non-negative")
	ErrSelfTransfer        = errors.New("bank: sender and recipient are the same")
	errNilState            = errors.New("bank: state not configured")
)

type balanceState interface {
	NativeBalance(addr [20]byte) (*uint256.Int, error)
	SetNativeBalance(addr [20]byte, amount *uint256.Int) error
}

// ReceiveHook runs after value has been credited to the hooked identity. It
// models a recipient that executes code on receipt; returning an error fails
// the whole transfer.
type ReceiveHook func(from [20]byte, amount *big.Int) error

// Bank moves the native currency between identities.
type Bank struct {
	state balanceState
	hooks map[[20]byte]ReceiveHook
}

// NewBank returns a bank operating on the supplied balance state.
func NewBank(state balanceState) *Bank {
	return &Bank{state: state, hooks: make(map[[20]byte]ReceiveHook)}
}

// SetReceiveHook installs hook for addr. A nil hook removes it.
func (b *Bank) SetReceiveHook(addr [20]byte, hook ReceiveHook) {
	if hook == nil {
		delete(b.hooks, addr)
		return
	}
	b.hooks[addr] = hook
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil {
		return new(uint256.Int), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return v, nil
}

// Balance returns the native balance of addr.
func (b *Bank) Balance(addr [20]byte) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	bal, err := b.state.NativeBalance(addr)
	if err != nil {
		return nil, err
	}
	return bal.ToBig(), nil
}

// Credit mints amount to addr. It is used for genesis allocations only.
func (b *Bank) Credit(addr [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	amt, err := toUint256(amount)
	if err != nil {
		return err
	}
	bal, err := b.state.NativeBalance(addr)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amt)
	if overflow {
		return ErrBalanceOverflow
	}
	return b.state.SetNativeBalance(addr, next)
}

// Transfer debits from and credits to, then runs the receive hook of to. A
// transfer to the sending identity is rejected, even for a zero amount.
// Callers are expected to roll back state when Transfer fails.
func (b *Bank) Transfer(from, to [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if from == to {
		return fmt.Errorf("%w: %x", ErrSelfTransfer, from)
	}
	amt, err := toUint256(amount)
	if err != nil {
		return err
	}
	if !amt.IsZero() {
		fromBal, err := b.state.NativeBalance(from)
		if err != nil {
			return err
		}
		if fromBal.Lt(amt) {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal.Dec(), amt.Dec())
		}
		toBal, err := b.state.NativeBalance(to)
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(toBal, amt)
		if overflow {
			return ErrBalanceOverflow
		}
		if err := b.state.SetNativeBalance(from, new(uint256.Int).Sub(fromBal, amt)); err != nil {
			return err
		}
		if err := b.state.SetNativeBalance(to, credited); err != nil {
			return err
		}
	}
	if hook, ok := b.hooks[to]; ok {
		if err := hook(from, amt.ToBig()); err != nil {
			return fmt.Errorf("bank: recipient rejected transfer: %w", err)
		}
	}
	return nil
}
