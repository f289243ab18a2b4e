package state

import (
	"fmt"

	"github.com/holiman/uint256"
)

var balancePrefix = []byte("bank/balance/")

func balanceKey(addr [20]byte) []byte {
	return append(append([]byte(nil), balancePrefix...), addr[:]...)
}

// NativeBalance returns the native currency balance held by addr.
func (m *Manager) NativeBalance(addr [20]byte) (*uint256.Int, error) {
	var raw [32]byte
	ok, err := m.KVGet(balanceKey(addr), &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).SetBytes32(raw[:]), nil
}

// SetNativeBalance overwrites the native currency balance of addr. Zero
// balances are removed from state.
func (m *Manager) SetNativeBalance(addr [20]byte, amount *uint256.Int) error {
	if addr == ([20]byte{}) {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil || amount.IsZero() {
		return m.KVDelete(balanceKey(addr))
	}
	raw := amount.Bytes32()
	return m.KVPut(balanceKey(addr), &raw)
}
