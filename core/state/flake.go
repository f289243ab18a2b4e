package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"flakeledger/native/flake"
)

var (
	flakeRecordPrefix      = []byte("flake/record/")
	flakeParticipantPrefix = []byte("flake/participant/")
	flakeIndexPrefix       = []byte("flake/participants/")
	flakeRolesKey          = []byte("flake/roles")
)

type storedFlake struct {
	ID                uint64
	Creator           [20]byte
	State             uint8
	FeeBps            uint32
	FeeRecipient      [20]byte
	Winner            [20]byte
	TotalStake        *big.Int
	LifetimeStake     *big.Int
	DistributedPayout *big.Int
	DistributedFee    *big.Int
	RefundedAmount    *big.Int
	CreatedAt         uint64
	ResolvedAt        uint64
	CancelledAt       uint64
}

type storedParticipant struct {
	Address       [20]byte
	Stake         *big.Int
	Participating bool
	RefundClaimed bool
}

type storedRoles struct {
	Owner  [20]byte
	Oracle [20]byte
}

func flakeIDBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func flakeRecordKey(id uint64) []byte {
	return append(append([]byte(nil), flakeRecordPrefix...), flakeIDBytes(id)...)
}

func flakeParticipantKey(id uint64, addr [20]byte) []byte {
	key := append(append([]byte(nil), flakeParticipantPrefix...), flakeIDBytes(id)...)
	key = append(key, '/')
	return append(key, addr[:]...)
}

func flakeIndexKey(id uint64) []byte {
	return append(append([]byte(nil), flakeIndexPrefix...), flakeIDBytes(id)...)
}

func toStoredTime(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// FlakePut validates and persists a Flake record.
func (m *Manager) FlakePut(f *flake.Flake) error {
	sanitized, err := flake.SanitizeFlake(f)
	if err != nil {
		return err
	}
	record := storedFlake{
		ID:                sanitized.ID,
		Creator:           sanitized.Creator,
		State:             uint8(sanitized.State),
		FeeBps:            sanitized.FeeBps,
		FeeRecipient:      sanitized.FeeRecipient,
		Winner:            sanitized.Winner,
		TotalStake:        sanitized.TotalStake,
		LifetimeStake:     sanitized.LifetimeStake,
		DistributedPayout: sanitized.DistributedPayout,
		DistributedFee:    sanitized.DistributedFee,
		RefundedAmount:    sanitized.RefundedAmount,
		CreatedAt:         toStoredTime(sanitized.CreatedAt),
		ResolvedAt:        toStoredTime(sanitized.ResolvedAt),
		CancelledAt:       toStoredTime(sanitized.CancelledAt),
	}
	return m.KVPut(flakeRecordKey(sanitized.ID), &record)
}

// FlakeGet loads a Flake record. The boolean is false when the Flake has never
// been created.
func (m *Manager) FlakeGet(id uint64) (*flake.Flake, bool, error) {
	var record storedFlake
	ok, err := m.KVGet(flakeRecordKey(id), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	f := &flake.Flake{
		ID:                record.ID,
		Creator:           record.Creator,
		State:             flake.State(record.State),
		FeeBps:            record.FeeBps,
		FeeRecipient:      record.FeeRecipient,
		Winner:            record.Winner,
		TotalStake:        record.TotalStake,
		LifetimeStake:     record.LifetimeStake,
		DistributedPayout: record.DistributedPayout,
		DistributedFee:    record.DistributedFee,
		RefundedAmount:    record.RefundedAmount,
		CreatedAt:         int64(record.CreatedAt),
		ResolvedAt:        int64(record.ResolvedAt),
		CancelledAt:       int64(record.CancelledAt),
	}
	sanitized, err := flake.SanitizeFlake(f)
	if err != nil {
		return nil, false, fmt.Errorf("state: flake %d: %w", id, err)
	}
	return sanitized, true, nil
}

// FlakeParticipantPut stores the participant record and registers the
// address in the Flake's insertion-ordered participant index.
func (m *Manager) FlakeParticipantPut(id uint64, p *flake.Participant) error {
	if p == nil {
		return fmt.Errorf("state: nil participant")
	}
	if p.Address == ([20]byte{}) {
		return fmt.Errorf("state: participant address must not be empty")
	}
	stake := p.Stake
	if stake == nil {
		stake = big.NewInt(0)
	}
	if stake.Sign() < 0 {
		return fmt.Errorf("state: participant stake must be non-negative")
	}
	record := storedParticipant{
		Address:       p.Address,
		Stake:         new(big.Int).Set(stake),
		Participating: p.Participating,
		RefundClaimed: p.RefundClaimed,
	}
	if err := m.KVPut(flakeParticipantKey(id, p.Address), &record); err != nil {
		return err
	}
	_, err := m.KVAppend(flakeIndexKey(id), p.Address[:])
	return err
}

// FlakeParticipantGet loads a participant record.
func (m *Manager) FlakeParticipantGet(id uint64, addr [20]byte) (*flake.Participant, bool, error) {
	var record storedParticipant
	ok, err := m.KVGet(flakeParticipantKey(id, addr), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	stake := record.Stake
	if stake == nil {
		stake = big.NewInt(0)
	}
	return &flake.Participant{
		Address:       record.Address,
		Stake:         stake,
		Participating: record.Participating,
		RefundClaimed: record.RefundClaimed,
	}, true, nil
}

// FlakeParticipants returns the participant index in registration order.
func (m *Manager) FlakeParticipants(id uint64) ([][20]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(flakeIndexKey(id), &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("state: malformed participant entry for flake %d", id)
		}
		var addr [20]byte
		copy(addr[:], entry)
		out = append(out, addr)
	}
	return out, nil
}

// FlakeRolesPut stores the ledger owner and oracle.
func (m *Manager) FlakeRolesPut(roles *flake.Roles) error {
	if roles == nil {
		return fmt.Errorf("state: nil roles")
	}
	return m.KVPut(flakeRolesKey, &storedRoles{Owner: roles.Owner, Oracle: roles.Oracle})
}

// FlakeRolesGet loads the ledger owner and oracle.
func (m *Manager) FlakeRolesGet() (*flake.Roles, bool, error) {
	var record storedRoles
	ok, err := m.KVGet(flakeRolesKey, &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &flake.Roles{Owner: record.Owner, Oracle: record.Oracle}, true, nil
}
