package flake

import (
	"fmt"
	"math/big"
)

// Flake returns a snapshot of the stored record.
func (e *Engine) Flake(id uint64) (*Flake, error) {
	f, err := e.loadFlake(id)
	if err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

// Participants enumerates the registered participants in insertion order.
func (e *Engine) Participants(id uint64) ([]*Participant, error) {
	if _, err := e.loadFlake(id); err != nil {
		return nil, err
	}
	addrs, err := e.state.FlakeParticipants(id)
	if err != nil {
		return nil, err
	}
	out := make([]*Participant, 0, len(addrs))
	for _, addr := range addrs {
		p, ok, err := e.state.FlakeParticipantGet(id, addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("flake: participant index references missing record %x", addr)
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

func (e *Engine) participant(id uint64, addr [20]byte) (*Participant, bool, error) {
	if _, err := e.loadFlake(id); err != nil {
		return nil, false, err
	}
	return e.state.FlakeParticipantGet(id, addr)
}

// StakeOf returns the recorded stake of addr, zero when unknown.
func (e *Engine) StakeOf(id uint64, addr [20]byte) (*big.Int, error) {
	p, ok, err := e.participant(id, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return cloneBigInt(p.Stake), nil
}

// IsParticipant reports whether addr is registered on the Flake.
func (e *Engine) IsParticipant(id uint64, addr [20]byte) (bool, error) {
	p, ok, err := e.participant(id, addr)
	if err != nil {
		return false, err
	}
	return ok && p.Participating, nil
}

// HasClaimedRefund reports whether addr already withdrew its refund.
func (e *Engine) HasClaimedRefund(id uint64, addr [20]byte) (bool, error) {
	p, ok, err := e.participant(id, addr)
	if err != nil {
		return false, err
	}
	return ok && p.RefundClaimed, nil
}

// Roles returns the current owner and oracle.
func (e *Engine) Roles() (*Roles, error) {
	if e.state == nil {
		return nil, errNilState
	}
	roles, err := e.roles()
	if err != nil {
		return nil, err
	}
	clone := *roles
	return &clone, nil
}

// Owner returns the current owner.
func (e *Engine) Owner() ([20]byte, error) {
	roles, err := e.Roles()
	if err != nil {
		return [20]byte{}, err
	}
	return roles.Owner, nil
}

// Oracle returns the current oracle.
func (e *Engine) Oracle() ([20]byte, error) {
	roles, err := e.Roles()
	if err != nil {
		return [20]byte{}, err
	}
	return roles.Oracle, nil
}

// Audit recomputes the accounting identities of a Flake from its participant
// records and reports the first violation found.
func (e *Engine) Audit(id uint64) error {
	f, err := e.loadFlake(id)
	if err != nil {
		return err
	}
	participants, err := e.Participants(id)
	if err != nil {
		return err
	}
	staked := big.NewInt(0)
	claimed := big.NewInt(0)
	for _, p := range participants {
		staked.Add(staked, p.Stake)
		if p.RefundClaimed {
			claimed.Add(claimed, p.Stake)
		}
	}
	if staked.Cmp(f.LifetimeStake) != 0 {
		return fmt.Errorf("flake %d: participant stakes %s != lifetime stake %s", id, staked, f.LifetimeStake)
	}
	if claimed.Cmp(f.RefundedAmount) != 0 {
		return fmt.Errorf("flake %d: claimed stakes %s != refunded amount %s", id, claimed, f.RefundedAmount)
	}
	switch f.State {
	case StateActive, StateRefunding:
		expected := new(big.Int).Sub(staked, claimed)
		if expected.Cmp(f.TotalStake) != 0 {
			return fmt.Errorf("flake %d: total stake %s != outstanding %s", id, f.TotalStake, expected)
		}
		if f.State == StateActive && f.RefundedAmount.Sign() != 0 {
			return fmt.Errorf("flake %d: active flake has refunds", id)
		}
	case StateResolved:
		if f.TotalStake.Sign() != 0 {
			return fmt.Errorf("flake %d: resolved flake retains stake %s", id, f.TotalStake)
		}
		distributed := new(big.Int).Add(f.DistributedPayout, f.DistributedFee)
		if distributed.Cmp(staked) != 0 {
			return fmt.Errorf("flake %d: distributed %s != pooled %s", id, distributed, staked)
		}
	}
	return nil
}
