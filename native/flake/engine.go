package flake

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"flakeledger/core/events"
	"flakeledger/native/common"
)

type engineState interface {
	FlakeGet(id uint64) (*Flake, bool, error)
	FlakePut(*Flake) error
	FlakeParticipantGet(id uint64, addr [20]byte) (*Participant, bool, error)
	FlakeParticipantPut(id uint64, p *Participant) error
	FlakeParticipants(id uint64) ([][20]byte, error)
	FlakeRolesGet() (*Roles, bool, error)
	FlakeRolesPut(*Roles) error
	Snapshot() int
	RevertToSnapshot(int)
}

// valueMover moves native value between identities. Implementations may run
// recipient code before returning, which can call back into the engine.
type valueMover interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// DefaultVaultAddress is the identity that custodies pooled stakes.
var DefaultVaultAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("flake/vault"))[12:])
	return addr
}()

// Engine implements the Flake escrow ledger. Every mutating operation runs
// under a reentrancy guard inside a state snapshot: on failure the snapshot
// is restored and staged events are dropped, on success staged events are
// forwarded to the emitter in order.
type Engine struct {
	state   engineState
	bank    valueMover
	emitter events.Emitter
	staged  events.Buffer
	guard   common.Guard
	vault   [20]byte
	nowFn   func() int64
	logger  *slog.Logger
}

// NewEngine creates an engine with a no-op emitter. State and bank must be
// configured before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		vault:   DefaultVaultAddress,
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the value transfer backend.
func (e *Engine) SetBank(bank valueMover) { e.bank = bank }

// Vault returns the custody identity.
func (e *Engine) Vault() [20]byte { return e.vault }

// SetLogger configures structured logging. Passing nil restores slog.Default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.staged.Emit(evt)
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// execute runs fn as one atomic ledger operation. The attached value is
// pulled into the vault first; non-payable operations reject any value.
func (e *Engine) execute(op string, call Call, payable bool, fn func() error) error {
	if err := e.guard.Enter(); err != nil {
		e.logger.Warn("flake: nested call rejected", slog.String("op", op))
		return err
	}
	defer e.guard.Exit()
	if e.state == nil || e.bank == nil {
		return errNilState
	}
	snap := e.state.Snapshot()
	e.staged.Reset()
	err := e.attach(call, payable)
	if err == nil {
		err = fn()
	}
	if err != nil {
		e.state.RevertToSnapshot(snap)
		e.staged.Reset()
		e.logger.Debug("flake: operation rejected",
			slog.String("op", op),
			slog.String("category", string(Category(err))),
			slog.String("error", err.Error()))
		return err
	}
	e.staged.Flush(e.emitter)
	return nil
}

// party validates an identity named by a call. The vault custodies every
// pool, so it can never stake, win, collect fees or hold a role.
func (e *Engine) party(label string, addr [20]byte) error {
	if isZeroAddress(addr) {
		return fmt.Errorf("%w: %s", ErrZeroAddress, label)
	}
	if addr == e.vault {
		return fmt.Errorf("%w: %s", ErrVaultIdentity, label)
	}
	return nil
}

func (e *Engine) attach(call Call, payable bool) error {
	if err := e.party("caller", call.Caller); err != nil {
		return err
	}
	if call.Value == nil || call.Value.Sign() == 0 {
		return nil
	}
	if call.Value.Sign() < 0 {
		return ErrNegativeValue
	}
	if !payable {
		return ErrValueNotAccepted
	}
	if err := e.bank.Transfer(call.Caller, e.vault, call.Value); err != nil {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	e.emit(events.Transfer{From: call.Caller, To: e.vault, Amount: cloneBigInt(call.Value)})
	return nil
}

// pay transfers value out of the vault. Zero amounts are skipped; a payment
// back into the vault fails like any other rejected transfer.
func (e *Engine) pay(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if to == e.vault {
		return fmt.Errorf("%w: %w", ErrTransferFailed, ErrDirectTransfer)
	}
	if err := e.bank.Transfer(e.vault, to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	e.emit(events.Transfer{From: e.vault, To: to, Amount: cloneBigInt(amount)})
	return nil
}

func (e *Engine) roles() (*Roles, error) {
	roles, ok, err := e.state.FlakeRolesGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return roles, nil
}

func (e *Engine) requireOwner(caller [20]byte) (*Roles, error) {
	roles, err := e.roles()
	if err != nil {
		return nil, err
	}
	if caller != roles.Owner {
		return nil, ErrNotOwner
	}
	return roles, nil
}

func (e *Engine) requireOracle(caller [20]byte) error {
	roles, err := e.roles()
	if err != nil {
		return err
	}
	if caller != roles.Oracle {
		return ErrNotOracle
	}
	return nil
}

func (e *Engine) loadFlake(id uint64) (*Flake, error) {
	if e.state == nil {
		return nil, errNilState
	}
	f, ok, err := e.state.FlakeGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFlakeNotFound
	}
	return f, nil
}

// Initialize records the owner and oracle. An empty oracle defaults to the
// owner. Roles can only be initialised once.
func (e *Engine) Initialize(owner, oracle [20]byte) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()
	if e.state == nil {
		return errNilState
	}
	if err := e.party("owner", owner); err != nil {
		return err
	}
	if oracle == e.vault {
		return fmt.Errorf("%w: oracle", ErrVaultIdentity)
	}
	if _, ok, err := e.state.FlakeRolesGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if isZeroAddress(oracle) {
		oracle = owner
	}
	if err := e.state.FlakeRolesPut(&Roles{Owner: owner, Oracle: oracle}); err != nil {
		return err
	}
	e.logger.Info("flake: roles initialised",
		slog.String("owner", fmt.Sprintf("%x", owner)),
		slog.String("oracle", fmt.Sprintf("%x", oracle)))
	return nil
}

// Initialized reports whether roles have been recorded.
func (e *Engine) Initialized() (bool, error) {
	if e.state == nil {
		return false, errNilState
	}
	_, ok, err := e.state.FlakeRolesGet()
	return ok, err
}

// Create opens a new Flake. Expected participants are registered with zero
// stake. Any value attached to the call is credited to the beneficiary.
func (e *Engine) Create(call Call, params CreateParams) error {
	return e.execute("create", call, true, func() error {
		if _, ok, err := e.state.FlakeGet(params.ID); err != nil {
			return err
		} else if ok {
			return ErrFlakeExists
		}
		if params.FeeBps > MaxFeeBps {
			return ErrFeeTooHigh
		}
		roles, err := e.roles()
		if err != nil {
			return err
		}
		recipient := params.FeeRecipient
		if isZeroAddress(recipient) {
			recipient = roles.Owner
		}
		if recipient == e.vault {
			return fmt.Errorf("%w: fee recipient", ErrVaultIdentity)
		}
		f := &Flake{
			ID:                params.ID,
			Creator:           call.Caller,
			State:             StateActive,
			FeeBps:            params.FeeBps,
			FeeRecipient:      recipient,
			TotalStake:        big.NewInt(0),
			LifetimeStake:     big.NewInt(0),
			DistributedPayout: big.NewInt(0),
			DistributedFee:    big.NewInt(0),
			RefundedAmount:    big.NewInt(0),
			CreatedAt:         e.now(),
		}
		if err := e.state.FlakePut(f); err != nil {
			return err
		}
		seen := make(map[[20]byte]struct{}, len(params.ExpectedParticipants))
		for _, addr := range params.ExpectedParticipants {
			if err := e.party("expected participant", addr); err != nil {
				return err
			}
			if _, dup := seen[addr]; dup {
				return fmt.Errorf("%w: %x", ErrDuplicateParticipant, addr)
			}
			seen[addr] = struct{}{}
			p := &Participant{Address: addr, Stake: big.NewInt(0), Participating: true}
			if err := e.state.FlakeParticipantPut(f.ID, p); err != nil {
				return err
			}
		}
		e.emit(events.FlakeCreated{ID: f.ID, Creator: f.Creator, FeeBps: f.FeeBps, FeeRecipient: f.FeeRecipient})
		if call.Value != nil && call.Value.Sign() > 0 {
			beneficiary := params.Beneficiary
			if isZeroAddress(beneficiary) {
				beneficiary = call.Caller
			}
			if _, err := e.creditStake(f, call.Caller, beneficiary, call.Value); err != nil {
				return err
			}
		}
		e.logger.Info("flake: created",
			slog.Uint64("id", f.ID),
			slog.Uint64("feeBps", uint64(f.FeeBps)),
			slog.Int("expected", len(params.ExpectedParticipants)))
		return nil
	})
}

// Stake credits the attached value to beneficiary (the caller when zero) and
// returns the beneficiary's updated stake.
func (e *Engine) Stake(call Call, id uint64, beneficiary [20]byte) (*big.Int, error) {
	var updated *big.Int
	err := e.execute("stake", call, true, func() error {
		f, err := e.loadFlake(id)
		if err != nil {
			return err
		}
		if f.State != StateActive {
			return ErrFlakeNotActive
		}
		if call.Value == nil || call.Value.Sign() <= 0 {
			return ErrZeroStake
		}
		if isZeroAddress(beneficiary) {
			beneficiary = call.Caller
		}
		updated, err = e.creditStake(f, call.Caller, beneficiary, call.Value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (e *Engine) creditStake(f *Flake, sender, beneficiary [20]byte, amount *big.Int) (*big.Int, error) {
	if err := e.party("beneficiary", beneficiary); err != nil {
		return nil, err
	}
	p, ok, err := e.state.FlakeParticipantGet(f.ID, beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok {
		p = &Participant{Address: beneficiary, Stake: big.NewInt(0)}
	}
	p.Participating = true
	p.Stake = new(big.Int).Add(cloneBigInt(p.Stake), amount)
	f.TotalStake = new(big.Int).Add(cloneBigInt(f.TotalStake), amount)
	f.LifetimeStake = new(big.Int).Add(cloneBigInt(f.LifetimeStake), amount)
	if err := e.state.FlakeParticipantPut(f.ID, p); err != nil {
		return nil, err
	}
	if err := e.state.FlakePut(f); err != nil {
		return nil, err
	}
	e.emit(events.StakeAdded{
		ID:          f.ID,
		Sender:      sender,
		Participant: beneficiary,
		Amount:      cloneBigInt(amount),
		NewTotal:    cloneBigInt(f.TotalStake),
	})
	return cloneBigInt(p.Stake), nil
}

// Resolve closes an Active Flake in favour of winner. The pool is zeroed and
// the Flake marked Resolved before any value leaves the vault.
func (e *Engine) Resolve(call Call, id uint64, winner [20]byte) error {
	return e.execute("resolve", call, false, func() error {
		if err := e.requireOracle(call.Caller); err != nil {
			return err
		}
		f, err := e.loadFlake(id)
		if err != nil {
			return err
		}
		if f.State != StateActive {
			return ErrFlakeNotActive
		}
		if err := e.party("winner", winner); err != nil {
			return err
		}
		payout, fee := ComputeFee(f.TotalStake, f.FeeBps)
		now := e.now()
		f.State = StateResolved
		f.Winner = winner
		f.ResolvedAt = now
		f.DistributedPayout = payout
		f.DistributedFee = fee
		f.TotalStake = big.NewInt(0)
		if err := e.state.FlakePut(f); err != nil {
			return err
		}
		if err := e.pay(winner, payout); err != nil {
			return err
		}
		if err := e.pay(f.FeeRecipient, fee); err != nil {
			return err
		}
		e.emit(events.FlakeResolved{ID: f.ID, Winner: winner, Payout: cloneBigInt(payout), Fee: cloneBigInt(fee), Timestamp: now})
		e.logger.Info("flake: resolved",
			slog.Uint64("id", f.ID),
			slog.String("payout", payout.String()),
			slog.String("fee", fee.String()))
		return nil
	})
}

// OpenRefunds moves an Active Flake into its claim phase.
func (e *Engine) OpenRefunds(call Call, id uint64) error {
	return e.execute("openRefunds", call, false, func() error {
		if err := e.requireOracle(call.Caller); err != nil {
			return err
		}
		f, err := e.loadFlake(id)
		if err != nil {
			return err
		}
		if f.State != StateActive {
			return ErrFlakeNotActive
		}
		now := e.now()
		f.State = StateRefunding
		f.CancelledAt = now
		if err := e.state.FlakePut(f); err != nil {
			return err
		}
		e.emit(events.FlakeRefundOpened{ID: f.ID, Timestamp: now})
		e.logger.Info("flake: refunds opened", slog.Uint64("id", f.ID))
		return nil
	})
}

// WithdrawRefund returns the caller's full recorded stake. The claim is
// recorded before the transfer and can succeed at most once.
func (e *Engine) WithdrawRefund(call Call, id uint64) (*big.Int, error) {
	var refunded *big.Int
	err := e.execute("withdrawRefund", call, false, func() error {
		f, err := e.loadFlake(id)
		if err != nil {
			return err
		}
		if f.State != StateRefunding {
			return ErrFlakeNotRefunding
		}
		p, ok, err := e.state.FlakeParticipantGet(id, call.Caller)
		if err != nil {
			return err
		}
		if ok && p.RefundClaimed {
			return ErrRefundClaimed
		}
		if !ok || p.Stake == nil || p.Stake.Sign() == 0 {
			return ErrNoStake
		}
		amount := cloneBigInt(p.Stake)
		p.RefundClaimed = true
		f.TotalStake = new(big.Int).Sub(cloneBigInt(f.TotalStake), amount)
		if f.TotalStake.Sign() < 0 {
			return fmt.Errorf("flake: refund of %s exceeds pool %s", amount, new(big.Int).Add(f.TotalStake, amount))
		}
		f.RefundedAmount = new(big.Int).Add(cloneBigInt(f.RefundedAmount), amount)
		if err := e.state.FlakeParticipantPut(id, p); err != nil {
			return err
		}
		if err := e.state.FlakePut(f); err != nil {
			return err
		}
		if err := e.pay(call.Caller, amount); err != nil {
			return err
		}
		e.emit(events.RefundClaimed{ID: id, Participant: call.Caller, Amount: cloneBigInt(amount)})
		refunded = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

// SetOracle replaces the global oracle.
func (e *Engine) SetOracle(call Call, oracle [20]byte) error {
	return e.execute("setOracle", call, false, func() error {
		roles, err := e.requireOwner(call.Caller)
		if err != nil {
			return err
		}
		if err := e.party("oracle", oracle); err != nil {
			return err
		}
		old := roles.Oracle
		roles.Oracle = oracle
		if err := e.state.FlakeRolesPut(roles); err != nil {
			return err
		}
		e.emit(events.OracleUpdated{Old: old, New: oracle})
		return nil
	})
}

// TransferOwnership replaces the global owner.
func (e *Engine) TransferOwnership(call Call, owner [20]byte) error {
	return e.execute("transferOwnership", call, false, func() error {
		roles, err := e.requireOwner(call.Caller)
		if err != nil {
			return err
		}
		if err := e.party("owner", owner); err != nil {
			return err
		}
		old := roles.Owner
		roles.Owner = owner
		if err := e.state.FlakeRolesPut(roles); err != nil {
			return err
		}
		e.emit(events.OwnershipTransferred{Old: old, New: owner})
		return nil
	})
}

// UpdateFlakeFeeRecipient changes where a single Flake's fee is sent. The
// Flake may be in any state.
func (e *Engine) UpdateFlakeFeeRecipient(call Call, id uint64, recipient [20]byte) error {
	return e.execute("updateFeeRecipient", call, false, func() error {
		if _, err := e.requireOwner(call.Caller); err != nil {
			return err
		}
		f, err := e.loadFlake(id)
		if err != nil {
			return err
		}
		if err := e.party("fee recipient", recipient); err != nil {
			return err
		}
		f.FeeRecipient = recipient
		if err := e.state.FlakePut(f); err != nil {
			return err
		}
		e.emit(events.FeeRecipientUpdated{ID: id, NewRecipient: recipient})
		return nil
	})
}

// Receive handles value sent to the ledger without naming an operation. It is
// always rejected.
func (e *Engine) Receive(call Call) error {
	return ErrDirectTransfer
}
