package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"flakeledger/core/events"
	"flakeledger/core/state"
	"flakeledger/core/types"
	"flakeledger/native/bank"
	"flakeledger/native/flake"
	"flakeledger/observability"
	"flakeledger/storage"
)

const (
	// DefaultEventRetention bounds the in-memory event log.
	DefaultEventRetention = 10_000
	// DefaultSubscriberBuffer is the channel capacity handed to subscribers.
	DefaultSubscriberBuffer = 64
)

var eventSequenceKey = []byte("core/events/sequence")

// ErrAlreadyBootstrapped is returned when genesis is applied twice.
var ErrAlreadyBootstrapped = errors.New("core: ledger already bootstrapped")

// Node is the central controller, wiring state, bank and the Flake engine
// together. Every call runs under one mutex so the ledger observes a single
// sequential stream of operations; state is committed to the database after
// each successful mutating call and discarded otherwise.
type Node struct {
	mu     sync.Mutex
	db     storage.Database
	state  *state.Manager
	bank   *bank.Bank
	engine *flake.Engine
	logger *slog.Logger

	pending   []events.Event
	log       []*types.Event
	sequence  uint64
	retention int

	subsMu  sync.RWMutex
	subs    map[uint64]chan *types.Event
	nextSub uint64
}

// ReentrantHook is a receive hook that may call back into the ledger while a
// transfer is in flight. It is handed the engine directly because the node's
// lock is already held by the outer call.
type ReentrantHook func(ledger *flake.Engine, from [20]byte, amount *big.Int) error

type nodeEmitter struct{ node *Node }

func (e nodeEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.node.pending = append(e.node.pending, evt)
}

// NewNode opens the ledger stored in db.
func NewNode(db storage.Database, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	var seq uint64
	if _, err := manager.KVGet(eventSequenceKey, &seq); err != nil {
		return nil, fmt.Errorf("core: load event sequence: %w", err)
	}
	n := &Node{
		db:        db,
		state:     manager,
		bank:      bank.NewBank(manager),
		logger:    logger,
		sequence:  seq,
		retention: DefaultEventRetention,
		subs:      make(map[uint64]chan *types.Event),
	}
	engine := flake.NewEngine()
	engine.SetState(manager)
	engine.SetBank(n.bank)
	engine.SetEmitter(nodeEmitter{node: n})
	engine.SetLogger(logger.With(slog.String("component", "flake")))
	n.engine = engine
	return n, nil
}

// SetEventRetention bounds the number of events kept in memory.
func (n *Node) SetEventRetention(limit int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if limit <= 0 {
		limit = DefaultEventRetention
	}
	n.retention = limit
	n.trimLog()
}

// SetNowFunc overrides the engine clock.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engine.SetNowFunc(now)
}

// SetReceiveHook installs code that runs when addr receives value.
func (n *Node) SetReceiveHook(addr [20]byte, hook ReentrantHook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if hook == nil {
		n.bank.SetReceiveHook(addr, nil)
		return
	}
	engine := n.engine
	n.bank.SetReceiveHook(addr, func(from [20]byte, amount *big.Int) error {
		return hook(engine, from, amount)
	})
}

// Bootstrap records the privileged roles and credits genesis balances. It
// fails with ErrAlreadyBootstrapped once roles exist.
func (n *Node) Bootstrap(owner, oracle [20]byte, alloc map[[20]byte]*big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	ok, err := n.engine.Initialized()
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyBootstrapped
	}
	if err := n.engine.Initialize(owner, oracle); err != nil {
		n.state.Discard()
		return err
	}
	for addr, amount := range alloc {
		if err := n.bank.Credit(addr, amount); err != nil {
			n.state.Discard()
			return fmt.Errorf("core: genesis credit %x: %w", addr, err)
		}
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return err
	}
	n.logger.Info("ledger bootstrapped", slog.Int("allocations", len(alloc)))
	return nil
}

// Bootstrapped reports whether roles have been recorded.
func (n *Node) Bootstrapped() (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Initialized()
}

func (n *Node) apply(op string, fn func(*flake.Engine) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pending = n.pending[:0]
	if err := fn(n.engine); err != nil {
		n.state.Discard()
		n.pending = n.pending[:0]
		observability.Ledger().RecordRejected(op, string(flake.Category(err)))
		return err
	}
	committed := make([]*types.Event, 0, len(n.pending))
	seq := n.sequence
	for _, evt := range n.pending {
		flat := events.Flatten(evt).Clone()
		seq++
		flat.Sequence = seq
		committed = append(committed, flat)
	}
	if len(committed) > 0 {
		if err := n.state.KVPut(eventSequenceKey, seq); err != nil {
			n.state.Discard()
			return fmt.Errorf("core: record event sequence: %w", err)
		}
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.logger.Error("commit failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("core: commit %s: %w", op, err)
	}
	for i, evt := range n.pending {
		observability.Ledger().RecordEvent(evt, committed[i].Sequence)
	}
	n.pending = n.pending[:0]
	n.sequence = seq
	n.log = append(n.log, committed...)
	n.trimLog()
	if vault, err := n.bank.Balance(n.engine.Vault()); err == nil {
		observability.Ledger().SetEscrowed(vault)
	}
	n.publish(committed)
	return nil
}

func (n *Node) trimLog() {
	if over := len(n.log) - n.retention; over > 0 {
		n.log = append([]*types.Event(nil), n.log[over:]...)
	}
}

func (n *Node) publish(committed []*types.Event) {
	if len(committed) == 0 {
		return
	}
	n.subsMu.RLock()
	defer n.subsMu.RUnlock()
	for id, ch := range n.subs {
		for _, evt := range committed {
			select {
			case ch <- evt.Clone():
			default:
				n.logger.Warn("dropping event for slow subscriber",
					slog.Uint64("subscriber", id),
					slog.Uint64("sequence", evt.Sequence))
			}
		}
	}
}

// Subscribe returns a channel receiving every event committed after the call
// and a cancel function that closes it. Events are dropped for subscribers
// that do not keep up.
func (n *Node) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan *types.Event, buffer)
	n.subsMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = ch
	n.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.subsMu.Lock()
			delete(n.subs, id)
			n.subsMu.Unlock()
			close(ch)
		})
	}
}

// Events returns up to limit retained events with a sequence number of at
// least from. A non-positive limit returns every match.
func (n *Node) Events(from uint64, limit int) []*types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*types.Event, 0)
	for _, evt := range n.log {
		if evt.Sequence < from {
			continue
		}
		out = append(out, evt.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// LastSequence reports the sequence number of the latest committed event.
func (n *Node) LastSequence() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sequence
}

// --- Mutating operations ---

func (n *Node) FlakeCreate(call flake.Call, params flake.CreateParams) error {
	return n.apply("create", func(e *flake.Engine) error { return e.Create(call, params) })
}

func (n *Node) FlakeStake(call flake.Call, id uint64, beneficiary [20]byte) (*big.Int, error) {
	var total *big.Int
	err := n.apply("stake", func(e *flake.Engine) error {
		var err error
		total, err = e.Stake(call, id, beneficiary)
		return err
	})
	return total, err
}

func (n *Node) FlakeResolve(call flake.Call, id uint64, winner [20]byte) error {
	return n.apply("resolve", func(e *flake.Engine) error { return e.Resolve(call, id, winner) })
}

func (n *Node) FlakeOpenRefunds(call flake.Call, id uint64) error {
	return n.apply("openRefunds", func(e *flake.Engine) error { return e.OpenRefunds(call, id) })
}

func (n *Node) FlakeWithdrawRefund(call flake.Call, id uint64) (*big.Int, error) {
	var amount *big.Int
	err := n.apply("withdrawRefund", func(e *flake.Engine) error {
		var err error
		amount, err = e.WithdrawRefund(call, id)
		return err
	})
	return amount, err
}

func (n *Node) FlakeSetOracle(call flake.Call, oracle [20]byte) error {
	return n.apply("setOracle", func(e *flake.Engine) error { return e.SetOracle(call, oracle) })
}

func (n *Node) FlakeTransferOwnership(call flake.Call, owner [20]byte) error {
	return n.apply("transferOwnership", func(e *flake.Engine) error { return e.TransferOwnership(call, owner) })
}

func (n *Node) FlakeUpdateFeeRecipient(call flake.Call, id uint64, recipient [20]byte) error {
	return n.apply("updateFeeRecipient", func(e *flake.Engine) error { return e.UpdateFlakeFeeRecipient(call, id, recipient) })
}

func (n *Node) FlakeReceive(call flake.Call) error {
	return n.apply("receive", func(e *flake.Engine) error { return e.Receive(call) })
}

// --- Queries ---

func (n *Node) FlakeGet(id uint64) (*flake.Flake, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Flake(id)
}

func (n *Node) FlakeParticipants(id uint64) ([]*flake.Participant, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Participants(id)
}

func (n *Node) FlakeStakeOf(id uint64, addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.StakeOf(id, addr)
}

func (n *Node) FlakeIsParticipant(id uint64, addr [20]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.IsParticipant(id, addr)
}

func (n *Node) FlakeHasClaimedRefund(id uint64, addr [20]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.HasClaimedRefund(id, addr)
}

func (n *Node) FlakeRoles() (*flake.Roles, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Roles()
}

func (n *Node) FlakeAudit(id uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Audit(id)
}

// Balance returns the native balance of addr.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bank.Balance(addr)
}

// VaultAddress returns the identity custodying pooled stakes.
func (n *Node) VaultAddress() [20]byte {
	return n.engine.Vault()
}
