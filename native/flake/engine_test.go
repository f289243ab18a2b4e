package flake_test

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"flakeledger/core/events"
	"flakeledger/core/state"
	"flakeledger/native/bank"
	"flakeledger/native/flake"
	"flakeledger/storage"
)

const testNow int64 = 1_700_000_000

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

var (
	owner    = addr(0x01)
	oracle   = addr(0x02)
	alice    = addr(0xA1)
	bob      = addr(0xB0)
	carol    = addr(0xC0)
	feeSink  = addr(0xFE)
	stranger = addr(0x55)
)

// milliEther returns n thousandths of one ether in wei.
func milliEther(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000))
}

type harness struct {
	engine   *flake.Engine
	state    *state.Manager
	bank     *bank.Bank
	recorder *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	b := bank.NewBank(st)
	rec := &events.Recorder{}
	engine := flake.NewEngine()
	engine.SetState(st)
	engine.SetBank(b)
	engine.SetEmitter(rec)
	engine.SetNowFunc(func() int64 { return testNow })
	if err := engine.Initialize(owner, oracle); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, who := range [][20]byte{owner, alice, bob, carol, stranger} {
		if err := b.Credit(who, milliEther(10_000)); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	return &harness{engine: engine, state: st, bank: b, recorder: rec}
}

func (h *harness) balance(t *testing.T, who [20]byte) *big.Int {
	t.Helper()
	bal, err := h.bank.Balance(who)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (h *harness) create(t *testing.T, id uint64, expected ...[20]byte) {
	t.Helper()
	err := h.engine.Create(flake.Call{Caller: owner}, flake.CreateParams{
		ID:                   id,
		ExpectedParticipants: expected,
		FeeBps:               500,
		FeeRecipient:         feeSink,
	})
	if err != nil {
		t.Fatalf("create flake %d: %v", id, err)
	}
}

func (h *harness) stake(t *testing.T, id uint64, who [20]byte, amount *big.Int) {
	t.Helper()
	if _, err := h.engine.Stake(flake.Call{Caller: who, Value: amount}, id, [20]byte{}); err != nil {
		t.Fatalf("stake: %v", err)
	}
}

func assertAmount(t *testing.T, label string, got, want *big.Int) {
	t.Helper()
	if got.Cmp(want) != 0 {
		t.Fatalf("%s: got %s want %s", label, got, want)
	}
}

func TestResolvePaysWinnerAndFee(t *testing.T) {
	h := newHarness(t)
	h.create(t, 1, alice, bob)
	h.stake(t, 1, alice, milliEther(600))
	h.stake(t, 1, bob, milliEther(400))

	carolBefore := h.balance(t, carol)
	h.recorder.Events = nil
	if err := h.engine.Resolve(flake.Call{Caller: oracle}, 1, carol); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	assertAmount(t, "winner", new(big.Int).Sub(h.balance(t, carol), carolBefore), milliEther(950))
	assertAmount(t, "fee", h.balance(t, feeSink), milliEther(50))
	assertAmount(t, "vault", h.balance(t, h.engine.Vault()), big.NewInt(0))

	f, err := h.engine.Flake(1)
	if err != nil {
		t.Fatalf("flake: %v", err)
	}
	if f.State != flake.StateResolved {
		t.Fatalf("expected resolved, got %s", f.State)
	}
	assertAmount(t, "total stake", f.TotalStake, big.NewInt(0))
	assertAmount(t, "payout", f.DistributedPayout, milliEther(950))
	assertAmount(t, "distributed fee", f.DistributedFee, milliEther(50))
	if f.Winner != carol || f.ResolvedAt != testNow {
		t.Fatalf("unexpected resolution record %+v", f)
	}
	if err := h.engine.Audit(1); err != nil {
		t.Fatalf("audit: %v", err)
	}

	want := []string{events.TypeTransfer, events.TypeTransfer, events.TypeFlakeResolved}
	if got := h.recorder.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected events %v", got)
	}

	if err := h.engine.Resolve(flake.Call{Caller: oracle}, 1, carol); !errors.Is(err, flake.ErrFlakeNotActive) {
		t.Fatalf("expected ErrFlakeNotActive on second resolve, got %v", err)
	}
	if _, err := h.engine.Stake(flake.Call{Caller: alice, Value: milliEther(1)}, 1, [20]byte{}); !errors.Is(err, flake.ErrFlakeNotActive) {
		t.Fatalf("expected stake on resolved flake to fail, got %v", err)
	}
}

func TestResolveEmptyPool(t *testing.T) {
	h := newHarness(t)
	h.create(t, 9)
	if err := h.engine.Resolve(flake.Call{Caller: oracle}, 9, carol); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	f, _ := h.engine.Flake(9)
	assertAmount(t, "payout", f.DistributedPayout, big.NewInt(0))
	assertAmount(t, "fee", f.DistributedFee, big.NewInt(0))
}

func TestRefundFlow(t *testing.T) {
	h := newHarness(t)
	h.create(t, 2)
	h.stake(t, 2, bob, milliEther(300))
	h.stake(t, 2, alice, milliEther(500))

	if err := h.engine.OpenRefunds(flake.Call{Caller: oracle}, 2); err != nil {
		t.Fatalf("open refunds: %v", err)
	}
	if _, err := h.engine.Stake(flake.Call{Caller: bob, Value: milliEther(1)}, 2, [20]byte{}); !errors.Is(err, flake.ErrFlakeNotActive) {
		t.Fatalf("expected stake during refunds to fail, got %v", err)
	}
	if err := h.engine.Resolve(flake.Call{Caller: oracle}, 2, carol); !errors.Is(err, flake.ErrFlakeNotActive) {
		t.Fatalf("expected resolve during refunds to fail, got %v", err)
	}

	bobBefore := h.balance(t, bob)
	refund, err := h.engine.WithdrawRefund(flake.Call{Caller: bob}, 2)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	assertAmount(t, "refund", refund, milliEther(300))
	assertAmount(t, "bob balance", new(big.Int).Sub(h.balance(t, bob), bobBefore), milliEther(300))

	if _, err := h.engine.WithdrawRefund(flake.Call{Caller: bob}, 2); !errors.Is(err, flake.ErrRefundClaimed) {
		t.Fatalf("expected ErrRefundClaimed, got %v", err)
	}
	if _, err := h.engine.WithdrawRefund(flake.Call{Caller: stranger}, 2); !errors.Is(err, flake.ErrNoStake) {
		t.Fatalf("expected ErrNoStake, got %v", err)
	}

	f, _ := h.engine.Flake(2)
	if f.State != flake.StateRefunding || f.CancelledAt != testNow {
		t.Fatalf("unexpected refund record %+v", f)
	}
	assertAmount(t, "remaining", f.TotalStake, milliEther(500))
	assertAmount(t, "refunded", f.RefundedAmount, milliEther(300))
	claimed, _ := h.engine.HasClaimedRefund(2, bob)
	if !claimed {
		t.Fatalf("expected bob's refund to be recorded")
	}
	stake, _ := h.engine.StakeOf(2, bob)
	assertAmount(t, "recorded stake", stake, milliEther(300))
	if err := h.engine.Audit(2); err != nil {
		t.Fatalf("audit: %v", err)
	}

	if _, err := h.engine.WithdrawRefund(flake.Call{Caller: alice}, 2); err != nil {
		t.Fatalf("alice withdraw: %v", err)
	}
	f, _ = h.engine.Flake(2)
	assertAmount(t, "drained", f.TotalStake, big.NewInt(0))
	assertAmount(t, "vault", h.balance(t, h.engine.Vault()), big.NewInt(0))
}

func TestWithdrawRequiresRefunding(t *testing.T) {
	h := newHarness(t)
	h.create(t, 3)
	h.stake(t, 3, alice, milliEther(100))
	if _, err := h.engine.WithdrawRefund(flake.Call{Caller: alice}, 3); !errors.Is(err, flake.ErrFlakeNotRefunding) {
		t.Fatalf("expected ErrFlakeNotRefunding, got %v", err)
	}
	if _, err := h.engine.WithdrawRefund(flake.Call{Caller: alice}, 77); !errors.Is(err, flake.ErrFlakeNotFound) {
		t.Fatalf("expected ErrFlakeNotFound, got %v", err)
	}
}

func TestOracleOnlyOperations(t *testing.T) {
	h := newHarness(t)
	h.create(t, 4, alice)
	h.stake(t, 4, alice, milliEther(250))
	before := h.balance(t, carol)
	h.recorder.Events = nil

	for _, caller := range [][20]byte{owner, alice, stranger} {
		if err := h.engine.Resolve(flake.Call{Caller: caller}, 4, carol); !errors.Is(err, flake.ErrNotOracle) {
			t.Fatalf("expected ErrNotOracle, got %v", err)
		}
		if err := h.engine.OpenRefunds(flake.Call{Caller: caller}, 4); !errors.Is(err, flake.ErrNotOracle) {
			t.Fatalf("expected ErrNotOracle, got %v", err)
		}
	}
	f, _ := h.engine.Flake(4)
	if f.State != flake.StateActive {
		t.Fatalf("state changed to %s", f.State)
	}
	assertAmount(t, "pool", f.TotalStake, milliEther(250))
	assertAmount(t, "carol", h.balance(t, carol), before)
	if len(h.recorder.Events) != 0 {
		t.Fatalf("rejected calls emitted %v", h.recorder.Types())
	}
	if cat := flake.Category(flake.ErrNotOracle); cat != flake.CategoryAuthorization {
		t.Fatalf("unexpected category %q", cat)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name   string
		params flake.CreateParams
		want   error
	}{
		{"fee too high", flake.CreateParams{ID: 10, FeeBps: flake.MaxFeeBps + 1}, flake.ErrFeeTooHigh},
		{"duplicate participant", flake.CreateParams{ID: 11, ExpectedParticipants: [][20]byte{alice, bob, alice}}, flake.ErrDuplicateParticipant},
		{"zero participant", flake.CreateParams{ID: 12, ExpectedParticipants: [][20]byte{{}}}, flake.ErrZeroAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.engine.Create(flake.Call{Caller: owner}, tc.params)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if flake.Category(err) != flake.CategoryValidation {
				t.Fatalf("unexpected category %q", flake.Category(err))
			}
			if _, err := h.engine.Flake(tc.params.ID); !errors.Is(err, flake.ErrFlakeNotFound) {
				t.Fatalf("rejected create left a record: %v", err)
			}
		})
	}

	h.create(t, 13)
	err := h.engine.Create(flake.Call{Caller: alice}, flake.CreateParams{ID: 13})
	if !errors.Is(err, flake.ErrFlakeExists) {
		t.Fatalf("expected ErrFlakeExists, got %v", err)
	}
	if err := h.engine.Create(flake.Call{Caller: owner}, flake.CreateParams{ID: 14, FeeBps: flake.MaxFeeBps}); err != nil {
		t.Fatalf("max fee should be accepted: %v", err)
	}
}

func TestCreateDefaultsAndInitialStake(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Create(flake.Call{Caller: alice, Value: milliEther(200)}, flake.CreateParams{
		ID:                   20,
		ExpectedParticipants: [][20]byte{bob},
		FeeBps:               100,
		Beneficiary:          bob,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f, _ := h.engine.Flake(20)
	if f.FeeRecipient != owner || f.Creator != alice || f.CreatedAt != testNow {
		t.Fatalf("unexpected defaults %+v", f)
	}
	assertAmount(t, "pool", f.TotalStake, milliEther(200))
	stake, _ := h.engine.StakeOf(20, bob)
	assertAmount(t, "bob stake", stake, milliEther(200))
	participants, _ := h.engine.Participants(20)
	if len(participants) != 1 || participants[0].Address != bob {
		t.Fatalf("expected a single merged record for bob, got %+v", participants)
	}
	want := []string{events.TypeTransfer, events.TypeFlakeCreated, events.TypeFlakeStakeAdded}
	if got := h.recorder.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestStakeOnBehalf(t *testing.T) {
	h := newHarness(t)
	h.create(t, 30)
	total, err := h.engine.Stake(flake.Call{Caller: alice, Value: milliEther(100)}, 30, carol)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	assertAmount(t, "carol stake", total, milliEther(100))
	total, _ = h.engine.Stake(flake.Call{Caller: carol, Value: milliEther(50)}, 30, [20]byte{})
	assertAmount(t, "carol stake", total, milliEther(150))
	if ok, _ := h.engine.IsParticipant(30, carol); !ok {
		t.Fatalf("carol should be a participant")
	}
	if ok, _ := h.engine.IsParticipant(30, alice); ok {
		t.Fatalf("sender on behalf should not become a participant")
	}
	stake, _ := h.engine.StakeOf(30, alice)
	assertAmount(t, "alice stake", stake, big.NewInt(0))

	last := h.recorder.Events[len(h.recorder.Events)-1].(events.StakeAdded)
	if last.Sender != carol || last.Participant != carol {
		t.Fatalf("unexpected stake event %+v", last)
	}
	assertAmount(t, "event total", last.NewTotal, milliEther(150))
}

func TestStakeRejections(t *testing.T) {
	h := newHarness(t)
	h.create(t, 31)
	if _, err := h.engine.Stake(flake.Call{Caller: alice}, 31, [20]byte{}); !errors.Is(err, flake.ErrZeroStake) {
		t.Fatalf("expected ErrZeroStake, got %v", err)
	}
	if _, err := h.engine.Stake(flake.Call{Caller: alice, Value: milliEther(1)}, 99, [20]byte{}); !errors.Is(err, flake.ErrFlakeNotFound) {
		t.Fatalf("expected ErrFlakeNotFound, got %v", err)
	}
	before := h.balance(t, alice)
	_, err := h.engine.Stake(flake.Call{Caller: alice, Value: milliEther(20_000)}, 31, [20]byte{})
	if !errors.Is(err, flake.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	assertAmount(t, "alice", h.balance(t, alice), before)
	if _, err := h.engine.Stake(flake.Call{Caller: alice, Value: big.NewInt(-1)}, 31, [20]byte{}); !errors.Is(err, flake.ErrNegativeValue) {
		t.Fatalf("expected ErrNegativeValue, got %v", err)
	}
	if _, err := h.engine.Stake(flake.Call{Value: milliEther(1)}, 31, [20]byte{}); !errors.Is(err, flake.ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress for anonymous caller, got %v", err)
	}
}

func TestNonPayableOperationsRejectValue(t *testing.T) {
	h := newHarness(t)
	h.create(t, 40)
	call := flake.Call{Caller: oracle, Value: big.NewInt(1)}
	if err := h.engine.Resolve(call, 40, carol); !errors.Is(err, flake.ErrValueNotAccepted) {
		t.Fatalf("expected ErrValueNotAccepted, got %v", err)
	}
	if err := h.engine.OpenRefunds(call, 40); !errors.Is(err, flake.ErrValueNotAccepted) {
		t.Fatalf("expected ErrValueNotAccepted, got %v", err)
	}
	if err := h.engine.SetOracle(flake.Call{Caller: owner, Value: big.NewInt(1)}, carol); !errors.Is(err, flake.ErrValueNotAccepted) {
		t.Fatalf("expected ErrValueNotAccepted, got %v", err)
	}
}

func TestReceiveRejected(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Receive(flake.Call{Caller: alice, Value: milliEther(1)})
	if !errors.Is(err, flake.ErrDirectTransfer) {
		t.Fatalf("expected ErrDirectTransfer, got %v", err)
	}
	assertAmount(t, "vault", h.balance(t, h.engine.Vault()), big.NewInt(0))
}

func TestReentrantWinnerIsRejected(t *testing.T) {
	h := newHarness(t)
	h.create(t, 50)
	h.stake(t, 50, alice, milliEther(1_000))

	var nested error
	h.bank.SetReceiveHook(carol, func([20]byte, *big.Int) error {
		_, nested = h.engine.Stake(flake.Call{Caller: carol, Value: milliEther(1)}, 50, [20]byte{})
		return nil
	})
	if err := h.engine.Resolve(flake.Call{Caller: oracle}, 50, carol); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !errors.Is(nested, flake.ErrReentrant) {
		t.Fatalf("expected nested call to be rejected, got %v", nested)
	}
	if flake.Category(nested) != flake.CategoryReentrancy {
		t.Fatalf("unexpected category %q", flake.Category(nested))
	}
	if err := h.engine.Audit(50); err != nil {
		t.Fatalf("audit: %v", err)
	}
}

func TestFailedPayoutRollsBack(t *testing.T) {
	h := newHarness(t)
	h.create(t, 60)
	h.stake(t, 60, alice, milliEther(1_000))
	carolBefore := h.balance(t, carol)
	h.recorder.Events = nil

	h.bank.SetReceiveHook(carol, func([20]byte, *big.Int) error {
		return errors.New("recipient reverted")
	})
	err := h.engine.Resolve(flake.Call{Caller: oracle}, 60, carol)
	if !errors.Is(err, flake.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if flake.Category(err) != flake.CategoryTransfer {
		t.Fatalf("unexpected category %q", flake.Category(err))
	}
	f, _ := h.engine.Flake(60)
	if f.State != flake.StateActive {
		t.Fatalf("failed resolve left state %s", f.State)
	}
	assertAmount(t, "pool", f.TotalStake, milliEther(1_000))
	assertAmount(t, "carol", h.balance(t, carol), carolBefore)
	assertAmount(t, "vault", h.balance(t, h.engine.Vault()), milliEther(1_000))
	if len(h.recorder.Events) != 0 {
		t.Fatalf("failed resolve emitted %v", h.recorder.Types())
	}
}

func TestFailedFeeTransferRollsBackPayout(t *testing.T) {
	h := newHarness(t)
	h.create(t, 61)
	h.stake(t, 61, alice, milliEther(1_000))
	carolBefore := h.balance(t, carol)

	h.bank.SetReceiveHook(feeSink, func([20]byte, *big.Int) error {
		return errors.New("fee sink reverted")
	})
	if err := h.engine.Resolve(flake.Call{Caller: oracle}, 61, carol); !errors.Is(err, flake.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	assertAmount(t, "carol", h.balance(t, carol), carolBefore)
	assertAmount(t, "fee sink", h.balance(t, feeSink), big.NewInt(0))

	h.bank.SetReceiveHook(feeSink, nil)
	if err := h.engine.Resolve(flake.Call{Caller: oracle}, 61, carol); err != nil {
		t.Fatalf("retry resolve: %v", err)
	}
	assertAmount(t, "fee sink", h.balance(t, feeSink), milliEther(50))
}

func TestFailedRefundCanBeRetried(t *testing.T) {
	h := newHarness(t)
	h.create(t, 62)
	h.stake(t, 62, alice, milliEther(100))
	if err := h.engine.OpenRefunds(flake.Call{Caller: oracle}, 62); err != nil {
		t.Fatalf("open refunds: %v", err)
	}
	var nested error
	h.bank.SetReceiveHook(alice, func([20]byte, *big.Int) error {
		_, nested = h.engine.WithdrawRefund(flake.Call{Caller: alice}, 62)
		return errors.New("reverted")
	})
	if _, err := h.engine.WithdrawRefund(flake.Call{Caller: alice}, 62); !errors.Is(err, flake.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !errors.Is(nested, flake.ErrReentrant) {
		t.Fatalf("expected nested withdraw to be rejected, got %v", nested)
	}
	if claimed, _ := h.engine.HasClaimedRefund(62, alice); claimed {
		t.Fatalf("failed withdraw must not mark the refund claimed")
	}
	h.bank.SetReceiveHook(alice, nil)
	if _, err := h.engine.WithdrawRefund(flake.Call{Caller: alice}, 62); err != nil {
		t.Fatalf("retry withdraw: %v", err)
	}
}

func TestAdministrativeOperations(t *testing.T) {
	h := newHarness(t)
	h.create(t, 70)

	if err := h.engine.SetOracle(flake.Call{Caller: alice}, carol); !errors.Is(err, flake.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := h.engine.SetOracle(flake.Call{Caller: owner}, [20]byte{}); !errors.Is(err, flake.ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := h.engine.SetOracle(flake.Call{Caller: owner}, carol); err != nil {
		t.Fatalf("set oracle: %v", err)
	}
	if got, _ := h.engine.Oracle(); got != carol {
		t.Fatalf("oracle not updated")
	}
	if err := h.engine.OpenRefunds(flake.Call{Caller: oracle}, 70); !errors.Is(err, flake.ErrNotOracle) {
		t.Fatalf("previous oracle should lose its role, got %v", err)
	}

	if err := h.engine.UpdateFlakeFeeRecipient(flake.Call{Caller: owner}, 70, bob); err != nil {
		t.Fatalf("update fee recipient: %v", err)
	}
	if err := h.engine.UpdateFlakeFeeRecipient(flake.Call{Caller: owner}, 71, bob); !errors.Is(err, flake.ErrFlakeNotFound) {
		t.Fatalf("expected ErrFlakeNotFound, got %v", err)
	}
	f, _ := h.engine.Flake(70)
	if f.FeeRecipient != bob {
		t.Fatalf("fee recipient not updated")
	}

	if err := h.engine.TransferOwnership(flake.Call{Caller: owner}, alice); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if err := h.engine.SetOracle(flake.Call{Caller: owner}, owner); !errors.Is(err, flake.ErrNotOwner) {
		t.Fatalf("previous owner should lose its role, got %v", err)
	}
	if got, _ := h.engine.Owner(); got != alice {
		t.Fatalf("owner not updated")
	}

	want := []string{events.TypeFlakeCreated, events.TypeFlakeOracleUpdated, events.TypeFlakeFeeRecipientMoved, events.TypeFlakeOwnershipMoved}
	if got := h.recorder.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestInitializeOnce(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Initialize(alice, bob); !errors.Is(err, flake.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	fresh := flake.NewEngine()
	fresh.SetState(state.NewManager(storage.NewMemDB()))
	fresh.SetBank(h.bank)
	if err := fresh.Create(flake.Call{Caller: owner}, flake.CreateParams{ID: 1}); !errors.Is(err, flake.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := fresh.Initialize(owner, [20]byte{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	roles, err := fresh.Roles()
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if roles.Oracle != owner {
		t.Fatalf("oracle should default to owner")
	}
}

func TestCategory(t *testing.T) {
	cases := map[error]flake.ErrorCategory{
		nil:                           flake.CategoryNone,
		flake.ErrNotOwner:             flake.CategoryAuthorization,
		flake.ErrFlakeNotFound:        flake.CategoryNotFound,
		flake.ErrFlakeNotRefunding:    flake.CategoryState,
		flake.ErrDuplicateParticipant: flake.CategoryValidation,
		flake.ErrVaultIdentity:        flake.CategoryValidation,
		flake.ErrRefundClaimed:        flake.CategoryConflict,
		flake.ErrReentrant:            flake.CategoryReentrancy,
		errors.New("disk on fire"):    flake.CategoryInternal,
	}
	for err, want := range cases {
		if got := flake.Category(err); got != want {
			t.Fatalf("Category(%v) = %q, want %q", err, got, want)
		}
	}
}
