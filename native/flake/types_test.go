package flake

import (
	"math/big"
	"testing"
)

func TestComputeFeeFloors(t *testing.T) {
	cases := []struct {
		total  int64
		bps    uint32
		payout int64
		fee    int64
	}{
		{10_000, 500, 9_500, 500},
		{199, 100, 197, 1},
		{99, 100, 99, 0},
		{0, 1_000, 0, 0},
		{12_345, 0, 12_345, 0},
	}
	for _, tc := range cases {
		payout, fee := ComputeFee(big.NewInt(tc.total), tc.bps)
		if payout.Int64() != tc.payout || fee.Int64() != tc.fee {
			t.Fatalf("ComputeFee(%d, %d) = %s/%s, want %d/%d", tc.total, tc.bps, payout, fee, tc.payout, tc.fee)
		}
		if new(big.Int).Add(payout, fee).Int64() != tc.total {
			t.Fatalf("payout and fee do not sum to pool")
		}
	}
	if payout, fee := ComputeFee(nil, 500); payout.Sign() != 0 || fee.Sign() != 0 {
		t.Fatalf("nil pool should split to zero")
	}
}

func TestStateValidity(t *testing.T) {
	if StateUninitialized.Valid() {
		t.Fatalf("uninitialized must never be persisted")
	}
	for _, s := range []State{StateActive, StateResolved, StateRefunding} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if State(9).String() != "unknown(9)" {
		t.Fatalf("unexpected string %q", State(9).String())
	}
}

func TestSanitizeFlake(t *testing.T) {
	if _, err := SanitizeFlake(&Flake{State: StateActive, FeeBps: MaxFeeBps + 1}); err == nil {
		t.Fatalf("expected fee bound violation")
	}
	if _, err := SanitizeFlake(&Flake{State: StateActive, TotalStake: big.NewInt(-1)}); err == nil {
		t.Fatalf("expected negative stake rejection")
	}
	f, err := SanitizeFlake(&Flake{State: StateResolved})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if f.TotalStake == nil || f.DistributedFee == nil {
		t.Fatalf("amounts should be non-nil")
	}
}
