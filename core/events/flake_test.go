package events

import (
	"bytes"
	"math/big"
	"testing"

	"flakeledger/crypto"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestFlakeEventPayloads(t *testing.T) {
	a := testAddr(0x01)
	b := testAddr(0x02)
	cases := []struct {
		name  string
		evt   Payload
		typ   string
		attrs map[string]string
	}{
		{
			name: "created",
			evt:  FlakeCreated{ID: 7, Creator: a, FeeBps: 500, FeeRecipient: b},
			typ:  TypeFlakeCreated,
			attrs: map[string]string{
				"id":           "7",
				"creator":      crypto.FormatAddress(a),
				"feeBps":       "500",
				"feeRecipient": crypto.FormatAddress(b),
			},
		},
		{
			name: "stake",
			evt:  StakeAdded{ID: 7, Sender: a, Participant: b, Amount: big.NewInt(3), NewTotal: big.NewInt(10)},
			typ:  TypeFlakeStakeAdded,
			attrs: map[string]string{
				"id":          "7",
				"sender":      crypto.FormatAddress(a),
				"participant": crypto.FormatAddress(b),
				"amount":      "3",
				"newTotal":    "10",
			},
		},
		{
			name: "resolved",
			evt:  FlakeResolved{ID: 7, Winner: b, Payout: big.NewInt(95), Fee: big.NewInt(5), Timestamp: 1_700_000_000},
			typ:  TypeFlakeResolved,
			attrs: map[string]string{
				"id":        "7",
				"winner":    crypto.FormatAddress(b),
				"payout":    "95",
				"fee":       "5",
				"timestamp": "1700000000",
			},
		},
		{
			name:  "refund opened",
			evt:   FlakeRefundOpened{ID: 7, Timestamp: 42},
			typ:   TypeFlakeRefundOpened,
			attrs: map[string]string{"id": "7", "timestamp": "42"},
		},
		{
			name:  "refund claimed nil amount",
			evt:   RefundClaimed{ID: 7, Participant: a},
			typ:   TypeFlakeRefundClaimed,
			attrs: map[string]string{"id": "7", "participant": crypto.FormatAddress(a), "amount": "0"},
		},
		{
			name:  "oracle",
			evt:   OracleUpdated{Old: a, New: b},
			typ:   TypeFlakeOracleUpdated,
			attrs: map[string]string{"old": crypto.FormatAddress(a), "new": crypto.FormatAddress(b)},
		},
		{
			name:  "owner",
			evt:   OwnershipTransferred{Old: a, New: b},
			typ:   TypeFlakeOwnershipMoved,
			attrs: map[string]string{"old": crypto.FormatAddress(a), "new": crypto.FormatAddress(b)},
		},
		{
			name:  "fee recipient",
			evt:   FeeRecipientUpdated{ID: 9, NewRecipient: b},
			typ:   TypeFlakeFeeRecipientMoved,
			attrs: map[string]string{"id": "9", "feeRecipient": crypto.FormatAddress(b)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.evt.EventType() != tc.typ {
				t.Fatalf("unexpected type %s", tc.evt.EventType())
			}
			payload := tc.evt.Event()
			if payload.Type != tc.typ {
				t.Fatalf("payload type mismatch: %s", payload.Type)
			}
			if len(payload.Attributes) != len(tc.attrs) {
				t.Fatalf("unexpected attribute count: %+v", payload.Attributes)
			}
			for k, v := range tc.attrs {
				if payload.Attributes[k] != v {
					t.Fatalf("attr %s: expected %s got %s", k, v, payload.Attributes[k])
				}
			}
		})
	}
}

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestBufferFlushAndReset(t *testing.T) {
	var buf Buffer
	buf.Emit(FlakeRefundOpened{ID: 1})
	buf.Emit(nil)
	buf.Emit(bareEvent{})
	if buf.Len() != 2 {
		t.Fatalf("expected 2 staged events, got %d", buf.Len())
	}
	rec := &Recorder{}
	buf.Flush(rec)
	if buf.Len() != 0 {
		t.Fatalf("buffer should be empty after flush")
	}
	types := rec.Types()
	if len(types) != 2 || types[0] != TypeFlakeRefundOpened || types[1] != "bare" {
		t.Fatalf("unexpected flushed order: %v", types)
	}

	buf.Emit(FlakeRefundOpened{ID: 2})
	buf.Reset()
	buf.Flush(rec)
	if len(rec.Events) != 2 {
		t.Fatalf("reset events must not be flushed")
	}
}

func TestFlatten(t *testing.T) {
	if Flatten(nil) != nil {
		t.Fatalf("expected nil for nil event")
	}
	flat := Flatten(bareEvent{})
	if flat.Type != "bare" || flat.Attributes == nil {
		t.Fatalf("unexpected flattened bare event: %+v", flat)
	}
	flat = Flatten(Transfer{From: testAddr(1), To: testAddr(2), Amount: big.NewInt(5)})
	if flat.Type != TypeTransfer || flat.Attributes["amount"] != "5" {
		t.Fatalf("unexpected flattened transfer: %+v", flat)
	}
}
