package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/pinledger/internal/domain"
)

type seqIDs struct {
	n atomic.Int64
}

func (s *seqIDs) Generate() string {
	return fmt.Sprintf("tx-%d", s.n.Add(1))
}

// sampleState builds a ledger with every transaction kind, a frozen account
// and a zero-balance account.
func sampleState(t *testing.T) domain.LedgerState {
	t.Helper()

	clock := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	l := domain.NewLedger(&seqIDs{}, domain.WithClock(func() time.Time { return clock }))

	alice, err := l.CreateAccount("Alice", "1234", decimal.RequireFromString("100.10"))
	if err != nil {
		t.Fatal(err)
	}
	bob, err := l.CreateAccount("Bob, Jr.", "987654", decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Withdraw(alice.ID(), decimal.RequireFromString("0.10")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Deposit(bob.ID(), decimal.RequireFromString("5")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Transfer(alice.ID(), "1234", bob.ID(), decimal.RequireFromString("33.33")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateAccount("Carol", "1111", decimal.Zero); err != nil {
		t.Fatal(err)
	}
	if err := l.Freeze(bob.ID()); err != nil {
		t.Fatal(err)
	}

	return l.Snapshot()
}

func assertStatesEqual(t *testing.T, want, got domain.LedgerState) {
	t.Helper()

	if want.NextID != got.NextID {
		t.Fatalf("next id: expected %d, got %d", want.NextID, got.NextID)
	}
	if len(want.Accounts) != len(got.Accounts) {
		t.Fatalf("expected %d accounts, got %d", len(want.Accounts), len(got.Accounts))
	}
	for i := range want.Accounts {
		w, g := want.Accounts[i], got.Accounts[i]
		if w.ID != g.ID || w.Owner != g.Owner || w.PINHash != g.PINHash ||
			!w.Balance.Equal(g.Balance) || w.Frozen != g.Frozen || !w.CreatedAt.Equal(g.CreatedAt) {
			t.Fatalf("account %d differs:\nwant %+v\ngot  %+v", w.ID, w, g)
		}
		if len(w.History) != len(g.History) {
			t.Fatalf("account %d: expected %d transactions, got %d", w.ID, len(w.History), len(g.History))
		}
		for j := range w.History {
			wt, gt := w.History[j], g.History[j]
			if wt.ID != gt.ID || wt.Kind != gt.Kind || !wt.Amount.Equal(gt.Amount) ||
				wt.Note != gt.Note || wt.Counterparty != gt.Counterparty || !wt.Timestamp.Equal(gt.Timestamp) {
				t.Fatalf("account %d tx %d differs:\nwant %+v\ngot  %+v", w.ID, j, wt, gt)
			}
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	state := sampleState(t)

	data, err := Encode(&state, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	assertStatesEqual(t, state, *got)
}

func TestEncodeLayout(t *testing.T) {
	state := sampleState(t)
	data, err := Encode(&state, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["schema_version"] != float64(SchemaVersion) {
		t.Errorf("expected schema_version %d, got %v", SchemaVersion, raw["schema_version"])
	}
	if raw["saved_at"] != "2024-01-01T00:00:00Z" {
		t.Errorf("unexpected saved_at %v", raw["saved_at"])
	}

	// Amounts are strings so no precision is lost to float parsing.
	if !strings.Contains(string(data), `"balance": "66.67"`) {
		t.Errorf("expected Alice's balance as a decimal string, got:\n%s", data)
	}
	if !strings.Contains(string(data), `"kind": "transfer-out"`) {
		t.Errorf("expected transfer-out kind in:\n%s", data)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	valid := sampleState(t)
	good, err := Encode(&valid, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "account 1000000000 Alice"},
		{"truncated", string(good[:len(good)/2])},
		{"missing version", `{"next_id": 5, "accounts": []}`},
		{"future version", `{"schema_version": 99, "next_id": 5, "accounts": []}`},
		{"wrong type", `{"schema_version": "one"}`},
		{"bad amount", strings.Replace(string(good), `"balance": "66.67"`, `"balance": "lots"`, 1)},
		{"negative balance", strings.Replace(string(good), `"balance": "66.67"`, `"balance": "-1"`, 1)},
		{"unknown kind", strings.Replace(string(good), `"transfer-out"`, `"refund"`, 1)},
		{"zero next id", `{"schema_version": 1, "next_id": 0, "accounts": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, domain.ErrCorruptData) {
				t.Fatalf("expected ErrCorruptData, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyLedger(t *testing.T) {
	state, err := Decode([]byte(`{"schema_version": 1, "next_id": 1000000000, "accounts": []}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.NextID != domain.FirstAccountID || len(state.Accounts) != 0 {
		t.Fatalf("unexpected state %+v", state)
	}
}
