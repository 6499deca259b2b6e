package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerState is the full persisted form of a ledger.
type LedgerState struct {
	Accounts []AccountState
	NextID   int64
}

// AccountState is the persisted form of one account.
type AccountState struct {
	CreatedAt time.Time
	Owner     string
	PINHash   string
	Balance   decimal.Decimal
	History   []Transaction
	ID        int64
	Frozen    bool
}

// TotalBalance sums the balances of all accounts in the state.
func (s LedgerState) TotalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.Accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// RestoreLedger rebuilds a ledger from state. Any state that could not have
// been produced by a ledger is rejected with ErrCorruptData.
func RestoreLedger(state LedgerState, ids IDGenerator, opts ...Option) (*Ledger, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}

	l := NewLedger(ids, opts...)
	l.nextID = state.NextID
	for _, as := range state.Accounts {
		history := make([]Transaction, len(as.History))
		copy(history, as.History)
		l.accounts[as.ID] = &Account{
			id:        as.ID,
			owner:     as.Owner,
			pinHash:   as.PINHash,
			balance:   as.Balance,
			frozen:    as.Frozen,
			createdAt: as.CreatedAt,
			history:   history,
		}
	}
	return l, nil
}

// Validate checks the ledger invariants on a state.
func (s LedgerState) Validate() error {
	if s.NextID <= 0 {
		return fmt.Errorf("%w: next id %d is not positive", ErrCorruptData, s.NextID)
	}

	seen := make(map[int64]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		if a.ID <= 0 {
			return fmt.Errorf("%w: account id %d is not positive", ErrCorruptData, a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate account id %d", ErrCorruptData, a.ID)
		}
		seen[a.ID] = true

		if a.ID >= s.NextID {
			return fmt.Errorf("%w: account id %d not below next id %d", ErrCorruptData, a.ID, s.NextID)
		}
		if a.Balance.IsNegative() {
			return fmt.Errorf("%w: account %d has negative balance", ErrCorruptData, a.ID)
		}
		if !isPINHash(a.PINHash) {
			return fmt.Errorf("%w: account %d has malformed PIN hash", ErrCorruptData, a.ID)
		}
		for i, tx := range a.History {
			if !tx.Kind.IsValid() {
				return fmt.Errorf("%w: account %d transaction %d has unknown kind %q", ErrCorruptData, a.ID, i, tx.Kind)
			}
			if tx.Amount.IsNegative() {
				return fmt.Errorf("%w: account %d transaction %d has negative amount", ErrCorruptData, a.ID, i)
			}
		}
	}
	return nil
}
