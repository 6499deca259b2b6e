// Package snapshot holds the versioned on-disk form of a ledger and the
// file-backed snapshot store.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/pinledger/internal/domain"
)

// SchemaVersion is the version written by Encode. Decode accepts versions
// 1 through SchemaVersion.
const SchemaVersion = 1

type document struct {
	SchemaVersion int           `json:"schema_version"`
	SavedAt       time.Time     `json:"saved_at"`
	NextID        int64         `json:"next_id"`
	Accounts      []accountJSON `json:"accounts"`
}

type accountJSON struct {
	ID           int64             `json:"id"`
	Owner        string            `json:"owner"`
	PINHash      string            `json:"pin_hash"`
	Balance      decimal.Decimal   `json:"balance"`
	Frozen       bool              `json:"frozen"`
	CreatedAt    time.Time         `json:"created_at"`
	Transactions []transactionJSON `json:"transactions"`
}

type transactionJSON struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note"`
	Counterparty int64           `json:"counterparty,omitempty"`
}

// Encode serializes state as a versioned JSON document.
func Encode(state *domain.LedgerState, savedAt time.Time) ([]byte, error) {
	doc := document{
		SchemaVersion: SchemaVersion,
		SavedAt:       savedAt.UTC(),
		NextID:        state.NextID,
		Accounts:      make([]accountJSON, 0, len(state.Accounts)),
	}

	for _, a := range state.Accounts {
		txs := make([]transactionJSON, 0, len(a.History))
		for _, tx := range a.History {
			txs = append(txs, transactionJSON{
				ID:           tx.ID,
				Timestamp:    tx.Timestamp,
				Kind:         string(tx.Kind),
				Amount:       tx.Amount,
				Note:         tx.Note,
				Counterparty: tx.Counterparty,
			})
		}
		doc.Accounts = append(doc.Accounts, accountJSON{
			ID:           a.ID,
			Owner:        a.Owner,
			PINHash:      a.PINHash,
			Balance:      a.Balance,
			Frozen:       a.Frozen,
			CreatedAt:    a.CreatedAt,
			Transactions: txs,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a document produced by Encode. Anything that does not decode
// to a valid ledger state fails with domain.ErrCorruptData.
func Decode(data []byte) (*domain.LedgerState, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptData, err)
	}

	if doc.SchemaVersion < 1 || doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", domain.ErrCorruptData, doc.SchemaVersion)
	}

	state := &domain.LedgerState{
		NextID:   doc.NextID,
		Accounts: make([]domain.AccountState, 0, len(doc.Accounts)),
	}
	for _, a := range doc.Accounts {
		history := make([]domain.Transaction, 0, len(a.Transactions))
		for _, tx := range a.Transactions {
			history = append(history, domain.Transaction{
				ID:           tx.ID,
				Timestamp:    tx.Timestamp,
				Kind:         domain.TransactionKind(tx.Kind),
				Amount:       tx.Amount,
				Note:         tx.Note,
				Counterparty: tx.Counterparty,
			})
		}
		state.Accounts = append(state.Accounts, domain.AccountState{
			ID:        a.ID,
			Owner:     a.Owner,
			PINHash:   a.PINHash,
			Balance:   a.Balance,
			Frozen:    a.Frozen,
			CreatedAt: a.CreatedAt,
			History:   history,
		})
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}
