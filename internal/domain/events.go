package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeAccountCreated    = "account.created"
	EventTypeAccountDeposited  = "account.deposited"
	EventTypeAccountWithdrawn  = "account.withdrawn"
	EventTypeAccountFrozen     = "account.frozen"
	EventTypeAccountUnfrozen   = "account.unfrozen"
	EventTypeTransferCompleted = "transfer.completed"
)

// Event describes a ledger mutation for downstream consumers.
type Event struct {
	OccurredAt     time.Time       `json:"occurred_at"`
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	AccountID      int64           `json:"account_id"`
	CounterpartyID int64           `json:"counterparty_id,omitempty"`
}

// EventFromTransaction builds the event that reports tx on account.
func EventFromTransaction(eventType string, account int64, tx Transaction) Event {
	return Event{
		ID:             tx.ID,
		Type:           eventType,
		AccountID:      account,
		CounterpartyID: tx.Counterparty,
		Amount:         tx.Amount,
		OccurredAt:     tx.Timestamp,
	}
}
