package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the type of balance movement a Transaction records.
type TransactionKind string

const (
	TxDeposit     TransactionKind = "deposit"
	TxWithdrawal  TransactionKind = "withdrawal"
	TxTransferIn  TransactionKind = "transfer-in"
	TxTransferOut TransactionKind = "transfer-out"
)

var validKinds = map[TransactionKind]bool{
	TxDeposit:     true,
	TxWithdrawal:  true,
	TxTransferIn:  true,
	TxTransferOut: true,
}

// IsValid checks if the kind is one of the known kinds.
func (k TransactionKind) IsValid() bool {
	return validKinds[k]
}

// Credits reports whether the kind increases the balance.
func (k TransactionKind) Credits() bool {
	return k == TxDeposit || k == TxTransferIn
}

// Transaction notes.
const (
	NoteInitialDeposit = "Initial deposit"
	NoteDeposit        = "Deposit"
	NoteWithdrawal     = "Withdrawal"
)

// Transaction is a single immutable entry of an account history.
type Transaction struct {
	Timestamp    time.Time
	ID           string
	Kind         TransactionKind
	Note         string
	Amount       decimal.Decimal
	Counterparty int64
}

// String renders the transaction the way account statements print it.
func (t Transaction) String() string {
	label := strings.ToUpper(strings.ReplaceAll(string(t.Kind), "-", "_"))
	return fmt.Sprintf("[%s] %s %s (%s)",
		t.Timestamp.Format("2006-01-02 15:04:05"), label, t.Amount.StringFixed(2), t.Note)
}

// SignedAmount returns the amount with the sign of its effect on the balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Kind.Credits() {
		return t.Amount
	}
	return t.Amount.Neg()
}

func transferOutNote(to int64) string {
	return fmt.Sprintf("Transfer to %d", to)
}

func transferInNote(from int64) string {
	return fmt.Sprintf("Transfer from %d", from)
}
