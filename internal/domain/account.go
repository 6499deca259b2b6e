package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a PIN-protected balance with an append-only history.
// All mutation goes through the account's own mutex.
type Account struct {
	mu sync.Mutex

	createdAt time.Time
	owner     string
	pinHash   string
	balance   decimal.Decimal
	history   []Transaction
	id        int64
	frozen    bool
}

// AccountView is a point-in-time copy of an account. Mutating it has no effect
// on the ledger.
type AccountView struct {
	CreatedAt time.Time
	Owner     string
	Balance   decimal.Decimal
	History   []Transaction
	ID        int64
	Frozen    bool
}

// stamp carries the identity and time of the transaction being recorded.
type stamp struct {
	at time.Time
	id string
}

func newAccount(id int64, owner, pinHash string, initial decimal.Decimal, s stamp) *Account {
	return &Account{
		id:        id,
		owner:     owner,
		pinHash:   pinHash,
		balance:   initial,
		createdAt: s.at,
		history: []Transaction{{
			ID:        s.id,
			Timestamp: s.at,
			Kind:      TxDeposit,
			Amount:    initial,
			Note:      NoteInitialDeposit,
		}},
	}
}

// ID returns the account number.
func (a *Account) ID() int64 { return a.id }

// Owner returns the display name of the owner.
func (a *Account) Owner() string { return a.owner }

// PINHash returns the stored PIN digest.
func (a *Account) PINHash() string { return a.pinHash }

// CreatedAt returns when the account was opened.
func (a *Account) CreatedAt() time.Time { return a.createdAt }

// Balance returns the current balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Frozen reports whether outgoing movements are blocked.
func (a *Account) Frozen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}

// History returns a copy of the transaction log in append order.
func (a *Account) History() []Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.historyLocked()
}

// View returns a consistent copy of the whole account.
func (a *Account) View() AccountView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

// VerifyPIN checks secret against the stored digest. The digest never changes
// after creation so no lock is needed.
func (a *Account) VerifyPIN(secret string) bool {
	return VerifyPIN(secret, a.pinHash)
}

// Freeze blocks deposits, withdrawals and outgoing transfers.
func (a *Account) Freeze() {
	a.mu.Lock()
	a.frozen = true
	a.mu.Unlock()
}

// Unfreeze lifts a freeze.
func (a *Account) Unfreeze() {
	a.mu.Lock()
	a.frozen = false
	a.mu.Unlock()
}

// ToggleFreeze flips the frozen flag and returns the new value.
func (a *Account) ToggleFreeze() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = !a.frozen
	return a.frozen
}

// deposit credits the account. next is called under a.mu so that history
// order matches timestamp order.
func (a *Account) deposit(amount decimal.Decimal, next func() stamp) (Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return Transaction{}, ErrFrozen
	}
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}

	return a.creditLocked(amount, TxDeposit, NoteDeposit, 0, next()), nil
}

func (a *Account) withdraw(amount decimal.Decimal, next func() stamp) (Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.validateDebitLocked(amount); err != nil {
		return Transaction{}, err
	}

	return a.debitLocked(amount, TxWithdrawal, NoteWithdrawal, 0, next()), nil
}

// transferOutLocked debits the account for a transfer. The caller holds a.mu.
func (a *Account) transferOutLocked(amount decimal.Decimal, to int64, s stamp) (Transaction, error) {
	if err := a.validateDebitLocked(amount); err != nil {
		return Transaction{}, err
	}
	return a.debitLocked(amount, TxTransferOut, transferOutNote(to), to, s), nil
}

// transferInLocked credits the account for a transfer. It performs no amount
// or freeze check: incoming value is accepted unconditionally. The caller
// holds a.mu.
func (a *Account) transferInLocked(amount decimal.Decimal, from int64, s stamp) Transaction {
	return a.creditLocked(amount, TxTransferIn, transferInNote(from), from, s)
}

func (a *Account) validateDebitLocked(amount decimal.Decimal) error {
	if a.frozen {
		return ErrFrozen
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(a.balance) {
		return ErrInsufficientFunds
	}
	return nil
}

func (a *Account) creditLocked(amount decimal.Decimal, kind TransactionKind, note string, counterparty int64, s stamp) Transaction {
	a.balance = a.balance.Add(amount)
	return a.appendLocked(amount, kind, note, counterparty, s)
}

func (a *Account) debitLocked(amount decimal.Decimal, kind TransactionKind, note string, counterparty int64, s stamp) Transaction {
	a.balance = a.balance.Sub(amount)
	return a.appendLocked(amount, kind, note, counterparty, s)
}

func (a *Account) appendLocked(amount decimal.Decimal, kind TransactionKind, note string, counterparty int64, s stamp) Transaction {
	tx := Transaction{
		ID:           s.id,
		Timestamp:    s.at,
		Kind:         kind,
		Amount:       amount,
		Note:         note,
		Counterparty: counterparty,
	}
	a.history = append(a.history, tx)
	return tx
}

func (a *Account) historyLocked() []Transaction {
	out := make([]Transaction, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Account) viewLocked() AccountView {
	return AccountView{
		ID:        a.id,
		Owner:     a.owner,
		Balance:   a.balance,
		Frozen:    a.frozen,
		CreatedAt: a.createdAt,
		History:   a.historyLocked(),
	}
}

func (a *Account) stateLocked() AccountState {
	return AccountState{
		ID:        a.id,
		Owner:     a.owner,
		PINHash:   a.pinHash,
		Balance:   a.balance,
		Frozen:    a.frozen,
		CreatedAt: a.createdAt,
		History:   a.historyLocked(),
	}
}
