package domain

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// FirstAccountID is the number given to the first account of a fresh ledger.
const FirstAccountID int64 = 1_000_000_000

// IDGenerator generates transaction ids.
type IDGenerator interface {
	Generate() string
}

// Ledger is the registry of accounts. The registry lock only guards the map
// and the id counter; balances are guarded by each account's own lock, so
// operations on different accounts never contend.
//
// Lock order: ledger lock before account locks, account locks in ascending
// id order. Nothing takes the ledger lock while holding an account lock.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[int64]*Account
	nextID   int64

	ids IDGenerator
	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithFirstID overrides the number given to the first account.
func WithFirstID(id int64) Option {
	return func(l *Ledger) { l.nextID = id }
}

// NewLedger creates an empty ledger.
func NewLedger(ids IDGenerator, opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[int64]*Account),
		nextID:   FirstAccountID,
		ids:      ids,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TransferReceipt holds both halves of a completed transfer.
type TransferReceipt struct {
	Out Transaction
	In  Transaction
}

// CreateAccount registers a new account whose history starts with the
// initial deposit, even when it is zero.
func (l *Ledger) CreateAccount(owner, secret string, initial decimal.Decimal) (*Account, error) {
	if initial.IsNegative() {
		return nil, ErrInvalidAmount
	}
	pinHash := HashPIN(secret)

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	account := newAccount(id, owner, pinHash, initial, l.stamp())
	l.accounts[id] = account

	return account, nil
}

// GetAccount looks an account up by number.
func (l *Ledger) GetAccount(id int64) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	account, ok := l.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// ListAccounts returns every account ordered by number.
func (l *Ledger) ListAccounts() []*Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked()
}

// NextID returns the number the next account will receive.
func (l *Ledger) NextID() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID
}

// Deposit credits an account.
func (l *Ledger) Deposit(id int64, amount decimal.Decimal) (Transaction, error) {
	account, err := l.GetAccount(id)
	if err != nil {
		return Transaction{}, err
	}
	return account.deposit(amount, l.stamp)
}

// Withdraw debits an account.
func (l *Ledger) Withdraw(id int64, amount decimal.Decimal) (Transaction, error) {
	account, err := l.GetAccount(id)
	if err != nil {
		return Transaction{}, err
	}
	return account.withdraw(amount, l.stamp)
}

// Freeze blocks outgoing movements on an account.
func (l *Ledger) Freeze(id int64) error {
	account, err := l.GetAccount(id)
	if err != nil {
		return err
	}
	account.Freeze()
	return nil
}

// Unfreeze lifts a freeze.
func (l *Ledger) Unfreeze(id int64) error {
	account, err := l.GetAccount(id)
	if err != nil {
		return err
	}
	account.Unfreeze()
	return nil
}

// ToggleFreeze flips the frozen flag of an account and returns the new value.
func (l *Ledger) ToggleFreeze(id int64) (bool, error) {
	account, err := l.GetAccount(id)
	if err != nil {
		return false, err
	}
	return account.ToggleFreeze(), nil
}

// VerifyPIN checks secret against the account's PIN.
func (l *Ledger) VerifyPIN(id int64, secret string) (bool, error) {
	account, err := l.GetAccount(id)
	if err != nil {
		return false, err
	}
	return account.VerifyPIN(secret), nil
}

// Transfer moves amount from one account to another as a single atomic step.
// Both account locks are taken in ascending id order so that two transfers in
// opposite directions between the same pair cannot deadlock. If the debit
// fails the destination is never touched.
func (l *Ledger) Transfer(fromID int64, fromSecret string, toID int64, amount decimal.Decimal) (TransferReceipt, error) {
	from, to, err := l.resolvePair(fromID, toID)
	if err != nil {
		return TransferReceipt{}, err
	}

	if !from.VerifyPIN(fromSecret) {
		return TransferReceipt{}, ErrUnauthorized
	}

	first, second := from, to
	if second.id < first.id {
		first, second = second, first
	}

	first.mu.Lock()
	defer first.mu.Unlock()
	if second != first {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	out, err := from.transferOutLocked(amount, toID, l.stamp())
	if err != nil {
		return TransferReceipt{}, err
	}
	in := to.transferInLocked(amount, fromID, l.stamp())

	return TransferReceipt{Out: out, In: in}, nil
}

func (l *Ledger) resolvePair(fromID, toID int64) (*Account, *Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	from, ok := l.accounts[fromID]
	if !ok {
		return nil, nil, ErrAccountNotFound
	}
	to, ok := l.accounts[toID]
	if !ok {
		return nil, nil, ErrAccountNotFound
	}
	return from, to, nil
}

// Snapshot captures the whole ledger at a single point in time. It holds the
// registry read lock and every account lock, taken in ascending id order, for
// the duration of the copy.
func (l *Ledger) Snapshot() LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	accounts := l.sortedLocked()
	for _, a := range accounts {
		a.mu.Lock()
	}
	defer func() {
		for _, a := range accounts {
			a.mu.Unlock()
		}
	}()

	state := LedgerState{
		NextID:   l.nextID,
		Accounts: make([]AccountState, 0, len(accounts)),
	}
	for _, a := range accounts {
		state.Accounts = append(state.Accounts, a.stateLocked())
	}
	return state
}

func (l *Ledger) sortedLocked() []*Account {
	out := make([]*Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (l *Ledger) stamp() stamp {
	return stamp{id: l.ids.Generate(), at: l.now()}
}
