package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/pinledger/internal/domain"
)

// LedgerUseCase is the ledger API used by the HTTP server and the CLI. Every
// successful mutation is followed by a snapshot save and an event.
type LedgerUseCase struct {
	ledger    *domain.Ledger
	store     SnapshotStore
	retrier   Retrier
	publisher EventPublisher
	recorder  Recorder
	idGen     IDGenerator
	logger    zerolog.Logger

	// persistMu serializes saves so an older snapshot never lands after a newer one.
	persistMu sync.Mutex
}

// NewLedgerUseCase creates a new LedgerUseCase. store may be nil for an
// in-memory ledger; retrier, publisher and recorder may be nil to disable them.
func NewLedgerUseCase(
	ledger *domain.Ledger,
	store SnapshotStore,
	retrier Retrier,
	publisher EventPublisher,
	recorder Recorder,
	idGen IDGenerator,
	logger zerolog.Logger,
) *LedgerUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &LedgerUseCase{
		ledger:    ledger,
		store:     store,
		retrier:   retrier,
		publisher: publisher,
		recorder:  recorder,
		idGen:     idGen,
		logger:    logger,
	}
}

// LoadLedger restores the ledger from store. A missing snapshot yields a fresh
// ledger; a snapshot that exists but cannot be read is an error, never an
// empty ledger.
func LoadLedger(ctx context.Context, store SnapshotStore, ids IDGenerator, opts ...domain.Option) (*domain.Ledger, error) {
	state, err := store.Load(ctx)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return domain.NewLedger(ids, opts...), nil
	}
	if err != nil {
		return nil, err
	}

	return domain.RestoreLedger(*state, ids, opts...)
}

// Ledger returns the underlying ledger.
func (uc *LedgerUseCase) Ledger() *domain.Ledger {
	return uc.ledger
}

// CreateAccountInput represents input for opening an account.
type CreateAccountInput struct {
	Owner         string
	PIN           string
	InitialAmount decimal.Decimal
}

// CreateAccount validates the owner and PIN, opens the account and persists.
// When only the save fails the account is returned together with the error.
func (uc *LedgerUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (domain.AccountView, error) {
	if err := domain.ValidateOwner(input.Owner); err != nil {
		uc.recorder.RecordOperation(OpCreateAccount, err)
		return domain.AccountView{}, err
	}
	if err := domain.ValidatePIN(input.PIN); err != nil {
		uc.recorder.RecordOperation(OpCreateAccount, err)
		return domain.AccountView{}, err
	}

	account, err := uc.ledger.CreateAccount(strings.TrimSpace(input.Owner), input.PIN, input.InitialAmount)
	if err != nil {
		uc.recorder.RecordOperation(OpCreateAccount, err)
		return domain.AccountView{}, err
	}

	view := account.View()
	uc.logger.Info().
		Int64("account_id", view.ID).
		Str("initial_amount", view.Balance.StringFixed(2)).
		Msg("account created")
	uc.publish(ctx, domain.EventFromTransaction(domain.EventTypeAccountCreated, view.ID, view.History[0]))

	err = uc.persist(ctx)
	uc.recorder.RecordOperation(OpCreateAccount, err)
	return view, err
}

// GetAccount returns a copy of an account.
func (uc *LedgerUseCase) GetAccount(_ context.Context, id int64) (domain.AccountView, error) {
	account, err := uc.ledger.GetAccount(id)
	if err != nil {
		return domain.AccountView{}, err
	}
	return account.View(), nil
}

// ListAccounts returns copies of every account ordered by number.
func (uc *LedgerUseCase) ListAccounts(_ context.Context) []domain.AccountView {
	accounts := uc.ledger.ListAccounts()
	views := make([]domain.AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, a.View())
	}
	return views
}

// History returns the transaction log of an account.
func (uc *LedgerUseCase) History(_ context.Context, id int64) ([]domain.Transaction, error) {
	account, err := uc.ledger.GetAccount(id)
	if err != nil {
		return nil, err
	}
	return account.History(), nil
}

// VerifyPIN checks pin against the account's PIN.
func (uc *LedgerUseCase) VerifyPIN(_ context.Context, id int64, pin string) (bool, error) {
	return uc.ledger.VerifyPIN(id, pin)
}

// Login authenticates an owner and returns the account with its history.
// Frozen accounts cannot log in.
func (uc *LedgerUseCase) Login(_ context.Context, id int64, pin string) (domain.AccountView, error) {
	view, err := uc.authenticate(id, pin)
	if err == nil && view.Frozen {
		err = domain.ErrFrozen
	}
	uc.recorder.RecordOperation(OpLogin, err)
	if err != nil {
		uc.logger.Warn().Err(err).Int64("account_id", id).Msg("login rejected")
		return domain.AccountView{}, err
	}
	return view, nil
}

// AmountInput represents input for a PIN-authorized single-account movement.
type AmountInput struct {
	AccountID int64
	PIN       string
	Amount    decimal.Decimal
}

// Deposit credits an account after checking its PIN.
func (uc *LedgerUseCase) Deposit(ctx context.Context, input AmountInput) (domain.Transaction, error) {
	return uc.move(ctx, OpDeposit, domain.EventTypeAccountDeposited, input, uc.ledger.Deposit)
}

// Withdraw debits an account after checking its PIN.
func (uc *LedgerUseCase) Withdraw(ctx context.Context, input AmountInput) (domain.Transaction, error) {
	return uc.move(ctx, OpWithdraw, domain.EventTypeAccountWithdrawn, input, uc.ledger.Withdraw)
}

func (uc *LedgerUseCase) move(
	ctx context.Context,
	op, eventType string,
	input AmountInput,
	apply func(int64, decimal.Decimal) (domain.Transaction, error),
) (domain.Transaction, error) {
	if err := uc.checkPIN(input.AccountID, input.PIN); err != nil {
		uc.recorder.RecordOperation(op, err)
		return domain.Transaction{}, err
	}

	tx, err := apply(input.AccountID, input.Amount)
	if err != nil {
		uc.recorder.RecordOperation(op, err)
		return domain.Transaction{}, err
	}

	uc.logger.Info().
		Str("operation", op).
		Int64("account_id", input.AccountID).
		Str("amount", tx.Amount.StringFixed(2)).
		Str("tx_id", tx.ID).
		Msg("balance changed")
	uc.publish(ctx, domain.EventFromTransaction(eventType, input.AccountID, tx))

	err = uc.persist(ctx)
	uc.recorder.RecordOperation(op, err)
	return tx, err
}

// TransferInput represents input for moving money between two accounts.
type TransferInput struct {
	FromAccountID int64
	PIN           string
	ToAccountID   int64
	Amount        decimal.Decimal
}

// Transfer moves money atomically. The PIN of the source account is required.
func (uc *LedgerUseCase) Transfer(ctx context.Context, input TransferInput) (domain.TransferReceipt, error) {
	start := time.Now()

	receipt, err := uc.ledger.Transfer(input.FromAccountID, input.PIN, input.ToAccountID, input.Amount)
	if err != nil {
		uc.recorder.RecordOperation(OpTransfer, err)
		uc.logger.Debug().
			Err(err).
			Int64("from_account_id", input.FromAccountID).
			Int64("to_account_id", input.ToAccountID).
			Msg("transfer rejected")
		return domain.TransferReceipt{}, err
	}
	uc.recorder.RecordTransfer(input.Amount, time.Since(start))

	uc.logger.Info().
		Int64("from_account_id", input.FromAccountID).
		Int64("to_account_id", input.ToAccountID).
		Str("amount", input.Amount.StringFixed(2)).
		Msg("transfer completed")
	uc.publish(ctx, domain.EventFromTransaction(domain.EventTypeTransferCompleted, input.FromAccountID, receipt.Out))

	err = uc.persist(ctx)
	uc.recorder.RecordOperation(OpTransfer, err)
	return receipt, err
}

// Freeze blocks outgoing movements on an account.
func (uc *LedgerUseCase) Freeze(ctx context.Context, id int64) (domain.AccountView, error) {
	return uc.setFrozen(ctx, id, OpFreeze, func() (bool, error) { return true, uc.ledger.Freeze(id) })
}

// Unfreeze lifts a freeze.
func (uc *LedgerUseCase) Unfreeze(ctx context.Context, id int64) (domain.AccountView, error) {
	return uc.setFrozen(ctx, id, OpUnfreeze, func() (bool, error) { return false, uc.ledger.Unfreeze(id) })
}

// ToggleFreeze freezes an active account or unfreezes a frozen one.
func (uc *LedgerUseCase) ToggleFreeze(ctx context.Context, id int64) (domain.AccountView, error) {
	return uc.setFrozen(ctx, id, OpToggleFreeze, func() (bool, error) { return uc.ledger.ToggleFreeze(id) })
}

func (uc *LedgerUseCase) setFrozen(ctx context.Context, id int64, op string, apply func() (bool, error)) (domain.AccountView, error) {
	frozen, err := apply()
	if err != nil {
		uc.recorder.RecordOperation(op, err)
		return domain.AccountView{}, err
	}

	eventType := domain.EventTypeAccountUnfrozen
	if frozen {
		eventType = domain.EventTypeAccountFrozen
	}

	uc.logger.Info().Int64("account_id", id).Bool("frozen", frozen).Msg("account freeze changed")
	uc.publish(ctx, domain.Event{
		ID:         uc.idGen.Generate(),
		Type:       eventType,
		AccountID:  id,
		OccurredAt: time.Now().UTC(),
	})

	err = uc.persist(ctx)
	uc.recorder.RecordOperation(op, err)

	view, getErr := uc.GetAccount(ctx, id)
	if getErr != nil {
		return domain.AccountView{}, getErr
	}
	return view, err
}

// Save writes a snapshot of the current ledger.
func (uc *LedgerUseCase) Save(ctx context.Context) error {
	err := uc.persist(ctx)
	uc.recorder.RecordOperation(OpSave, err)
	return err
}

// Ping checks the snapshot store.
func (uc *LedgerUseCase) Ping(ctx context.Context) error {
	if uc.store == nil {
		return nil
	}
	return uc.store.Ping(ctx)
}

// checkPIN verifies a PIN without copying the account.
func (uc *LedgerUseCase) checkPIN(id int64, pin string) error {
	ok, err := uc.ledger.VerifyPIN(id, pin)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

func (uc *LedgerUseCase) authenticate(id int64, pin string) (domain.AccountView, error) {
	account, err := uc.ledger.GetAccount(id)
	if err != nil {
		return domain.AccountView{}, err
	}
	if !account.VerifyPIN(pin) {
		return domain.AccountView{}, domain.ErrUnauthorized
	}
	return account.View(), nil
}

// persist saves a snapshot taken after the mutation that triggered it. The
// save runs detached from ctx cancellation so an aborted request still leaves
// a durable ledger.
func (uc *LedgerUseCase) persist(ctx context.Context) error {
	if uc.store == nil {
		return nil
	}

	uc.persistMu.Lock()
	defer uc.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultSaveTimeout)
	defer cancel()

	start := time.Now()
	state := uc.ledger.Snapshot()
	save := func() error { return uc.store.Save(ctx, &state) }

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, save)
	} else {
		err = save()
	}
	uc.recorder.RecordSnapshot(time.Since(start), err)

	if err != nil {
		uc.logger.Error().Err(err).Int("accounts", len(state.Accounts)).Msg("failed to save snapshot")
		if !errors.Is(err, domain.ErrIO) {
			err = fmt.Errorf("%w: %w", domain.ErrIO, err)
		}
		return err
	}
	return nil
}

func (uc *LedgerUseCase) publish(ctx context.Context, event domain.Event) {
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("event not published")
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, error)                 {}
func (nopRecorder) RecordTransfer(decimal.Decimal, time.Duration) {}
func (nopRecorder) RecordSnapshot(time.Duration, error)           {}
