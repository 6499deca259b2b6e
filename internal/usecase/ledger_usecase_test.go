package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/pinledger/internal/domain"
	"github.com/iho/pinledger/internal/usecase"
	"github.com/iho/pinledger/internal/usecase/mocks"
)

type seqIDs struct {
	n atomic.Int64
}

func (s *seqIDs) Generate() string {
	return fmt.Sprintf("id-%d", s.n.Add(1))
}

// memoryStore is a SnapshotStore that keeps the last saved state.
type memoryStore struct {
	mu    sync.Mutex
	state *domain.LedgerState
	saves int
	err   error
}

func (s *memoryStore) Save(_ context.Context, state *domain.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	copied := *state
	s.state = &copied
	s.saves++
	return nil
}

func (s *memoryStore) Load(context.Context) (*domain.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return s.state, nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) last() *domain.LedgerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newUseCase(store usecase.SnapshotStore) *usecase.LedgerUseCase {
	ids := &seqIDs{}
	return usecase.NewLedgerUseCase(domain.NewLedger(ids), store, nil, nil, nil, ids, zerolog.Nop())
}

func createAccount(t *testing.T, uc *usecase.LedgerUseCase, owner, pin, initial string) domain.AccountView {
	t.Helper()
	view, err := uc.CreateAccount(context.Background(), usecase.CreateAccountInput{
		Owner:         owner,
		PIN:           pin,
		InitialAmount: amount(initial),
	})
	require.NoError(t, err)
	return view
}

func TestLedgerUseCase_CreateAccount_PersistsAndPublishes(t *testing.T) {
	ctrl := gomock.NewController(t)

	store := mocks.NewMockSnapshotStore(ctrl)
	publisher := mocks.NewMockEventPublisher(ctrl)
	recorder := mocks.NewMockRecorder(ctrl)

	var saved domain.LedgerState
	store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.LedgerState) error {
			saved = *state
			return nil
		})
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.Event) error {
			assert.Equal(t, domain.EventTypeAccountCreated, event.Type)
			assert.Equal(t, domain.FirstAccountID, event.AccountID)
			assert.True(t, event.Amount.Equal(amount("100")))
			return nil
		})
	recorder.EXPECT().RecordSnapshot(gomock.Any(), nil)
	recorder.EXPECT().RecordOperation(usecase.OpCreateAccount, nil)

	ids := &seqIDs{}
	uc := usecase.NewLedgerUseCase(domain.NewLedger(ids), store, nil, publisher, recorder, ids, zerolog.Nop())

	view, err := uc.CreateAccount(context.Background(), usecase.CreateAccountInput{
		Owner:         "  Alice ",
		PIN:           "1234",
		InitialAmount: amount("100.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Alice", view.Owner)
	assert.True(t, view.Balance.Equal(amount("100")))
	require.Len(t, view.History, 1)
	assert.Equal(t, domain.NoteInitialDeposit, view.History[0].Note)

	require.Len(t, saved.Accounts, 1)
	assert.Equal(t, view.ID, saved.Accounts[0].ID)
	assert.Equal(t, domain.HashPIN("1234"), saved.Accounts[0].PINHash)
	assert.Equal(t, domain.FirstAccountID+1, saved.NextID)
}

func TestLedgerUseCase_CreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   usecase.CreateAccountInput
		wantErr error
	}{
		{"empty owner", usecase.CreateAccountInput{Owner: " ", PIN: "1234"}, domain.ErrInvalidOwner},
		{"short PIN", usecase.CreateAccountInput{Owner: "Alice", PIN: "123"}, domain.ErrInvalidPIN},
		{"letters in PIN", usecase.CreateAccountInput{Owner: "Alice", PIN: "12ab"}, domain.ErrInvalidPIN},
		{"negative initial", usecase.CreateAccountInput{Owner: "Alice", PIN: "1234", InitialAmount: amount("-1")}, domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No Save expectation: a rejected request must not persist.
			store := mocks.NewMockSnapshotStore(ctrl)
			uc := newUseCase(store)

			_, err := uc.CreateAccount(context.Background(), tt.input)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, uc.ListAccounts(context.Background()))
		})
	}
}

func TestLedgerUseCase_Walkthrough(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	uc := newUseCase(store)

	alice := createAccount(t, uc, "Alice", "1234", "100.00")

	_, err := uc.Withdraw(ctx, usecase.AmountInput{AccountID: alice.ID, PIN: "1234", Amount: amount("30")})
	require.NoError(t, err)

	_, err = uc.Withdraw(ctx, usecase.AmountInput{AccountID: alice.ID, PIN: "1234", Amount: amount("1000")})
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	bob := createAccount(t, uc, "Bob", "5678", "0")
	receipt, err := uc.Transfer(ctx, usecase.TransferInput{
		FromAccountID: alice.ID,
		PIN:           "1234",
		ToAccountID:   bob.ID,
		Amount:        amount("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxTransferOut, receipt.Out.Kind)

	_, err = uc.Freeze(ctx, alice.ID)
	require.NoError(t, err)

	_, err = uc.Deposit(ctx, usecase.AmountInput{AccountID: alice.ID, PIN: "1234", Amount: amount("10")})
	assert.ErrorIs(t, err, domain.ErrFrozen)

	_, err = uc.Transfer(ctx, usecase.TransferInput{FromAccountID: alice.ID, PIN: "0000", ToAccountID: bob.ID, Amount: amount("1")})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	aliceView, err := uc.GetAccount(ctx, alice.ID)
	require.NoError(t, err)
	bobView, err := uc.GetAccount(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, aliceView.Balance.Equal(amount("20")))
	assert.True(t, bobView.Balance.Equal(amount("50")))
	assert.True(t, aliceView.Frozen)

	// create, withdraw, create, transfer, freeze
	assert.Equal(t, 5, store.saves)
	saved := store.last()
	require.NotNil(t, saved)
	assert.True(t, saved.TotalBalance().Equal(amount("70")))
	assert.True(t, saved.Accounts[0].Frozen)
}

func TestLedgerUseCase_MovementRequiresPIN(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSnapshotStore(ctrl)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	uc := newUseCase(store)
	acc := createAccount(t, uc, "Alice", "1234", "10")

	_, err := uc.Deposit(ctx, usecase.AmountInput{AccountID: acc.ID, PIN: "9999", Amount: amount("5")})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.Withdraw(ctx, usecase.AmountInput{AccountID: acc.ID, PIN: "9999", Amount: amount("5")})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.Deposit(ctx, usecase.AmountInput{AccountID: 42, PIN: "1234", Amount: amount("5")})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	view, err := uc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(amount("10")))
}

func TestLedgerUseCase_MovementChecksPINBeforeFreeze(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(nil)
	acc := createAccount(t, uc, "Alice", "1234", "10")

	tx, err := uc.Deposit(ctx, usecase.AmountInput{AccountID: acc.ID, PIN: "1234", Amount: amount("5")})
	require.NoError(t, err)
	assert.Equal(t, domain.TxDeposit, tx.Kind)

	_, err = uc.Freeze(ctx, acc.ID)
	require.NoError(t, err)

	_, err = uc.Withdraw(ctx, usecase.AmountInput{AccountID: acc.ID, PIN: "9999", Amount: amount("1")})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.Withdraw(ctx, usecase.AmountInput{AccountID: acc.ID, PIN: "1234", Amount: amount("0")})
	assert.ErrorIs(t, err, domain.ErrFrozen)

	history, err := uc.History(ctx, acc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestLedgerUseCase_SaveFailureKeepsMutation(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
	}{
		{"io error", fmt.Errorf("%w: disk full", domain.ErrIO)},
		{"foreign error is reported as io", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := &memoryStore{}
			uc := newUseCase(store)
			acc := createAccount(t, uc, "Alice", "1234", "10")

			store.err = tt.storeErr
			tx, err := uc.Deposit(ctx, usecase.AmountInput{AccountID: acc.ID, PIN: "1234", Amount: amount("5")})

			assert.Equal(t, domain.KindIO, domain.KindOf(err))
			assert.Equal(t, domain.TxDeposit, tx.Kind)

			view, getErr := uc.GetAccount(ctx, acc.ID)
			require.NoError(t, getErr)
			assert.True(t, view.Balance.Equal(amount("15")), "mutation must stay applied")

			store.err = nil
			require.NoError(t, uc.Save(ctx))
			assert.True(t, store.last().Accounts[0].Balance.Equal(amount("15")))
		})
	}
}

func TestLedgerUseCase_SaveGoesThroughRetrier(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSnapshotStore(ctrl)
	retrier := mocks.NewMockRetrier(ctrl)

	gomock.InOrder(
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(domain.ErrIO),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)
	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, op func() error) error {
			if err := op(); err != nil {
				return op()
			}
			return nil
		})

	ids := &seqIDs{}
	uc := usecase.NewLedgerUseCase(domain.NewLedger(ids), store, retrier, nil, nil, ids, zerolog.Nop())

	_, err := uc.CreateAccount(context.Background(), usecase.CreateAccountInput{Owner: "Alice", PIN: "1234"})
	assert.NoError(t, err)
}

func TestLedgerUseCase_Login(t *testing.T) {
	ctx := context.Background()
	uc := newUseCase(nil)
	acc := createAccount(t, uc, "Alice", "1234", "10")

	view, err := uc.Login(ctx, acc.ID, "1234")
	require.NoError(t, err)
	assert.Len(t, view.History, 1)

	_, err = uc.Login(ctx, acc.ID, "4321")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.Login(ctx, 1, "1234")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = uc.Freeze(ctx, acc.ID)
	require.NoError(t, err)
	_, err = uc.Login(ctx, acc.ID, "1234")
	assert.ErrorIs(t, err, domain.ErrFrozen)

	ok, err := uc.VerifyPIN(ctx, acc.ID, "1234")
	require.NoError(t, err)
	assert.True(t, ok, "PIN still verifies on a frozen account")
}

func TestLedgerUseCase_ToggleFreeze(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)

	var types []string
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.Event) error {
			types = append(types, event.Type)
			return nil
		}).Times(3)

	ids := &seqIDs{}
	uc := usecase.NewLedgerUseCase(domain.NewLedger(ids), nil, nil, publisher, nil, ids, zerolog.Nop())
	acc := createAccount(t, uc, "Alice", "1234", "10")

	view, err := uc.ToggleFreeze(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, view.Frozen)

	view, err = uc.ToggleFreeze(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, view.Frozen)

	_, err = uc.ToggleFreeze(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	assert.Equal(t, []string{
		domain.EventTypeAccountCreated,
		domain.EventTypeAccountFrozen,
		domain.EventTypeAccountUnfrozen,
	}, types)
}

func TestLedgerUseCase_ToggleFreezeRecordsToggleOperation(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)

	gomock.InOrder(
		recorder.EXPECT().RecordOperation(usecase.OpCreateAccount, nil),
		recorder.EXPECT().RecordOperation(usecase.OpToggleFreeze, gomock.Any()).Do(
			func(_ string, err error) {
				assert.ErrorIs(t, err, domain.ErrAccountNotFound)
			}),
		recorder.EXPECT().RecordOperation(usecase.OpToggleFreeze, nil),
		recorder.EXPECT().RecordOperation(usecase.OpToggleFreeze, nil),
	)

	ids := &seqIDs{}
	uc := usecase.NewLedgerUseCase(domain.NewLedger(ids), nil, nil, nil, recorder, ids, zerolog.Nop())
	acc := createAccount(t, uc, "Alice", "1234", "10")

	_, err := uc.ToggleFreeze(ctx, 7)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	view, err := uc.ToggleFreeze(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, view.Frozen)

	view, err = uc.ToggleFreeze(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, view.Frozen)
}

func TestLedgerUseCase_PublishFailureDoesNotFailOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("queue full")).AnyTimes()

	ids := &seqIDs{}
	uc := usecase.NewLedgerUseCase(domain.NewLedger(ids), nil, nil, publisher, nil, ids, zerolog.Nop())

	_, err := uc.CreateAccount(context.Background(), usecase.CreateAccountInput{Owner: "Alice", PIN: "1234"})
	assert.NoError(t, err)
}

func TestLedgerUseCase_ConcurrentMutationsLastSaveWins(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	uc := newUseCase(store)
	a := createAccount(t, uc, "A", "1111", "1000")
	b := createAccount(t, uc, "B", "2222", "1000")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = uc.Transfer(ctx, usecase.TransferInput{FromAccountID: a.ID, PIN: "1111", ToAccountID: b.ID, Amount: amount("2")})
		}()
		go func() {
			defer wg.Done()
			_, _ = uc.Deposit(ctx, usecase.AmountInput{AccountID: b.ID, PIN: "2222", Amount: amount("1")})
		}()
	}
	wg.Wait()

	saved := store.last()
	require.NotNil(t, saved)
	live := uc.Ledger().Snapshot()
	assert.True(t, saved.TotalBalance().Equal(live.TotalBalance()))
	assert.True(t, saved.TotalBalance().Equal(amount("2050")))
	assert.Equal(t, 102, store.saves)
}

func TestLoadLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("missing snapshot gives a fresh ledger", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockSnapshotStore(ctrl)
		store.EXPECT().Load(gomock.Any()).Return(nil, fmt.Errorf("open: %w", domain.ErrSnapshotNotFound))

		ledger, err := usecase.LoadLedger(ctx, store, &seqIDs{})
		require.NoError(t, err)
		assert.Empty(t, ledger.ListAccounts())
		assert.Equal(t, domain.FirstAccountID, ledger.NextID())
	})

	t.Run("corrupt snapshot is an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockSnapshotStore(ctrl)
		store.EXPECT().Load(gomock.Any()).Return(nil, fmt.Errorf("%w: bad json", domain.ErrCorruptData))

		ledger, err := usecase.LoadLedger(ctx, store, &seqIDs{})
		assert.Nil(t, ledger)
		assert.Equal(t, domain.KindCorruptData, domain.KindOf(err))
	})

	t.Run("invalid state is corrupt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockSnapshotStore(ctrl)
		store.EXPECT().Load(gomock.Any()).Return(&domain.LedgerState{NextID: 0}, nil)

		_, err := usecase.LoadLedger(ctx, store, &seqIDs{})
		assert.ErrorIs(t, err, domain.ErrCorruptData)
	})

	t.Run("saved ledger is restored", func(t *testing.T) {
		store := &memoryStore{}
		uc := newUseCase(store)
		acc := createAccount(t, uc, "Alice", "1234", "42.42")

		ledger, err := usecase.LoadLedger(ctx, store, &seqIDs{})
		require.NoError(t, err)
		restored, err := ledger.GetAccount(acc.ID)
		require.NoError(t, err)
		assert.True(t, restored.Balance().Equal(amount("42.42")))
		assert.True(t, restored.VerifyPIN("1234"))
	})
}
