package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/pinledger/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when balances disagree with history.
	ErrInconsistentLedger = errors.New("ledger is inconsistent")
)

// ReconciliationUseCase checks balances against transaction histories.
type ReconciliationUseCase struct {
	source LedgerStateSource
	now    func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(source LedgerStateSource) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ReconciliationResult is the outcome for one account.
type ReconciliationResult struct {
	AccountID         int64
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts       int
	ReconciledAccounts  int
	Discrepancies       []*ReconciliationResult
	TotalBalance        decimal.Decimal
	TotalTransferredIn  decimal.Decimal
	TotalTransferredOut decimal.Decimal
	LedgerConsistent    bool
	CheckedAt           time.Time
}

// ReconcileAccount replays one account's history against its balance.
func (uc *ReconciliationUseCase) ReconcileAccount(_ context.Context, accountID int64) (*ReconciliationResult, error) {
	state := uc.source.Snapshot()
	for _, a := range state.Accounts {
		if a.ID == accountID {
			return reconcile(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

// GenerateReconciliationReport reconciles every account from one consistent
// snapshot. An account is reconciled when its balance equals the replay of
// its history and is not negative; the ledger is consistent when every
// account is reconciled and transfers in and out sum to the same amount.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(_ context.Context) (*ReconciliationReport, error) {
	state := uc.source.Snapshot()

	report := &ReconciliationReport{
		TotalAccounts:       len(state.Accounts),
		Discrepancies:       make([]*ReconciliationResult, 0),
		TotalBalance:        state.TotalBalance(),
		TotalTransferredIn:  decimal.Zero,
		TotalTransferredOut: decimal.Zero,
		CheckedAt:           uc.now(),
	}

	for _, a := range state.Accounts {
		result := reconcile(a)
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}

		for _, tx := range a.History {
			switch tx.Kind {
			case domain.TxTransferIn:
				report.TotalTransferredIn = report.TotalTransferredIn.Add(tx.Amount)
			case domain.TxTransferOut:
				report.TotalTransferredOut = report.TotalTransferredOut.Add(tx.Amount)
			}
		}
	}

	report.LedgerConsistent = len(report.Discrepancies) == 0 &&
		report.TotalTransferredIn.Equal(report.TotalTransferredOut)

	return report, nil
}

// CheckLedgerConsistency returns ErrInconsistentLedger describing the first
// problem found, or nil.
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	report, err := uc.GenerateReconciliationReport(ctx)
	if err != nil {
		return err
	}

	if len(report.Discrepancies) > 0 {
		d := report.Discrepancies[0]
		return fmt.Errorf(
			"%w: account %d recorded=%s calculated=%s",
			ErrInconsistentLedger,
			d.AccountID,
			d.RecordedBalance.String(),
			d.CalculatedBalance.String(),
		)
	}

	if !report.TotalTransferredIn.Equal(report.TotalTransferredOut) {
		return fmt.Errorf(
			"%w: transferred in=%s out=%s",
			ErrInconsistentLedger,
			report.TotalTransferredIn.String(),
			report.TotalTransferredOut.String(),
		)
	}

	return nil
}

func reconcile(a domain.AccountState) *ReconciliationResult {
	calculated := decimal.Zero
	for _, tx := range a.History {
		calculated = calculated.Add(tx.SignedAmount())
	}

	return &ReconciliationResult{
		AccountID:         a.ID,
		RecordedBalance:   a.Balance,
		CalculatedBalance: calculated,
		Difference:        a.Balance.Sub(calculated),
		IsReconciled:      a.Balance.Equal(calculated) && !a.Balance.IsNegative(),
	}
}
