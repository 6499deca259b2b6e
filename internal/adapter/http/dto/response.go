package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/pinledger/internal/domain"
	"github.com/iho/pinledger/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        int64                 `json:"id"`
	Owner     string                `json:"owner"`
	Balance   decimal.Decimal       `json:"balance"`
	Frozen    bool                  `json:"frozen"`
	CreatedAt time.Time             `json:"created_at"`
	History   []TransactionResponse `json:"history,omitempty"`
}

// AccountFromDomain converts an account view to a response without history.
func AccountFromDomain(a domain.AccountView) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Owner:     a.Owner,
		Balance:   a.Balance,
		Frozen:    a.Frozen,
		CreatedAt: a.CreatedAt,
	}
}

// AccountWithHistory converts an account view to a response including history.
func AccountWithHistory(a domain.AccountView) *AccountResponse {
	resp := AccountFromDomain(a)
	resp.History = TransactionsFromDomain(a.History)
	return resp
}

// AccountsFromDomain converts account views to responses.
func AccountsFromDomain(accounts []domain.AccountView) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a list of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// TransactionResponse represents one history entry.
type TransactionResponse struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note"`
	Counterparty int64           `json:"counterparty,omitempty"`
}

// TransactionFromDomain converts a transaction to a response.
func TransactionFromDomain(tx domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           tx.ID,
		Timestamp:    tx.Timestamp,
		Kind:         string(tx.Kind),
		Amount:       tx.Amount,
		Note:         tx.Note,
		Counterparty: tx.Counterparty,
	}
}

// TransactionsFromDomain converts transactions to responses.
func TransactionsFromDomain(txs []domain.Transaction) []TransactionResponse {
	result := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		result[i] = TransactionFromDomain(tx)
	}
	return result
}

// TransferResponse represents both halves of a transfer.
type TransferResponse struct {
	FromAccountID int64               `json:"from_account_id"`
	ToAccountID   int64               `json:"to_account_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Out           TransactionResponse `json:"out"`
	In            TransactionResponse `json:"in"`
}

// TransferFromDomain converts a transfer receipt to a response.
func TransferFromDomain(from, to int64, r domain.TransferReceipt) *TransferResponse {
	return &TransferResponse{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        r.Out.Amount,
		Out:           TransactionFromDomain(r.Out),
		In:            TransactionFromDomain(r.In),
	}
}

// DiscrepancyResponse describes an account whose balance disagrees with its history.
type DiscrepancyResponse struct {
	AccountID         int64           `json:"account_id"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
}

// ConsistencyResponse represents a reconciliation report.
type ConsistencyResponse struct {
	Status              string                `json:"status"`
	Consistent          bool                  `json:"consistent"`
	TotalAccounts       int                   `json:"total_accounts"`
	ReconciledAccounts  int                   `json:"reconciled_accounts"`
	TotalBalance        decimal.Decimal       `json:"total_balance"`
	TotalTransferredIn  decimal.Decimal       `json:"total_transferred_in"`
	TotalTransferredOut decimal.Decimal       `json:"total_transferred_out"`
	Discrepancies       []DiscrepancyResponse `json:"discrepancies"`
	CheckedAt           time.Time             `json:"checked_at"`
}

// ConsistencyFromReport converts a reconciliation report to a response.
func ConsistencyFromReport(r *usecase.ReconciliationReport) *ConsistencyResponse {
	status := "consistent"
	if !r.LedgerConsistent {
		status = "inconsistent"
	}

	discrepancies := make([]DiscrepancyResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = DiscrepancyResponse{
			AccountID:         d.AccountID,
			RecordedBalance:   d.RecordedBalance,
			CalculatedBalance: d.CalculatedBalance,
			Difference:        d.Difference,
		}
	}

	return &ConsistencyResponse{
		Status:              status,
		Consistent:          r.LedgerConsistent,
		TotalAccounts:       r.TotalAccounts,
		ReconciledAccounts:  r.ReconciledAccounts,
		TotalBalance:        r.TotalBalance,
		TotalTransferredIn:  r.TotalTransferredIn,
		TotalTransferredOut: r.TotalTransferredOut,
		Discrepancies:       discrepancies,
		CheckedAt:           r.CheckedAt,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}
