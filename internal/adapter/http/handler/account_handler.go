package handler

import (
	"bytes"
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/pinledger/internal/adapter/export"
	"github.com/iho/pinledger/internal/adapter/http/dto"
	"github.com/iho/pinledger/internal/domain"
	"github.com/iho/pinledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (domain.AccountView, error)
	GetAccount(ctx context.Context, id int64) (domain.AccountView, error)
	ListAccounts(ctx context.Context) []domain.AccountView
	Login(ctx context.Context, id int64, pin string) (domain.AccountView, error)
	Deposit(ctx context.Context, input usecase.AmountInput) (domain.Transaction, error)
	Withdraw(ctx context.Context, input usecase.AmountInput) (domain.Transaction, error)
	Freeze(ctx context.Context, id int64) (domain.AccountView, error)
	Unfreeze(ctx context.Context, id int64) (domain.AccountView, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
	logger    zerolog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{accountUC: accountUC, logger: logger}
}

// Create opens a new account.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid amount", err)
		return
	}

	account, err := h.accountUC.CreateAccount(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get retrieves an account by number.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeDomainError(w, "invalid account ID", err)
		return
	}

	account, err := h.accountUC.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists all accounts ordered by number.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts := h.accountUC.ListAccounts(r.Context())

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Total:    int64(len(accounts)),
	})
}

// Login checks the PIN and returns the account with its history.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeDomainError(w, "invalid account ID", err)
		return
	}

	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.accountUC.Login(r.Context(), id, req.PIN)
	if err != nil {
		writeDomainError(w, "login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountWithHistory(account))
}

// Deposit credits an account.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "deposit failed", h.accountUC.Deposit)
}

// Withdraw debits an account.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "withdrawal failed", h.accountUC.Withdraw)
}

func (h *AccountHandler) move(
	w http.ResponseWriter,
	r *http.Request,
	failure string,
	apply func(context.Context, usecase.AmountInput) (domain.Transaction, error),
) {
	id, err := accountIDParam(r)
	if err != nil {
		writeDomainError(w, "invalid account ID", err)
		return
	}

	var req dto.AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(id)
	if err != nil {
		writeDomainError(w, "invalid amount", err)
		return
	}

	tx, err := apply(r.Context(), input)
	if err != nil {
		writeDomainError(w, failure, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

// Freeze blocks outgoing movements on an account.
func (h *AccountHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, "failed to freeze account", h.accountUC.Freeze)
}

// Unfreeze lifts a freeze.
func (h *AccountHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, "failed to unfreeze account", h.accountUC.Unfreeze)
}

func (h *AccountHandler) setFrozen(
	w http.ResponseWriter,
	r *http.Request,
	failure string,
	apply func(context.Context, int64) (domain.AccountView, error),
) {
	id, err := accountIDParam(r)
	if err != nil {
		writeDomainError(w, "invalid account ID", err)
		return
	}

	account, err := apply(r.Context(), id)
	if err != nil {
		writeDomainError(w, failure, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// ExportCSV writes every account as CSV.
func (h *AccountHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, h.accountUC.ListAccounts(r.Context())); err != nil {
		h.logger.Error().Err(err).Msg("csv export failed")
		writeError(w, http.StatusInternalServerError, "failed to export accounts", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="accounts.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
