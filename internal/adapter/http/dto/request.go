package dto

import (
	"github.com/iho/pinledger/internal/domain"
	"github.com/iho/pinledger/internal/usecase"
)

// CreateAccountRequest represents a request to open an account.
type CreateAccountRequest struct {
	Owner         string `json:"owner"`
	PIN           string `json:"pin"`
	InitialAmount string `json:"initial_amount"`
}

// ToUseCaseInput converts to use case input. An omitted initial amount is zero.
func (r *CreateAccountRequest) ToUseCaseInput() (usecase.CreateAccountInput, error) {
	input := usecase.CreateAccountInput{
		Owner: r.Owner,
		PIN:   r.PIN,
	}
	if r.InitialAmount == "" {
		return input, nil
	}

	amount, err := domain.ParseAmount(r.InitialAmount)
	if err != nil {
		return usecase.CreateAccountInput{}, err
	}
	input.InitialAmount = amount
	return input, nil
}

// LoginRequest carries the PIN of the account being opened.
type LoginRequest struct {
	PIN string `json:"pin"`
}

// AmountRequest represents a deposit or withdrawal.
type AmountRequest struct {
	PIN    string `json:"pin"`
	Amount string `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *AmountRequest) ToUseCaseInput(accountID int64) (usecase.AmountInput, error) {
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return usecase.AmountInput{}, err
	}
	return usecase.AmountInput{
		AccountID: accountID,
		PIN:       r.PIN,
		Amount:    amount,
	}, nil
}

// CreateTransferRequest represents a request to create a transfer.
type CreateTransferRequest struct {
	FromAccountID int64  `json:"from_account_id"`
	PIN           string `json:"pin"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransferRequest) ToUseCaseInput() (usecase.TransferInput, error) {
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return usecase.TransferInput{}, err
	}
	return usecase.TransferInput{
		FromAccountID: r.FromAccountID,
		PIN:           r.PIN,
		ToAccountID:   r.ToAccountID,
		Amount:        amount,
	}, nil
}
