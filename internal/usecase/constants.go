package usecase

import "time"

const (
	// DefaultSaveTimeout bounds a snapshot save that outlives its request.
	DefaultSaveTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

// Operation names used for metrics and logs.
const (
	OpCreateAccount = "create_account"
	OpDeposit       = "deposit"
	OpWithdraw      = "withdraw"
	OpTransfer      = "transfer"
	OpFreeze        = "freeze"
	OpUnfreeze      = "unfreeze"
	OpToggleFreeze  = "toggle_freeze"
	OpLogin         = "login"
	OpSave          = "save"
)
