package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/pinledger/internal/domain"
)

// SnapshotStore persists the full ledger state.
type SnapshotStore interface {
	// Save replaces the stored snapshot with state.
	Save(ctx context.Context, state *domain.LedgerState) error
	// Load returns the stored snapshot, or domain.ErrSnapshotNotFound when
	// none has ever been saved.
	Load(ctx context.Context) (*domain.LedgerState, error)
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// EventPublisher delivers ledger events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Retrier retries transient failures of an operation.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Recorder records operational metrics.
type Recorder interface {
	RecordOperation(operation string, err error)
	RecordTransfer(amount decimal.Decimal, duration time.Duration)
	RecordSnapshot(duration time.Duration, err error)
}

// LedgerStateSource yields a consistent copy of the ledger state.
type LedgerStateSource interface {
	Snapshot() domain.LedgerState
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release removes a key so the request can be retried.
	Release(ctx context.Context, key string) error
}
