package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/pinledger/internal/adapter/repository/snapshot"
	"github.com/iho/pinledger/internal/domain"
)

// DefaultRetain is the number of snapshot rows kept after a save.
const DefaultRetain = 10

const (
	insertSnapshotSQL = `INSERT INTO ledger_snapshots (schema_version, next_id, account_count, saved_at, payload)
VALUES ($1, $2, $3, $4, $5)`
	pruneSnapshotsSQL = `DELETE FROM ledger_snapshots
WHERE id NOT IN (SELECT id FROM ledger_snapshots ORDER BY id DESC LIMIT $1)`
	latestSnapshotSQL = `SELECT payload FROM ledger_snapshots ORDER BY id DESC LIMIT 1`
)

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// SnapshotStore implements usecase.SnapshotStore on a ledger_snapshots table.
// Every save appends a row; Load reads the newest one.
type SnapshotStore struct {
	pool   pgxPool
	retain int
	now    func() time.Time
}

// NewSnapshotStore creates a new SnapshotStore. retain <= 0 keeps DefaultRetain rows.
func NewSnapshotStore(pool *pgxpool.Pool, retain int) *SnapshotStore {
	return newSnapshotStoreWithPool(pool, retain)
}

func newSnapshotStoreWithPool(pool pgxPool, retain int) *SnapshotStore {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &SnapshotStore{
		pool:   pool,
		retain: retain,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save inserts the snapshot and prunes old rows in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, state *domain.LedgerState) (err error) {
	savedAt := s.now()
	data, err := snapshot.Encode(state, savedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrIO, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, insertSnapshotSQL,
		snapshot.SchemaVersion, state.NextID, len(state.Accounts), savedAt, data,
	); err != nil {
		return fmt.Errorf("%w: insert snapshot: %w", domain.ErrIO, err)
	}

	if _, err = tx.Exec(ctx, pruneSnapshotsSQL, s.retain); err != nil {
		return fmt.Errorf("%w: prune snapshots: %w", domain.ErrIO, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrIO, err)
	}
	return nil
}

// Load returns the newest snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.LedgerState, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, latestSnapshotSQL).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: ledger_snapshots is empty", domain.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select snapshot: %w", domain.ErrIO, err)
	}

	return snapshot.Decode(payload)
}

// Ping checks the database connection.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return nil
}
