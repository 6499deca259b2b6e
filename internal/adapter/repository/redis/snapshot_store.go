package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/pinledger/internal/adapter/repository/snapshot"
	"github.com/iho/pinledger/internal/domain"
)

// SnapshotStore implements usecase.SnapshotStore by keeping the encoded
// snapshot under a single key.
type SnapshotStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(client *redis.Client, key string) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		key:    key,
		now:    time.Now,
	}
}

// Save replaces the stored snapshot. A single SET is atomic, so readers see
// either the previous snapshot or the new one.
func (s *SnapshotStore) Save(ctx context.Context, state *domain.LedgerState) error {
	data, err := snapshot.Encode(state, s.now())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %w", domain.ErrIO, s.key, err)
	}
	return nil
}

// Load returns the stored snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.LedgerState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis key %s", domain.ErrSnapshotNotFound, s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %w", domain.ErrIO, s.key, err)
	}

	return snapshot.Decode(data)
}

// Ping checks the redis connection.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return nil
}
