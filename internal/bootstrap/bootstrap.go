// Package bootstrap opens the backends named by the configuration and builds
// the ledger use case shared by the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	postgresRepo "github.com/iho/pinledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/pinledger/internal/adapter/repository/redis"
	"github.com/iho/pinledger/internal/adapter/repository/snapshot"
	"github.com/iho/pinledger/internal/infrastructure/config"
	"github.com/iho/pinledger/internal/infrastructure/eventpublisher"
	"github.com/iho/pinledger/internal/infrastructure/idgen"
	"github.com/iho/pinledger/internal/infrastructure/postgres"
	"github.com/iho/pinledger/internal/infrastructure/redis"
	"github.com/iho/pinledger/internal/infrastructure/retry"
	"github.com/iho/pinledger/internal/usecase"
)

// Resources holds the connections opened for a configuration.
type Resources struct {
	Store       usecase.SnapshotStore
	Backend     string
	RedisClient *goredis.Client
	Pool        *pgxpool.Pool

	closers []func()
}

// Open connects to every backend cfg needs and builds the snapshot store.
// On error everything opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (res *Resources, err error) {
	res = &Resources{Backend: cfg.SnapshotBackend}
	defer func() {
		if err != nil {
			res.Close()
			res = nil
		}
	}()

	if cfg.NeedsRedis() {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return res, fmt.Errorf("connect to redis: %w", err)
		}
		res.RedisClient = client
		res.closers = append(res.closers, func() { client.Close() })
		logger.Info().Msg("connected to redis")
	}

	switch cfg.SnapshotBackend {
	case config.SnapshotBackendFile:
		res.Store = snapshot.NewFileStore(cfg.SnapshotPath)

	case config.SnapshotBackendRedis:
		res.Store = redisRepo.NewSnapshotStore(res.RedisClient, cfg.SnapshotRedisKey)

	case config.SnapshotBackendPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return res, err
		}
		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return res, fmt.Errorf("connect to postgres: %w", err)
		}
		res.Pool = pool
		res.closers = append(res.closers, pool.Close)
		res.Store = postgresRepo.NewSnapshotStore(pool, postgresRepo.DefaultRetain)
		logger.Info().Msg("connected to postgres")

	default:
		return res, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}

	logger.Info().Str("backend", cfg.SnapshotBackend).Msg("snapshot store ready")
	return res, nil
}

// Close releases connections in reverse order of opening.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// EventSink returns the publisher named by cfg.EventsBackend.
func (r *Resources) EventSink(cfg *config.Config, logger zerolog.Logger) eventpublisher.Publisher {
	switch cfg.EventsBackend {
	case config.EventsBackendRedis:
		return eventpublisher.NewRedisPublisher(r.RedisClient, cfg.EventsChannel)
	case config.EventsBackendNone:
		return eventpublisher.NopPublisher{}
	default:
		return eventpublisher.NewLogPublisher(logger)
	}
}

// LedgerOptions are the optional collaborators of the ledger use case.
type LedgerOptions struct {
	Publisher usecase.EventPublisher
	Recorder  usecase.Recorder
}

// NewLedgerUseCase restores the ledger from the store and wraps it in a use
// case that saves through a retrier. A corrupt snapshot is returned as an
// error and never replaced by an empty ledger.
func NewLedgerUseCase(
	ctx context.Context,
	cfg *config.Config,
	res *Resources,
	logger zerolog.Logger,
	opts LedgerOptions,
) (*usecase.LedgerUseCase, error) {
	ids := idgen.NewULIDGenerator()

	ledger, err := usecase.LoadLedger(ctx, res.Store, ids)
	if err != nil {
		return nil, fmt.Errorf("load ledger from %s backend: %w", res.Backend, err)
	}

	logger.Info().
		Int("accounts", len(ledger.ListAccounts())).
		Int64("next_id", ledger.NextID()).
		Msg("ledger loaded")

	return usecase.NewLedgerUseCase(
		ledger,
		res.Store,
		retry.NewRetrier(cfg.SaveMaxRetries, logger),
		opts.Publisher,
		opts.Recorder,
		ids,
		logger,
	), nil
}
