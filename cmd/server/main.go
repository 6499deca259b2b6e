package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/pinledger/internal/adapter/http"
	"github.com/iho/pinledger/internal/adapter/http/handler"
	"github.com/iho/pinledger/internal/adapter/http/middleware"
	redisRepo "github.com/iho/pinledger/internal/adapter/repository/redis"
	"github.com/iho/pinledger/internal/bootstrap"
	"github.com/iho/pinledger/internal/infrastructure/config"
	"github.com/iho/pinledger/internal/infrastructure/eventpublisher"
	"github.com/iho/pinledger/internal/infrastructure/logger"
	"github.com/iho/pinledger/internal/infrastructure/metrics"
	"github.com/iho/pinledger/internal/usecase"
)

const limiterIdleTimeout = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer res.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Events
	events := eventpublisher.NewEventPublisher(eventpublisher.Config{
		Publisher:  res.EventSink(cfg, log),
		Logger:     log,
		BufferSize: cfg.EventsBuffer,
		OnDrop:     m.RecordEventDropped,
	})
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		_ = events.Start(eventsCtx)
	}()

	// Use cases
	ledgerUC, err := bootstrap.NewLedgerUseCase(ctx, cfg, res, log, bootstrap.LedgerOptions{
		Publisher: events,
		Recorder:  m,
	})
	if err != nil {
		stopEvents()
		<-eventsDone
		return err
	}
	reconciliationUC := usecase.NewReconciliationUseCase(ledgerUC.Ledger())

	// Router
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		stopEvents()
		<-eventsDone
		return err
	}
	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:  handler.NewAccountHandler(ledgerUC, log),
		TransferHandler: handler.NewTransferHandler(ledgerUC),
		LedgerHandler:   handler.NewLedgerHandler(reconciliationUC),
		HealthHandler:   handler.NewHealthHandler(ledgerUC, res.Backend),
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Metrics:         m,
		Logger:          log,
		RateLimiter:     middleware.NewRateLimiter(cfg.PINRateLimit, cfg.PINRateBurst).WithHitCounter(m.RateLimitHits),
		TrustedProxies:  trustedProxies,
	}
	if cfg.IdempotencyEnabled {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(res.RedisClient)
		routerCfg.IdempotencyTTL = cfg.IdempotencyTTL
	}
	go cleanupLimiters(ctx, routerCfg.RateLimiter, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Final snapshot once no request can mutate the ledger any more.
	if err := ledgerUC.Save(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}

	stopEvents()
	<-eventsDone

	log.Info().Int64("events_dropped", events.Dropped()).Msg("server stopped")
	return nil
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter, log zerolog.Logger) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rl.CleanupLimiters(limiterIdleTimeout); removed > 0 {
				log.Debug().Int("removed", removed).Msg("idle rate limiters removed")
			}
		}
	}
}
