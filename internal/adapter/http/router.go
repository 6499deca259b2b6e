package http

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/pinledger/internal/adapter/http/handler"
	"github.com/iho/pinledger/internal/adapter/http/middleware"
	"github.com/iho/pinledger/internal/infrastructure/metrics"
	"github.com/iho/pinledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	LedgerHandler   *handler.LedgerHandler
	HealthHandler   *handler.HealthHandler
	MetricsHandler  http.Handler
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger

	// Optional; nil disables the feature.
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter

	// Peers allowed to set X-Forwarded-For and X-Real-IP. Empty means none.
	TrustedProxies []*net.IPNet
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.TrustedRealIP(cfg.TrustedProxies))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	passthrough := func(next http.Handler) http.Handler { return next }

	// PIN-bearing routes are rate limited per client
	pinLimit := passthrough
	if cfg.RateLimiter != nil {
		pinLimit = cfg.RateLimiter.Limit
	}

	// Mutations accept an Idempotency-Key. Login is left out: a replay would
	// hand back the account and its history without checking the PIN.
	idempotent := passthrough
	if cfg.IdempotencyStore != nil {
		idempotent = middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.With(pinLimit, idempotent).Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/export.csv", cfg.AccountHandler.ExportCSV)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.With(pinLimit).Post("/{id}/login", cfg.AccountHandler.Login)
			r.With(pinLimit, idempotent).Post("/{id}/deposit", cfg.AccountHandler.Deposit)
			r.With(pinLimit, idempotent).Post("/{id}/withdraw", cfg.AccountHandler.Withdraw)
			r.With(idempotent).Post("/{id}/freeze", cfg.AccountHandler.Freeze)
			r.With(idempotent).Post("/{id}/unfreeze", cfg.AccountHandler.Unfreeze)
		})

		// Transfers
		r.With(pinLimit, idempotent).Post("/transfers", cfg.TransferHandler.Create)

		// Ledger
		r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)
	})

	return r
}
