package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/bankito/internal/adapter/http/handler"
	"github.com/iho/bankito/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AuthHandler     *handler.AuthHandler
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	LedgerHandler   *handler.LedgerHandler
	HealthHandler   *handler.HealthHandler
	Tokens          middleware.TokenVerifier

	// Optional
	Idempotency    *middleware.IdempotencyMiddleware
	RateLimiter    *middleware.RateLimiter
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Limit)
			}
			r.Post("/login", cfg.AuthHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.Tokens))

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", cfg.AccountHandler.List)
				r.Get("/{name}/transactions", cfg.AccountHandler.ListTransactions)
				r.Get("/{name}/transfers", cfg.AccountHandler.ListTransfers)
			})

			r.Route("/transfers", func(r chi.Router) {
				// Idempotency keys are scoped to the authenticated user
				if cfg.Idempotency != nil {
					r.Use(cfg.Idempotency.Wrap)
				}
				r.Post("/", cfg.TransferHandler.Create)
			})

			r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)
		})
	})

	return r
}
