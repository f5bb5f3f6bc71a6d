package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httpAdapter "github.com/iho/bankito/internal/adapter/http"
	"github.com/iho/bankito/internal/adapter/http/handler"
	"github.com/iho/bankito/internal/adapter/http/middleware"
	redisRepo "github.com/iho/bankito/internal/adapter/repository/redis"
	"github.com/iho/bankito/internal/infrastructure/auth"
	"github.com/iho/bankito/internal/infrastructure/redis"
)

const (
	loginRatePerSecond = 1
	loginBurst         = 5
	visitorIdleTimeout = 10 * time.Minute
)

func serveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, one database session per request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	logger := c.logger(cfg)

	a, err := newApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := a.sessionFactory()
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	limiter := middleware.NewRateLimiter(loginRatePerSecond, loginBurst)

	checks := []handler.ReadinessCheck{{Name: "postgres", Ping: a.pool.Ping}}

	routerCfg := httpAdapter.RouterConfig{
		AuthHandler:     handler.NewAuthHandler(sessions, tokens, a.metrics),
		AccountHandler:  handler.NewAccountHandler(sessions),
		TransferHandler: handler.NewTransferHandler(sessions),
		LedgerHandler:   handler.NewLedgerHandler(sessions),
		Tokens:          tokens,
		RateLimiter:     limiter,
		MetricsHandler:  promhttp.Handler(),
		Logger:          logger,
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	switch {
	case errors.Is(err, redis.ErrDisabled):
		logger.Warn().Msg("REDIS_URL is empty, Idempotency-Key headers are ignored")
	case err != nil:
		return fmt.Errorf("failed to connect to redis: %w", err)
	default:
		defer redisClient.Close()
		logger.Info().Msg("connected to redis")

		store := redisRepo.NewIdempotencyStore(redisClient)
		routerCfg.Idempotency = middleware.NewIdempotencyMiddleware(store, cfg.IdempotencyTTL, a.metrics, logger)
		checks = append(checks, handler.ReadinessCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	routerCfg.HealthHandler = handler.NewHealthHandler(checks...)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		ticker := time.NewTicker(visitorIdleTimeout)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(visitorIdleTimeout)
			}
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("isolation", a.isolation.String()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")

	return nil
}
