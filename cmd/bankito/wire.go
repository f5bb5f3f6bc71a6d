package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/bankito/internal/adapter/http/handler"
	pgrepo "github.com/iho/bankito/internal/adapter/repository/postgres"
	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/infrastructure/auth"
	"github.com/iho/bankito/internal/infrastructure/config"
	"github.com/iho/bankito/internal/infrastructure/metrics"
	"github.com/iho/bankito/internal/infrastructure/postgres"
	"github.com/iho/bankito/internal/usecase"
)

// app holds the process-wide resources every session shares.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	metrics   *metrics.Metrics
	isolation domain.IsolationLevel
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*app, error) {
	isolation, err := domain.ParseIsolationLevel(cfg.IsolationLevel)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(connectCtx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logger.Debug().Int("max_conns", cfg.DatabaseMaxConns).Msg("connected to postgres")

	return &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		metrics:   metrics.New(reg),
		isolation: isolation,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// bank is one client session over its own database connection.
type bank struct {
	*usecase.BankSession
	*usecase.LedgerUseCase
	conn *pgrepo.Session
}

func (b *bank) Close(ctx context.Context) {
	b.conn.Close(ctx)
}

// openBank acquires a connection and builds a bank session on top of it.
func (a *app) openBank(ctx context.Context) (*bank, error) {
	conn, err := pgrepo.NewSession(ctx, a.pool,
		pgrepo.WithSessionLogger(a.logger),
		pgrepo.WithSessionMetrics(a.metrics),
		pgrepo.WithIsolation(a.isolation),
	)
	if err != nil {
		return nil, err
	}

	deps := usecase.BankSessionDeps{
		TxManager:  conn,
		Isolation:  conn,
		Accounts:   pgrepo.NewAccountRepository(conn),
		Entries:    pgrepo.NewEntryRepository(conn),
		Users:      pgrepo.NewUserRepository(conn),
		References: pgrepo.NewUUIDGenerator(),
		Passwords:  auth.NewBcryptVerifier(),
		Pause:      usecase.SleepPause(a.cfg.TransferPause),
		Metrics:    a.metrics,
		Logger:     a.logger,
	}

	if a.cfg.TransferMaxRetries > 0 {
		deps.Retrier = pgrepo.NewRetrier(a.cfg.TransferMaxRetries, a.logger)
	}

	return &bank{
		BankSession:   usecase.NewBankSession(deps),
		LedgerUseCase: usecase.NewLedgerUseCase(pgrepo.NewLedgerRepository(conn)),
		conn:          conn,
	}, nil
}

// sessionFactory opens one bank session per HTTP request.
func (a *app) sessionFactory() handler.SessionFactory {
	return func(ctx context.Context) (*handler.Session, error) {
		b, err := a.openBank(ctx)
		if err != nil {
			return nil, err
		}

		return &handler.Session{
			Bank:    b.BankSession,
			Ledger:  b.LedgerUseCase,
			Release: func() { b.Close(context.WithoutCancel(ctx)) },
		}, nil
	}
}

// appSession is a bank session that also owns the app it came from.
type appSession struct {
	*bank
	app *app
}

func (s *appSession) Close(ctx context.Context) {
	s.bank.Close(ctx)
	s.app.Close()
}

// openDatabaseSession is the default session opener of the CLI.
func (c *cli) openDatabaseSession(ctx context.Context) (bankSession, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, cfg, c.logger(cfg), prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	b, err := a.openBank(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	return &appSession{bank: b, app: a}, nil
}
