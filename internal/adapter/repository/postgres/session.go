package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

// sessionConn is the part of a single pgx connection a Session needs.
type sessionConn interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionMetrics receives handle lifecycle and engine failure events.
type SessionMetrics interface {
	HandleOpened()
	HandleClosed(outcome string)
	EngineFailure(op string, retryable bool)
}

// Handle outcomes reported to SessionMetrics.
const (
	HandleCommitted = "committed"
	HandleCancelled = "cancelled"
	HandleFailed    = "failed"
)

// Session owns one database connection and at most one open transaction
// on it. It implements usecase.TransactionManager and
// usecase.IsolationController; repositories run their statements through
// it, either autocommitted or inside the live handle.
type Session struct {
	conn      sessionConn
	release   func()
	handleGen *ULIDGenerator
	metrics   SessionMetrics
	logger    zerolog.Logger

	mu        sync.Mutex
	isolation domain.IsolationLevel
	handle    usecase.TxHandle
	tx        pgx.Tx
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger.
func WithSessionLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithSessionMetrics reports handle and engine events to m.
func WithSessionMetrics(m SessionMetrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithIsolation sets the initial isolation level.
func WithIsolation(level domain.IsolationLevel) SessionOption {
	return func(s *Session) {
		if level.IsValid() {
			s.isolation = level
		}
	}
}

// NewSession acquires a dedicated connection from pool. Close releases it.
func NewSession(ctx context.Context, pool *pgxpool.Pool, opts ...SessionOption) (*Session, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, domain.NewEngineError("acquire connection", err)
	}

	s := newSessionWithConn(conn, opts...)
	s.release = conn.Release

	return s, nil
}

func newSessionWithConn(conn sessionConn, opts ...SessionOption) *Session {
	s := &Session{
		conn:      conn,
		release:   func() {},
		handleGen: NewULIDGenerator(),
		logger:    zerolog.Nop(),
		isolation: domain.DefaultIsolationLevel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SetIsolation applies level to transactions begun after the call.
func (s *Session) SetIsolation(level domain.IsolationLevel) error {
	if !level.IsValid() {
		return domain.ErrInvalidIsolationLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.isolation = level
	s.logger.Info().Str("isolation", level.String()).Msg("isolation level set")

	return nil
}

// Isolation returns the level last set.
func (s *Session) Isolation() domain.IsolationLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isolation
}

// Begin opens a transaction at the current isolation level and returns
// its handle.
func (s *Session) Begin(ctx context.Context) (usecase.TxHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return "", domain.NewEngineError("begin", domain.ErrTransactionInProgress)
	}

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgxIsoLevel(s.isolation)})
	if err != nil {
		return "", s.engineError("begin", err)
	}

	s.tx = tx
	s.handle = usecase.TxHandle(s.handleGen.Generate())

	if s.metrics != nil {
		s.metrics.HandleOpened()
	}

	s.logger.Debug().
		Str("handle", string(s.handle)).
		Str("isolation", s.isolation.String()).
		Msg("transaction started")

	return s.handle, nil
}

// Commit commits h. If the commit fails the transaction is rolled back
// and an engine error returned; either way h is gone afterwards.
func (s *Session) Commit(ctx context.Context, h usecase.TxHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.lookup(h)
	if err != nil {
		return err
	}

	s.forget()

	if err := tx.Commit(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug().Err(rbErr).Str("handle", string(h)).Msg("rollback after failed commit")
		}

		s.closed(HandleFailed)
		return s.engineError("commit", err)
	}

	s.closed(HandleCommitted)
	s.logger.Debug().Str("handle", string(h)).Msg("transaction committed")

	return nil
}

// Cancel rolls back h. Unknown handles, including ones already committed
// or cancelled, are ignored.
func (s *Session) Cancel(ctx context.Context, h usecase.TxHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.lookup(h)
	if err != nil {
		return nil
	}

	s.forget()
	s.closed(HandleCancelled)

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return s.engineError("cancel", err)
	}

	s.logger.Debug().Str("handle", string(h)).Msg("transaction cancelled")

	return nil
}

// Close cancels the live transaction, if any, and releases the
// connection.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()

	if h != "" {
		if err := s.Cancel(ctx, h); err != nil {
			s.logger.Warn().Err(err).Msg("cancel on close failed")
		}
	}

	s.release()
}

// Exec runs an autocommitted statement and returns the affected rows.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refuseInTx("exec"); err != nil {
		return 0, err
	}

	tag, err := s.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, s.engineError("exec", err)
	}

	return tag.RowsAffected(), nil
}

// FindOne scans the single row of an autocommitted query into dest.
// pgx.ErrNoRows is returned as is.
func (s *Session) FindOne(ctx context.Context, sql string, args []any, dest ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refuseInTx("find one"); err != nil {
		return err
	}

	if err := s.conn.QueryRow(ctx, sql, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return s.engineError("find one", err)
	}

	return nil
}

// FindMany calls scan for every row of an autocommitted query.
func (s *Session) FindMany(ctx context.Context, sql string, args []any, scan func(pgx.Row) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refuseInTx("find many"); err != nil {
		return err
	}

	if err := collect(ctx, s.conn, sql, args, scan); err != nil {
		return s.engineError("find many", err)
	}

	return nil
}

// ExecTx runs a statement inside h. Any failure rolls back and forgets h.
func (s *Session) ExecTx(ctx context.Context, h usecase.TxHandle, sql string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.lookup(h)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, s.abort(ctx, tx, "exec", err)
	}

	return tag.RowsAffected(), nil
}

// FindOneTx scans the single row of a query inside h into dest.
// pgx.ErrNoRows is returned as is and leaves h open; any other failure
// rolls back and forgets h.
func (s *Session) FindOneTx(ctx context.Context, h usecase.TxHandle, sql string, args []any, dest ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.lookup(h)
	if err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, sql, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return s.abort(ctx, tx, "find one", err)
	}

	return nil
}

// FindManyTx calls scan for every row of a query inside h. Any failure
// rolls back and forgets h.
func (s *Session) FindManyTx(ctx context.Context, h usecase.TxHandle, sql string, args []any, scan func(pgx.Row) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.lookup(h)
	if err != nil {
		return err
	}

	if err := collect(ctx, tx, sql, args, scan); err != nil {
		return s.abort(ctx, tx, "find many", err)
	}

	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collect(ctx context.Context, q querier, sql string, args []any, scan func(pgx.Row) error) error {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

// lookup returns the transaction of h. Callers hold s.mu.
func (s *Session) lookup(h usecase.TxHandle) (pgx.Tx, error) {
	if s.tx == nil || h == "" || h != s.handle {
		return nil, fmt.Errorf("%w: %q", domain.ErrNoSuchTransaction, h)
	}
	return s.tx, nil
}

func (s *Session) forget() {
	s.tx = nil
	s.handle = ""
}

func (s *Session) closed(outcome string) {
	if s.metrics != nil {
		s.metrics.HandleClosed(outcome)
	}
}

// abort rolls back tx after a failed statement and forgets its handle.
func (s *Session) abort(ctx context.Context, tx pgx.Tx, op string, cause error) error {
	h := s.handle
	s.forget()
	s.closed(HandleFailed)

	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Debug().Err(err).Str("handle", string(h)).Msg("rollback after failed statement")
	}

	return s.engineError(op, cause)
}

func (s *Session) refuseInTx(op string) error {
	if s.tx != nil {
		return domain.NewEngineError(op, domain.ErrTransactionInProgress)
	}
	return nil
}

func (s *Session) engineError(op string, err error) error {
	engineErr := domain.NewEngineError(op, err)
	engineErr.Retryable = isRetryableError(err)

	if s.metrics != nil {
		s.metrics.EngineFailure(op, engineErr.Retryable)
	}

	s.logger.Debug().Err(err).Str("op", op).Bool("retryable", engineErr.Retryable).Msg("engine error")

	return engineErr
}

func pgxIsoLevel(level domain.IsolationLevel) pgx.TxIsoLevel {
	switch level {
	case domain.RepeatableRead:
		return pgx.RepeatableRead
	case domain.Serializable:
		return pgx.Serializable
	default:
		return pgx.ReadCommitted
	}
}
