package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/bankito/internal/domain"
)

// BankSessionDeps are the collaborators of one BankSession. TxManager,
// Isolation and the repositories must all act on the same session so
// that statements run inside the handles that TxManager hands out.
type BankSessionDeps struct {
	TxManager  TransactionManager
	Isolation  IsolationController
	Accounts   AccountRepository
	Entries    EntryRepository
	Users      UserRepository
	References ReferenceGenerator
	Passwords  PasswordVerifier
	// Retrier, when set, re-issues transfers that fail with a retryable
	// engine error.
	Retrier Retrier
	Pause   Pause
	Metrics TransferMetrics
	Logger  zerolog.Logger
}

// BankSession is the state of one client: who is logged in and which
// isolation level its next transactions use. Each client gets its own
// BankSession and therefore its own database connection.
type BankSession struct {
	deps      BankSessionDeps
	transfers *TransferUseCase
	user      *domain.User
}

// NewBankSession creates a new BankSession.
func NewBankSession(deps BankSessionDeps) *BankSession {
	return &BankSession{
		deps: deps,
		transfers: NewTransferUseCase(deps.TxManager, deps.Accounts, deps.Entries, deps.References,
			WithPause(deps.Pause),
			WithTransferMetrics(deps.Metrics),
			WithLogger(deps.Logger),
		),
	}
}

// Login authenticates username and makes it the current user.
func (s *BankSession) Login(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.deps.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.deps.Passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	s.user = user
	s.deps.Logger.Info().Str("username", user.Username).Msg("logged in")

	return user, nil
}

// Resume makes an already authenticated user current, e.g. one carried
// by a verified token.
func (s *BankSession) Resume(user *domain.User) {
	s.user = user
}

// Logout forgets the current user.
func (s *BankSession) Logout() {
	s.user = nil
}

// CurrentUser returns the logged in user.
func (s *BankSession) CurrentUser() (*domain.User, error) {
	if s.user == nil {
		return nil, domain.ErrNotLoggedIn
	}
	return s.user, nil
}

// SetIsolationLevel parses level and applies it to transactions begun
// after the call.
func (s *BankSession) SetIsolationLevel(level string) error {
	parsed, err := domain.ParseIsolationLevel(level)
	if err != nil {
		return err
	}

	return s.deps.Isolation.SetIsolation(parsed)
}

// IsolationLevel returns the level last set.
func (s *BankSession) IsolationLevel() domain.IsolationLevel {
	return s.deps.Isolation.Isolation()
}

// GetAccount resolves an account of the current user by name.
func (s *BankSession) GetAccount(ctx context.Context, name string) (*domain.Account, error) {
	user, err := s.CurrentUser()
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateAccountName(name); err != nil {
		return nil, err
	}

	return s.deps.Accounts.FindByOwnerAndName(ctx, user.ID, name)
}

// ListAccounts lists the accounts of the current user.
func (s *BankSession) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	user, err := s.CurrentUser()
	if err != nil {
		return nil, err
	}

	return s.deps.Accounts.ListByOwner(ctx, user.ID)
}

// ListTransactions lists the ledger entries of the named account.
func (s *BankSession) ListTransactions(ctx context.Context, name string) ([]*domain.Entry, error) {
	account, err := s.GetAccount(ctx, name)
	if err != nil {
		return nil, err
	}

	return s.deps.Entries.ListByAccount(ctx, account.ID)
}

// ListTransfers lists the transfers touching the named account, each
// joined with its counterpart.
func (s *BankSession) ListTransfers(ctx context.Context, name string) ([]*domain.TransferLine, error) {
	account, err := s.GetAccount(ctx, name)
	if err != nil {
		return nil, err
	}

	return s.deps.Entries.ListTransfersByAccount(ctx, account.ID)
}

// TransferRequest names the source account instead of passing it
// resolved.
type TransferRequest struct {
	FromName      string
	Description   string
	DestinationID int64
	Amount        int64
	Options       domain.TransferOptions
}

// Transfer resolves the source account of the current user and runs the
// transfer. With a Retrier configured, retryable engine errors re-issue
// the whole transfer.
func (s *BankSession) Transfer(ctx context.Context, req TransferRequest) (*domain.Account, error) {
	user, err := s.CurrentUser()
	if err != nil {
		return nil, err
	}

	source, err := s.deps.Accounts.FindByOwnerAndName(ctx, user.ID, req.FromName)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %w: %q", domain.ErrInvalidTransfer, err, req.FromName)
		}
		return nil, domain.AsEngineError("resolve source account", err)
	}

	input := TransferInput{
		UserID:        user.ID,
		Source:        source,
		DestinationID: req.DestinationID,
		Amount:        req.Amount,
		Description:   req.Description,
		Options:       req.Options,
	}

	if s.deps.Retrier == nil {
		return s.transfers.Transfer(ctx, input)
	}

	var result *domain.Account

	err = s.deps.Retrier.Retry(ctx, func() error {
		var err error
		result, err = s.transfers.Transfer(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
