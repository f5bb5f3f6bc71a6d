package handler

import (
	"context"
	"net/http"

	"github.com/iho/bankito/internal/adapter/http/middleware"
	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

// BankService is the part of a bank session the handlers drive.
type BankService interface {
	Login(ctx context.Context, username, password string) (*domain.User, error)
	Resume(user *domain.User)
	SetIsolationLevel(level string) error
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	ListTransactions(ctx context.Context, name string) ([]*domain.Entry, error)
	ListTransfers(ctx context.Context, name string) ([]*domain.TransferLine, error)
	Transfer(ctx context.Context, req usecase.TransferRequest) (*domain.Account, error)
}

// LedgerChecker runs the ledger consistency check.
type LedgerChecker interface {
	CheckConsistency(ctx context.Context) (*usecase.LedgerReport, error)
}

// Session is one database session serving a single request.
type Session struct {
	Bank    BankService
	Ledger  LedgerChecker
	Release func()
}

// SessionFactory opens a session for a request. The caller must call
// Release once the request is done.
type SessionFactory func(ctx context.Context) (*Session, error)

// withSession opens a session resumed as the authenticated user and
// hands it to fn.
func withSession(w http.ResponseWriter, r *http.Request, open SessionFactory, fn func(s *Session)) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", domain.ErrNotLoggedIn.Error())
		return
	}

	session, err := open(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to open session", err.Error())
		return
	}
	defer session.Release()

	session.Bank.Resume(user)
	fn(session)
}
