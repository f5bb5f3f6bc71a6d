package main

import (
	"context"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

// stubBank records calls and returns canned results.
type stubBank struct {
	user      *domain.User
	password  string
	isolation domain.IsolationLevel

	accounts []*domain.Account
	entries  []*domain.Entry
	lines    []*domain.TransferLine
	report   *usecase.LedgerReport
	checkErr error

	transferred *usecase.TransferRequest
	transferErr error

	listedName string
	closed     bool
}

func newStubBank() *stubBank {
	return &stubBank{
		password:  "secret",
		isolation: domain.DefaultIsolationLevel,
	}
}

func (b *stubBank) Login(_ context.Context, username, password string) (*domain.User, error) {
	if password != b.password {
		return nil, domain.ErrInvalidCredentials
	}
	b.user = &domain.User{ID: 7, Username: username}
	return b.user, nil
}

func (b *stubBank) Logout() { b.user = nil }

func (b *stubBank) CurrentUser() (*domain.User, error) {
	if b.user == nil {
		return nil, domain.ErrNotLoggedIn
	}
	return b.user, nil
}

func (b *stubBank) SetIsolationLevel(level string) error {
	parsed, err := domain.ParseIsolationLevel(level)
	if err != nil {
		return err
	}
	b.isolation = parsed
	return nil
}

func (b *stubBank) IsolationLevel() domain.IsolationLevel { return b.isolation }

func (b *stubBank) ListAccounts(context.Context) ([]*domain.Account, error) {
	if b.user == nil {
		return nil, domain.ErrNotLoggedIn
	}
	return b.accounts, nil
}

func (b *stubBank) ListTransactions(_ context.Context, name string) ([]*domain.Entry, error) {
	b.listedName = name
	return b.entries, nil
}

func (b *stubBank) ListTransfers(_ context.Context, name string) ([]*domain.TransferLine, error) {
	b.listedName = name
	return b.lines, nil
}

func (b *stubBank) Transfer(_ context.Context, req usecase.TransferRequest) (*domain.Account, error) {
	b.transferred = &req
	if b.transferErr != nil {
		return nil, b.transferErr
	}
	return &domain.Account{ID: 1, Name: req.FromName, Balance: 7000, Currency: "USD", Status: domain.AccountStatusActive}, nil
}

func (b *stubBank) CheckConsistency(context.Context) (*usecase.LedgerReport, error) {
	return b.report, b.checkErr
}

func (b *stubBank) Close(context.Context) { b.closed = true }
