package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/bankito/internal/domain"
)

var (
	accountCols = []string{"id", "user_id", "name", "balance", "currency", "status", "created_at"}
	createdAt   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestAccountRepositoryFindByOwnerAndName(t *testing.T) {
	s, mock := newMockSession(t)
	repo := NewAccountRepository(s)
	ctx := context.Background()

	mock.ExpectQuery(`WHERE user_id = \$1 AND name = \$2`).
		WithArgs(int64(7), "checking").
		WillReturnRows(pgxmock.NewRows(accountCols).
			AddRow(int64(1), int64(7), "checking", int64(100), "USD", "active", createdAt))
	mock.ExpectQuery(`WHERE user_id = \$1 AND name = \$2`).
		WithArgs(int64(7), "savings").
		WillReturnRows(pgxmock.NewRows(accountCols))

	account, err := repo.FindByOwnerAndName(ctx, 7, "checking")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if account.ID != 1 || account.Balance != 100 || !account.IsActive() || account.Currency != "USD" {
		t.Fatalf("unexpected account %+v", account)
	}

	if _, err := repo.FindByOwnerAndName(ctx, 7, "savings"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestAccountRepositoryListByOwner(t *testing.T) {
	s, mock := newMockSession(t)
	repo := NewAccountRepository(s)

	mock.ExpectQuery(`FROM accounts\s+WHERE user_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(accountCols).
			AddRow(int64(2), int64(7), "savings", int64(50), "USD", "active", createdAt).
			AddRow(int64(1), int64(7), "checking", int64(100), "USD", "frozen", createdAt))

	accounts, err := repo.ListByOwner(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(accounts) != 2 || accounts[1].Status != domain.AccountStatusFrozen {
		t.Fatalf("unexpected accounts %+v", accounts)
	}

	assertExpectations(t, mock)
}

func TestAccountRepositoryTransactionalStatements(t *testing.T) {
	metrics := &countingMetrics{}
	s, mock := newMockSession(t, WithSessionMetrics(metrics))
	repo := NewAccountRepository(s)
	ctx := context.Background()

	mock.ExpectBeginTx(readCommitted())
	mock.ExpectExec(regexp.QuoteMeta(lockSQL)).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM accounts WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(100)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = balance + $2 WHERE id = $1`)).
		WithArgs(int64(1), int64(-30)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = balance + $2 WHERE id = $1`)).
		WithArgs(int64(999), int64(30)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	h, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.LockForUpdate(ctx, h, 1); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	balance, err := repo.GetBalance(ctx, h, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 100 {
		t.Fatalf("expected 100, got %d", balance)
	}

	if err := repo.AddBalance(ctx, h, 1, -30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = repo.AddBalance(ctx, h, 999, 30)
	if !errors.Is(err, domain.ErrEngine) || !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected engine error wrapping ErrAccountNotFound, got %v", err)
	}
	if domain.IsRetryable(err) {
		t.Fatalf("a missing account must not be retryable")
	}
	if metrics.failures != 1 {
		t.Fatalf("expected the missing account to count as one engine failure, got %d", metrics.failures)
	}

	if err := s.Cancel(ctx, h); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	assertExpectations(t, mock)
}

func TestEntryRepositoryCreate(t *testing.T) {
	s, mock := newMockSession(t)
	repo := NewEntryRepository(s)
	ctx := context.Background()

	ref := "5a3c9c0e-8a57-4d0b-9a1d-96a1b9e1f2aa"
	debit, credit := domain.NewEntryPair(ref, 1, 2, 30, 70, 80, "rent", createdAt)

	mock.ExpectBeginTx(readCommitted())
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(ref, int64(1), "debit", int64(30), int64(70), "rent", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(ref, int64(2), "credit", int64(30), int64(80), "rent", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectCommit()

	h, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.Create(ctx, h, debit); err != nil {
		t.Fatalf("create debit failed: %v", err)
	}
	if err := repo.Create(ctx, h, credit); err != nil {
		t.Fatalf("create credit failed: %v", err)
	}

	if debit.ID != 11 || credit.ID != 12 {
		t.Fatalf("expected ids to be set, got %d and %d", debit.ID, credit.ID)
	}

	if err := s.Commit(ctx, h); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, mock)
}

func TestEntryRepositoryReads(t *testing.T) {
	s, mock := newMockSession(t)
	repo := NewEntryRepository(s)
	ctx := context.Background()

	ref := "5a3c9c0e-8a57-4d0b-9a1d-96a1b9e1f2aa"

	mock.ExpectQuery(`FROM transactions\s+WHERE account_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "reference_id", "account_id", "type", "amount", "balance_after", "description", "created_at"}).
			AddRow(int64(11), ref, int64(1), "debit", int64(30), int64(70), "rent", createdAt))
	mock.ExpectQuery(`INNER JOIN transactions AS t2`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"reference_id", "type", "origin", "destination", "amount", "description", "balance_after", "created_at"}).
			AddRow(ref, "debit", "checking", "bob-main", int64(30), "rent", int64(70), createdAt).
			AddRow(ref, "credit", "bob-main", "checking", int64(30), "rent", int64(80), createdAt))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM transactions WHERE reference_id = $1`)).
		WithArgs(ref).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	entries, err := repo.ListByAccount(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != domain.EntryTypeDebit || entries[0].SignedAmount() != -30 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	lines, err := repo.ListTransfersByAccount(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 || lines[0].Destination != "bob-main" || lines[1].Type != domain.EntryTypeCredit {
		t.Fatalf("unexpected lines %+v", lines)
	}

	count, err := repo.CountByReference(ctx, ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}

	assertExpectations(t, mock)
}

func TestUserRepositoryGetByUsername(t *testing.T) {
	s, mock := newMockSession(t)
	repo := NewUserRepository(s)
	ctx := context.Background()

	cols := []string{"id", "username", "password_hash", "created_at"}
	mock.ExpectQuery(`FROM users\s+WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(int64(7), "alice", "$2a$10$hash", createdAt))
	mock.ExpectQuery(`FROM users\s+WHERE username = \$1`).
		WithArgs("mallory").
		WillReturnRows(pgxmock.NewRows(cols))

	user, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 7 || user.PasswordHash != "$2a$10$hash" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := repo.GetByUsername(ctx, "mallory"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestLedgerRepository(t *testing.T) {
	s, mock := newMockSession(t)
	repo := NewLedgerRepository(s)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(balance), 0)::bigint FROM accounts`)).
		WillReturnRows(pgxmock.NewRows([]string{"total"}).AddRow(int64(150)))
	mock.ExpectQuery(`GROUP BY reference_id\s+HAVING`).
		WillReturnRows(pgxmock.NewRows([]string{"reference_id"}).AddRow("b0a1c2d3-0000-4000-8000-000000000001"))

	total, err := repo.TotalBalance(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected 150, got %d", total)
	}

	refs, err := repo.UnpairedReferences(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected one unpaired reference, got %v", refs)
	}

	assertExpectations(t, mock)
}

func TestIDGenerators(t *testing.T) {
	handles := NewULIDGenerator()
	if a, b := handles.Generate(), handles.Generate(); a == b || len(a) != 26 {
		t.Fatalf("expected distinct 26-char ULIDs, got %q and %q", a, b)
	}

	refs := NewUUIDGenerator()
	if a, b := refs.Generate(), refs.Generate(); a == b || len(a) != 36 {
		t.Fatalf("expected distinct UUIDs, got %q and %q", a, b)
	}
}
