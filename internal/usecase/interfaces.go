package usecase

import (
	"context"
	"time"

	"github.com/iho/bankito/internal/domain"
)

// TxHandle identifies one open transaction on a session.
type TxHandle string

// TransactionManager hands out transaction handles on a single session.
type TransactionManager interface {
	Begin(ctx context.Context) (TxHandle, error)
	Commit(ctx context.Context, h TxHandle) error
	// Cancel rolls back h. Unknown handles are ignored, so Cancel may
	// always be deferred right after Begin.
	Cancel(ctx context.Context, h TxHandle) error
}

// IsolationController selects the isolation level of transactions begun
// from now on.
type IsolationController interface {
	SetIsolation(level domain.IsolationLevel) error
	Isolation() domain.IsolationLevel
}

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	FindByOwnerAndName(ctx context.Context, userID int64, name string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	ListByOwner(ctx context.Context, userID int64) ([]*domain.Account, error)
	LockForUpdate(ctx context.Context, h TxHandle, id int64) error
	GetBalance(ctx context.Context, h TxHandle, id int64) (int64, error)
	AddBalance(ctx context.Context, h TxHandle, id int64, delta int64) error
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, h TxHandle, entry *domain.Entry) error
	ListByAccount(ctx context.Context, accountID int64) ([]*domain.Entry, error)
	ListTransfersByAccount(ctx context.Context, accountID int64) ([]*domain.TransferLine, error)
	CountByReference(ctx context.Context, referenceID string) (int, error)
}

// UserRepository defines data access for users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// LedgerRepository defines data access for ledger-wide checks.
type LedgerRepository interface {
	TotalBalance(ctx context.Context) (int64, error)
	UnpairedReferences(ctx context.Context) ([]string, error)
}

// ReferenceGenerator generates transfer reference ids.
type ReferenceGenerator interface {
	Generate() string
}

// Retrier re-runs an operation while it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(hash, password string) error
}

// IdempotencyStore remembers the response of a request carrying an
// idempotency key.
type IdempotencyStore interface {
	// Reserve claims key for the caller. When the key is already claimed
	// it returns reserved=false and the stored response, which is empty
	// while the first request is still in flight.
	Reserve(ctx context.Context, key string, ttl time.Duration) (reserved bool, response []byte, err error)
	// Complete stores the final response of a reserved key.
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a reservation so the request may be retried.
	Release(ctx context.Context, key string) error
}

// TransferMetrics receives transfer outcomes.
type TransferMetrics interface {
	ObserveTransfer(scenario, outcome string, elapsed time.Duration)
}
