package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

const accountColumns = `id, user_id, name, balance, currency, status, created_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	session *Session
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(session *Session) *AccountRepository {
	return &AccountRepository{session: session}
}

// FindByOwnerAndName retrieves an account by owner and name.
func (r *AccountRepository) FindByOwnerAndName(ctx context.Context, userID int64, name string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND name = $2
	`

	var account domain.Account
	err := r.session.FindOne(ctx, query, []any{userID, name}, accountDest(&account)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return &account, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`

	var account domain.Account
	err := r.session.FindOne(ctx, query, []any{id}, accountDest(&account)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return &account, nil
}

// ListByOwner lists the accounts of a user, newest first.
func (r *AccountRepository) ListByOwner(ctx context.Context, userID int64) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	accounts := []*domain.Account{}
	err := r.session.FindMany(ctx, query, []any{userID}, func(row pgx.Row) error {
		var account domain.Account
		if err := row.Scan(accountDest(&account)...); err != nil {
			return err
		}

		accounts = append(accounts, &account)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// LockForUpdate takes the row lock of an account inside h. A missing
// account takes no lock and is not an error here.
func (r *AccountRepository) LockForUpdate(ctx context.Context, h usecase.TxHandle, id int64) error {
	_, err := r.session.ExecTx(ctx, h, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return err
}

// GetBalance reads the balance of an account inside h.
func (r *AccountRepository) GetBalance(ctx context.Context, h usecase.TxHandle, id int64) (int64, error) {
	var balance int64

	err := r.session.FindOneTx(ctx, h, `SELECT balance FROM accounts WHERE id = $1`, []any{id}, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: id %d", domain.ErrAccountNotFound, id)
		}

		return 0, err
	}

	return balance, nil
}

// AddBalance adds delta to the balance of an account inside h. Updating
// no row is an engine error wrapping domain.ErrAccountNotFound.
func (r *AccountRepository) AddBalance(ctx context.Context, h usecase.TxHandle, id int64, delta int64) error {
	affected, err := r.session.ExecTx(ctx, h, `UPDATE accounts SET balance = balance + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return err
	}

	if affected != 1 {
		return r.session.engineError("add balance", fmt.Errorf("%w: id %d", domain.ErrAccountNotFound, id))
	}

	return nil
}

// accountDest lists scan targets in accountColumns order.
func accountDest(a *domain.Account) []any {
	return []any{
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.Balance,
		&a.Currency,
		(*string)(&a.Status),
		&a.CreatedAt,
	}
}
