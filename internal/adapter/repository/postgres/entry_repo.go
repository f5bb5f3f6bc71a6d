package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

const entryColumns = `id, reference_id::text, account_id, type, amount, balance_after, description, created_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	session *Session
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(session *Session) *EntryRepository {
	return &EntryRepository{session: session}
}

// Create inserts an entry inside h and sets its ID.
func (r *EntryRepository) Create(ctx context.Context, h usecase.TxHandle, entry *domain.Entry) error {
	query := `
		INSERT INTO transactions (reference_id, account_id, type, amount, balance_after, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	return r.session.FindOneTx(ctx, h, query, []any{
		entry.ReferenceID,
		entry.AccountID,
		string(entry.Type),
		entry.Amount,
		entry.BalanceAfter,
		entry.Description,
		entry.CreatedAt,
	}, &entry.ID)
}

// ListByAccount lists the entries of an account, newest first.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID int64) ([]*domain.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`

	entries := []*domain.Entry{}
	err := r.session.FindMany(ctx, query, []any{accountID}, func(row pgx.Row) error {
		var e domain.Entry
		if err := row.Scan(
			&e.ID,
			&e.ReferenceID,
			&e.AccountID,
			(*string)(&e.Type),
			&e.Amount,
			&e.BalanceAfter,
			&e.Description,
			&e.CreatedAt,
		); err != nil {
			return err
		}

		entries = append(entries, &e)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ListTransfersByAccount lists every entry of a transfer touching the
// account, joined with the account names of both sides.
func (r *EntryRepository) ListTransfersByAccount(ctx context.Context, accountID int64) ([]*domain.TransferLine, error) {
	query := `
		SELECT t1.reference_id::text, t1.type, a1.name, a2.name, t1.amount, t1.description, t1.balance_after, t1.created_at
		FROM transactions AS t1
		INNER JOIN transactions AS t2
			ON t1.reference_id = t2.reference_id AND t1.id <> t2.id AND (t1.account_id = $1 OR t2.account_id = $1)
		LEFT JOIN accounts AS a1 ON t1.account_id = a1.id
		LEFT JOIN accounts AS a2 ON t2.account_id = a2.id
		ORDER BY t1.created_at DESC, t1.id DESC
	`

	lines := []*domain.TransferLine{}
	err := r.session.FindMany(ctx, query, []any{accountID}, func(row pgx.Row) error {
		var l domain.TransferLine
		if err := row.Scan(
			&l.ReferenceID,
			(*string)(&l.Type),
			&l.Origin,
			&l.Destination,
			&l.Amount,
			&l.Description,
			&l.BalanceAfter,
			&l.CreatedAt,
		); err != nil {
			return err
		}

		lines = append(lines, &l)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return lines, nil
}

// CountByReference counts the entries sharing a reference id.
func (r *EntryRepository) CountByReference(ctx context.Context, referenceID string) (int, error) {
	var count int64

	err := r.session.FindOne(ctx, `SELECT COUNT(*) FROM transactions WHERE reference_id = $1`, []any{referenceID}, &count)
	if err != nil {
		return 0, err
	}

	return int(count), nil
}
