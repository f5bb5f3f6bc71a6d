package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	session *Session
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(session *Session) *LedgerRepository {
	return &LedgerRepository{session: session}
}

// TotalBalance sums the balances of all accounts.
func (r *LedgerRepository) TotalBalance(ctx context.Context) (int64, error) {
	var total int64

	err := r.session.FindOne(ctx, `SELECT COALESCE(SUM(balance), 0)::bigint FROM accounts`, nil, &total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// UnpairedReferences returns the reference ids that are not exactly one
// debit and one credit of equal amount on two distinct accounts.
func (r *LedgerRepository) UnpairedReferences(ctx context.Context) ([]string, error) {
	query := `
		SELECT reference_id::text
		FROM transactions
		GROUP BY reference_id
		HAVING COUNT(*) <> 2
			OR COUNT(*) FILTER (WHERE type = 'debit') <> 1
			OR COUNT(*) FILTER (WHERE type = 'credit') <> 1
			OR COUNT(DISTINCT account_id) <> 2
			OR MIN(amount) <> MAX(amount)
		ORDER BY reference_id
	`

	refs := []string{}
	err := r.session.FindMany(ctx, query, nil, func(row pgx.Row) error {
		var ref string
		if err := row.Scan(&ref); err != nil {
			return err
		}

		refs = append(refs, ref)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return refs, nil
}
