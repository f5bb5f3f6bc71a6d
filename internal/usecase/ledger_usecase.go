package usecase

import (
	"context"
	"errors"
)

var (
	// ErrInconsistentLedger is returned when some transfer reference is not
	// made of exactly one debit and one credit.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: unpaired entries found")
)

// LedgerReport summarizes a ledger check.
type LedgerReport struct {
	UnpairedReferences []string `json:"unpaired_references"`
	TotalBalance       int64    `json:"total_balance"`
}

// Consistent reports whether every reference is properly paired.
func (r *LedgerReport) Consistent() bool {
	return len(r.UnpairedReferences) == 0
}

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
	}
}

// CheckConsistency reports the total balance across all accounts and any
// reference id not made of exactly one debit and one credit of equal
// amount on distinct accounts. The total balance is informational: it is
// only conserved between checks when no weakened transfer ran.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*LedgerReport, error) {
	total, err := uc.ledgerRepo.TotalBalance(ctx)
	if err != nil {
		return nil, err
	}

	unpaired, err := uc.ledgerRepo.UnpairedReferences(ctx)
	if err != nil {
		return nil, err
	}

	report := &LedgerReport{
		TotalBalance:       total,
		UnpairedReferences: unpaired,
	}

	if !report.Consistent() {
		return report, ErrInconsistentLedger
	}

	return report, nil
}
