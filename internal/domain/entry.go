package domain

import "time"

// EntryType tells whether an entry took money out of or into an account.
type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// Entry is one immutable side of a transfer. Exactly two entries, a debit
// and a credit on distinct accounts with equal amounts, share a ReferenceID.
type Entry struct {
	CreatedAt    time.Time
	ReferenceID  string
	Type         EntryType
	Description  string
	ID           int64
	AccountID    int64
	Amount       int64
	BalanceAfter int64
}

// SignedAmount returns the amount as it moved the account balance.
func (e *Entry) SignedAmount() int64 {
	if e.Type == EntryTypeDebit {
		return -e.Amount
	}
	return e.Amount
}

// NewEntryPair builds the debit and credit entries of one transfer.
func NewEntryPair(referenceID string, fromID, toID, amount, fromBalance, toBalance int64, description string, now time.Time) (*Entry, *Entry) {
	debit := &Entry{
		ReferenceID:  referenceID,
		AccountID:    fromID,
		Type:         EntryTypeDebit,
		Amount:       amount,
		BalanceAfter: fromBalance,
		Description:  description,
		CreatedAt:    now,
	}
	credit := &Entry{
		ReferenceID:  referenceID,
		AccountID:    toID,
		Type:         EntryTypeCredit,
		Amount:       amount,
		BalanceAfter: toBalance,
		Description:  description,
		CreatedAt:    now,
	}

	return debit, credit
}
