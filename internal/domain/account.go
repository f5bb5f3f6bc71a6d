package domain

import (
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

// Account represents a user's bank account. Balance is kept in minor
// currency units.
type Account struct {
	CreatedAt time.Time
	Name      string
	Currency  string
	Status    AccountStatus
	ID        int64
	UserID    int64
	Balance   int64
}

// IsActive reports whether the account may originate a transfer.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CanDebit reports whether balance covers amount.
func (a *Account) CanDebit(amount int64) bool {
	return a.Balance >= amount
}

// DisplayBalance formats the balance in major units.
func (a *Account) DisplayBalance() string {
	return FormatAmount(a.Balance)
}
