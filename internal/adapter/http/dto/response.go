package dto

import (
	"time"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// LoginResponse represents a login response.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	CreatedAt    time.Time `json:"created_at"`
	Name         string    `json:"name"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	Balance      string    `json:"balance"`
	ID           int64     `json:"id"`
	BalanceMinor int64     `json:"balance_minor"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:           a.ID,
		Name:         a.Name,
		Currency:     a.Currency,
		Status:       string(a.Status),
		Balance:      a.DisplayBalance(),
		BalanceMinor: a.Balance,
		CreatedAt:    a.CreatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// EntryResponse represents one ledger entry of an account.
type EntryResponse struct {
	CreatedAt    time.Time `json:"created_at"`
	ReferenceID  string    `json:"reference_id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Description  string    `json:"description"`
	ID           int64     `json:"id"`
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = &EntryResponse{
			ID:           e.ID,
			ReferenceID:  e.ReferenceID,
			Type:         string(e.Type),
			Amount:       domain.FormatAmount(e.SignedAmount()),
			BalanceAfter: domain.FormatAmount(e.BalanceAfter),
			Description:  e.Description,
			CreatedAt:    e.CreatedAt,
		}
	}
	return result
}

// TransferLineResponse represents one side of a transfer with both
// account names.
type TransferLineResponse struct {
	CreatedAt    time.Time `json:"created_at"`
	ReferenceID  string    `json:"reference_id"`
	Type         string    `json:"type"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	Amount       string    `json:"amount"`
	Description  string    `json:"description"`
	BalanceAfter string    `json:"balance_after"`
}

// TransferLinesFromDomain converts transfer lines to responses.
func TransferLinesFromDomain(lines []*domain.TransferLine) []*TransferLineResponse {
	result := make([]*TransferLineResponse, len(lines))
	for i, l := range lines {
		result[i] = &TransferLineResponse{
			ReferenceID:  l.ReferenceID,
			Type:         string(l.Type),
			Origin:       l.Origin,
			Destination:  l.Destination,
			Amount:       domain.FormatAmount(l.Amount),
			Description:  l.Description,
			BalanceAfter: domain.FormatAmount(l.BalanceAfter),
			CreatedAt:    l.CreatedAt,
		}
	}
	return result
}

// ConsistencyResponse reports the outcome of a ledger check.
type ConsistencyResponse struct {
	Status             string   `json:"status"`
	TotalBalance       string   `json:"total_balance"`
	UnpairedReferences []string `json:"unpaired_references"`
	Consistent         bool     `json:"consistent"`
}

// ConsistencyFromReport converts a ledger report to response.
func ConsistencyFromReport(r *usecase.LedgerReport) *ConsistencyResponse {
	status := "consistent"
	if !r.Consistent() {
		status = "inconsistent"
	}

	return &ConsistencyResponse{
		Status:             status,
		Consistent:         r.Consistent(),
		TotalBalance:       domain.FormatAmount(r.TotalBalance),
		UnpairedReferences: r.UnpairedReferences,
	}
}
