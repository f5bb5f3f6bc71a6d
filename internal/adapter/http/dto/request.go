package dto

import (
	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateTransferRequest represents a request to move money out of one of
// the caller's accounts. Amount is in major units, e.g. "30" or "12.50".
type CreateTransferRequest struct {
	FromAccount        string `json:"from_account"`
	Amount             string `json:"amount"`
	Description        string `json:"description,omitempty"`
	Isolation          string `json:"isolation,omitempty"`
	ToAccountID        int64  `json:"to_account_id"`
	SkipConsistentLock bool   `json:"skip_consistent_lock,omitempty"`
	SkipForUpdate      bool   `json:"skip_for_update,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransferRequest) ToUseCaseInput() (usecase.TransferRequest, error) {
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return usecase.TransferRequest{}, err
	}

	return usecase.TransferRequest{
		FromName:      r.FromAccount,
		Description:   r.Description,
		DestinationID: r.ToAccountID,
		Amount:        amount,
		Options: domain.TransferOptions{
			SkipConsistentLock: r.SkipConsistentLock,
			SkipForUpdate:      r.SkipForUpdate,
		},
	}, nil
}
