package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/bankito/internal/adapter/http/dto"
	"github.com/iho/bankito/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes. Rule violations
// are checked before engine failures since an unknown source account is
// reported as an invalid transfer.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransfer),
		errors.Is(err, domain.ErrInvalidScenario),
		errors.Is(err, domain.ErrInvalidIsolationLevel),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrInvalidAccountName),
		errors.Is(err, domain.ErrDescriptionTooLong):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotLoggedIn),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case domain.IsRetryable(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
