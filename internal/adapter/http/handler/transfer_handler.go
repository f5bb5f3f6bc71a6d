package handler

import (
	"encoding/json"
	"net/http"

	"github.com/iho/bankito/internal/adapter/http/dto"
)

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	sessions SessionFactory
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(sessions SessionFactory) *TransferHandler {
	return &TransferHandler{sessions: sessions}
}

// Create moves money and returns the refreshed source account.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	withSession(w, r, h.sessions, func(s *Session) {
		if req.Isolation != "" {
			if err := s.Bank.SetIsolationLevel(req.Isolation); err != nil {
				writeError(w, http.StatusBadRequest, "invalid isolation level", err.Error())
				return
			}
		}

		account, err := s.Bank.Transfer(r.Context(), input)
		if err != nil {
			writeError(w, mapDomainError(err), "failed to create transfer", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
	})
}
