package handler

import (
	"errors"
	"net/http"

	"github.com/iho/bankito/internal/adapter/http/dto"
	"github.com/iho/bankito/internal/usecase"
)

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	sessions SessionFactory
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(sessions SessionFactory) *LedgerHandler {
	return &LedgerHandler{sessions: sessions}
}

// CheckConsistency checks that every transfer is one balanced entry pair.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	withSession(w, r, h.sessions, func(s *Session) {
		report, err := s.Ledger.CheckConsistency(r.Context())
		if err != nil {
			if errors.Is(err, usecase.ErrInconsistentLedger) && report != nil {
				writeJSON(w, http.StatusConflict, dto.ConsistencyFromReport(report))
				return
			}
			writeError(w, mapDomainError(err), "failed to check consistency", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, dto.ConsistencyFromReport(report))
	})
}
