package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankito/internal/adapter/http/dto"
)

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	sessions SessionFactory
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(sessions SessionFactory) *AccountHandler {
	return &AccountHandler{sessions: sessions}
}

// List lists the caller's accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	withSession(w, r, h.sessions, func(s *Session) {
		accounts, err := s.Bank.ListAccounts(r.Context())
		if err != nil {
			writeError(w, mapDomainError(err), "failed to list accounts", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts))
	})
}

// ListTransactions lists the ledger entries of one of the caller's accounts.
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	withSession(w, r, h.sessions, func(s *Session) {
		entries, err := s.Bank.ListTransactions(r.Context(), name)
		if err != nil {
			writeError(w, mapDomainError(err), "failed to list transactions", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
	})
}

// ListTransfers lists the transfers touching one of the caller's accounts.
func (h *AccountHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	withSession(w, r, h.sessions, func(s *Session) {
		lines, err := s.Bank.ListTransfers(r.Context(), name)
		if err != nil {
			writeError(w, mapDomainError(err), "failed to list transfers", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, dto.TransferLinesFromDomain(lines))
	})
}
