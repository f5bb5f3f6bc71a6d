package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/bankito/internal/adapter/http/dto"
	"github.com/iho/bankito/internal/domain"
)

// TokenIssuer signs session tokens for logged in users.
type TokenIssuer interface {
	Generate(user *domain.User) (string, error)
}

// LoginRecorder counts login attempts.
type LoginRecorder interface {
	LoginAttempt(ok bool)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	sessions SessionFactory
	tokens   TokenIssuer
	recorder LoginRecorder
}

// NewAuthHandler creates a new auth handler. recorder may be nil.
func NewAuthHandler(sessions SessionFactory, tokens TokenIssuer, recorder LoginRecorder) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		tokens:   tokens,
		recorder: recorder,
	}
}

// Login checks the credentials and returns a signed token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	session, err := h.sessions(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to open session", err.Error())
		return
	}
	defer session.Release()

	user, err := session.Bank.Login(r.Context(), req.Username, req.Password)
	h.record(err == nil)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials", err.Error())
			return
		}
		writeError(w, mapDomainError(err), "login failed", err.Error())
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (h *AuthHandler) record(ok bool) {
	if h.recorder != nil {
		h.recorder.LoginAttempt(ok)
	}
}
