package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/bankito/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"
)

// ReplayRecorder counts replayed responses.
type ReplayRecorder interface {
	IdempotentReplay()
}

// IdempotencyMiddleware replays the stored response of a request that was
// already served under the same key. Keys are scoped to the caller.
type IdempotencyMiddleware struct {
	store    usecase.IdempotencyStore
	recorder ReplayRecorder
	logger   zerolog.Logger
	ttl      time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware. recorder
// may be nil.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration, recorder ReplayRecorder, logger zerolog.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}

	return &IdempotencyMiddleware{
		store:    store,
		recorder: recorder,
		logger:   logger,
		ttl:      ttl,
	}
}

type storedResponse struct {
	Body   json.RawMessage `json:"body"`
	Status int             `json:"status"`
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		if user, ok := GetUserFromContext(r.Context()); ok {
			key = strconv.FormatInt(user.ID, 10) + ":" + key
		}

		reserved, cached, err := m.store.Reserve(r.Context(), key, m.ttl)
		if err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("idempotency check failed")
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		if !reserved {
			m.replay(w, cached)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// The request may have been cancelled by the client.
		ctx := context.WithoutCancel(r.Context())

		if recorder.statusCode >= 200 && recorder.statusCode < 300 {
			payload, err := json.Marshal(storedResponse{
				Status: recorder.statusCode,
				Body:   recorder.body.Bytes(),
			})
			if err == nil {
				err = m.store.Complete(ctx, key, payload, m.ttl)
			}
			if err != nil {
				m.logger.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
			}
			return
		}

		if err := m.store.Release(ctx, key); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
		}
	})
}

func (m *IdempotencyMiddleware) replay(w http.ResponseWriter, cached []byte) {
	if len(cached) == 0 {
		http.Error(w, "a request with this idempotency key is in progress", http.StatusConflict)
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(cached, &stored); err != nil {
		http.Error(w, "corrupt idempotent response", http.StatusInternalServerError)
		return
	}

	if m.recorder != nil {
		m.recorder.IdempotentReplay()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(stored.Status)
	w.Write(stored.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
