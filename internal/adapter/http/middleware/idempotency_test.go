package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
	"github.com/iho/bankito/internal/usecase/mocks"
)

type countingReplays struct {
	count int
}

func (c *countingReplays) IdempotentReplay() {
	c.count++
}

func newTransferRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req.WithContext(WithUser(req.Context(), &domain.User{ID: 7, Username: "alice"}))
}

func TestIdempotencyMiddleware_StoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Reserve(gomock.Any(), "7:key-err", time.Hour).
		Return(false, nil, context.DeadlineExceeded)

	mw := NewIdempotencyMiddleware(store, time.Hour, nil, zerolog.Nop())

	var called bool
	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, newTransferRequest("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	var stored []byte
	gomock.InOrder(
		store.EXPECT().Reserve(gomock.Any(), "7:key-ok", usecase.IdempotencyKeyTTL).Return(true, nil, nil),
		store.EXPECT().Complete(gomock.Any(), "7:key-ok", gomock.Any(), usecase.IdempotencyKeyTTL).
			DoAndReturn(func(_ context.Context, _ string, response []byte, _ time.Duration) error {
				stored = response
				return nil
			}),
	)

	mw := NewIdempotencyMiddleware(store, 0, nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"balance":"70.00"}`))
	})).ServeHTTP(rr, newTransferRequest("key-ok"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	var got storedResponse
	if err := json.Unmarshal(stored, &got); err != nil {
		t.Fatalf("stored response is not valid JSON: %v", err)
	}

	if got.Status != http.StatusCreated || string(got.Body) != `{"balance":"70.00"}` {
		t.Fatalf("unexpected stored response: %+v", got)
	}
}

func TestIdempotencyMiddleware_ReleasesFailedResponses(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	gomock.InOrder(
		store.EXPECT().Reserve(gomock.Any(), "7:key-fail", time.Hour).Return(true, nil, nil),
		store.EXPECT().Release(gomock.Any(), "7:key-fail").Return(nil),
	)

	mw := NewIdempotencyMiddleware(store, time.Hour, nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})).ServeHTTP(rr, newTransferRequest("key-fail"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	payload, _ := json.Marshal(storedResponse{Status: http.StatusCreated, Body: []byte(`{"id":1}`)})
	store.EXPECT().Reserve(gomock.Any(), "7:key-done", time.Hour).Return(false, payload, nil)

	replays := &countingReplays{}
	mw := NewIdempotencyMiddleware(store, time.Hour, replays, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on replay")
	})).ServeHTTP(rr, newTransferRequest("key-done"))

	if rr.Code != http.StatusCreated || rr.Body.String() != `{"id":1}` {
		t.Fatalf("unexpected replay: %d %s", rr.Code, rr.Body.String())
	}

	if rr.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected replay header")
	}

	if replays.count != 1 {
		t.Fatalf("expected one recorded replay, got %d", replays.count)
	}
}

func TestIdempotencyMiddleware_InFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Reserve(gomock.Any(), "7:key-busy", time.Hour).Return(false, nil, nil)

	mw := NewIdempotencyMiddleware(store, time.Hour, nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while another request holds the key")
	})).ServeHTTP(rr, newTransferRequest("key-busy"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_SkipsWithoutKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	mw := NewIdempotencyMiddleware(store, time.Hour, nil, zerolog.Nop())

	var called bool
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(httptest.NewRecorder(), req)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	get.Header.Set(IdempotencyKeyHeader, "ignored")
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(httptest.NewRecorder(), get)

	if !called {
		t.Fatalf("expected handler to run without idempotency key")
	}
}
