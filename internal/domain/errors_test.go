package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewEngineError("commit", cause)

	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected EngineError to match ErrEngine")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to stay reachable")
	}
	if err.Error() != "commit: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestAsEngineError(t *testing.T) {
	if AsEngineError("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}

	wrapped := AsEngineError("exec", ErrNoSuchTransaction)
	if !errors.Is(wrapped, ErrEngine) || !errors.Is(wrapped, ErrNoSuchTransaction) {
		t.Fatalf("expected engine error wrapping ErrNoSuchTransaction, got %v", wrapped)
	}

	original := &EngineError{Op: "lock", Err: errors.New("deadlock"), Retryable: true}
	nested := fmt.Errorf("transfer: %w", original)
	if got := AsEngineError("transfer", nested); got != nested {
		t.Fatalf("expected existing engine error to be returned unchanged")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
	if IsRetryable(NewEngineError("exec", errors.New("syntax"))) {
		t.Fatalf("engine errors are not retryable unless flagged")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", &EngineError{Op: "lock", Retryable: true})) {
		t.Fatalf("expected flagged engine error to be retryable")
	}
}

func TestIsBusinessError(t *testing.T) {
	if !IsBusinessError(fmt.Errorf("%w: same account", ErrInvalidTransfer)) {
		t.Fatalf("precondition failures are business errors")
	}
	if !IsBusinessError(ErrInsufficientBalance) {
		t.Fatalf("insufficient balance is a business error")
	}
	if IsBusinessError(NewEngineError("exec", errors.New("boom"))) {
		t.Fatalf("engine failures are not business errors")
	}
}

func TestParseIsolationLevel(t *testing.T) {
	tests := []struct {
		input string
		want  IsolationLevel
	}{
		{"READ_COMMITTED", ReadCommitted},
		{"repeatable_read", RepeatableRead},
		{"serializable", Serializable},
		{"repeatable read", RepeatableRead},
	}

	for _, tt := range tests {
		got, err := ParseIsolationLevel(tt.input)
		if err != nil {
			t.Fatalf("ParseIsolationLevel(%q) unexpected error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("ParseIsolationLevel(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}

	if _, err := ParseIsolationLevel("READ_UNCOMMITTED"); !errors.Is(err, ErrInvalidIsolationLevel) {
		t.Fatalf("expected ErrInvalidIsolationLevel, got %v", err)
	}
}
