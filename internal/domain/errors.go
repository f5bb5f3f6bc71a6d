package domain

import (
	"errors"
	"fmt"
)

var (
	// Transfer errors
	ErrInvalidTransfer     = errors.New("invalid transfer")
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrInvalidScenario     = errors.New("invalid transfer scenario")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")

	// Session errors
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("no user found with those credentials")
	ErrNotLoggedIn           = errors.New("no user logged in")
	ErrInvalidIsolationLevel = errors.New("invalid isolation level, must be one of: READ_COMMITTED, REPEATABLE_READ, SERIALIZABLE")
	ErrNoSuchTransaction     = errors.New("no such transaction in progress")
	ErrTransactionInProgress = errors.New("session already has a transaction in progress")
	ErrEngine                = errors.New("storage engine failure")
)

// EngineError is a failure reported by the storage layer: connectivity,
// lock timeout, deadlock victim selection or serialization conflict.
// The whole transfer may be re-issued when Retryable is set.
type EngineError struct {
	Op        string
	Err       error
	Retryable bool
}

// NewEngineError wraps err as an engine failure of op.
func NewEngineError(op string, err error) *EngineError {
	return &EngineError{Op: op, Err: err}
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrEngine)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is reports every EngineError as ErrEngine.
func (e *EngineError) Is(target error) bool {
	return target == ErrEngine
}

// AsEngineError returns err unchanged when it already carries an
// EngineError, otherwise wraps it.
func AsEngineError(op string, err error) error {
	if err == nil {
		return nil
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return err
	}

	return NewEngineError(op, err)
}

// IsRetryable reports whether err is an engine failure worth re-issuing
// the whole transfer for.
func IsRetryable(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Retryable
	}
	return false
}

// IsBusinessError reports whether err is a rule or precondition failure
// that must reach the caller unchanged.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidTransfer) || errors.Is(err, ErrInsufficientBalance)
}
