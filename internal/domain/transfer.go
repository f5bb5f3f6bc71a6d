package domain

import (
	"fmt"
	"strings"
	"time"
)

// TransferOptions selects which safety mechanisms a transfer gives up.
// The zero value is the safe policy: locks taken, in ascending id order.
type TransferOptions struct {
	// SkipConsistentLock locks accounts in call order instead of ascending
	// id order. Two opposite transfers over the same pair can deadlock.
	SkipConsistentLock bool
	// SkipForUpdate takes no row locks at all. Concurrent transfers may
	// read a stale balance and overdraw the source.
	SkipForUpdate bool
}

// Weakened reports whether any safety mechanism is disabled.
func (o TransferOptions) Weakened() bool {
	return o.SkipConsistentLock || o.SkipForUpdate
}

// Scenario names accepted from the command line.
const (
	ScenarioSafe               = "safe"
	ScenarioDefault            = "default"
	ScenarioSkipConsistentLock = "skip_consistent_lock"
	ScenarioSkipForUpdate      = "skip_for_update"
)

// ParseScenario maps a scenario word to transfer options. Unknown words
// are rejected rather than silently treated as safe.
func ParseScenario(s string) (TransferOptions, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ScenarioSafe, ScenarioDefault, "":
		return TransferOptions{}, nil
	case ScenarioSkipConsistentLock:
		return TransferOptions{SkipConsistentLock: true}, nil
	case ScenarioSkipForUpdate:
		return TransferOptions{SkipForUpdate: true}, nil
	default:
		return TransferOptions{}, fmt.Errorf("%w: %q (want %s, %s or %s)", ErrInvalidScenario, s,
			ScenarioSafe, ScenarioSkipConsistentLock, ScenarioSkipForUpdate)
	}
}

// LockOrder returns the order in which the two accounts of a transfer
// are locked.
func (o TransferOptions) LockOrder(sourceID, destinationID int64) [2]int64 {
	if o.SkipConsistentLock || sourceID < destinationID {
		return [2]int64{sourceID, destinationID}
	}
	return [2]int64{destinationID, sourceID}
}

// ValidateTransfer checks the preconditions that must hold before any
// transaction is opened.
func ValidateTransfer(userID int64, source *Account, destinationID, amount int64) error {
	if source == nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransfer, ErrAccountNotFound)
	}

	if source.UserID != userID {
		return fmt.Errorf("%w: account does not belong to the current user", ErrInvalidTransfer)
	}

	if !source.IsActive() {
		return fmt.Errorf("%w: account must be active", ErrInvalidTransfer)
	}

	if source.ID == destinationID {
		return fmt.Errorf("%w: can not transfer to same account as origin", ErrInvalidTransfer)
	}

	if err := ValidateAmount(amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}

	return nil
}

// TransferLine is one side of a transfer joined with its counterpart,
// as listed for an account.
type TransferLine struct {
	CreatedAt    time.Time
	ReferenceID  string
	Type         EntryType
	Origin       string
	Destination  string
	Description  string
	Amount       int64
	BalanceAfter int64
}
