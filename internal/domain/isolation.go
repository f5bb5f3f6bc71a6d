package domain

import "strings"

// IsolationLevel is the isolation applied to transactions begun after it
// is set.
type IsolationLevel string

const (
	// ReadCommitted: each statement sees data committed before it began.
	ReadCommitted IsolationLevel = "READ_COMMITTED"
	// RepeatableRead: every statement sees the snapshot taken at
	// transaction start. Write skew is still possible.
	RepeatableRead IsolationLevel = "REPEATABLE_READ"
	// Serializable: transactions behave as if run one after another; the
	// engine may abort with a retryable serialization failure.
	Serializable IsolationLevel = "SERIALIZABLE"

	DefaultIsolationLevel = ReadCommitted
)

// IsValid reports whether the level is one of the supported levels.
func (l IsolationLevel) IsValid() bool {
	switch l {
	case ReadCommitted, RepeatableRead, Serializable:
		return true
	}
	return false
}

func (l IsolationLevel) String() string {
	return string(l)
}

// ParseIsolationLevel accepts READ_COMMITTED, REPEATABLE_READ or
// SERIALIZABLE, case-insensitive, with spaces or underscores.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")

	level := IsolationLevel(normalized)
	if !level.IsValid() {
		return "", ErrInvalidIsolationLevel
	}

	return level, nil
}
