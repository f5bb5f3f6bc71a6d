package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidAccountName = errors.New("invalid account name")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrDescriptionTooLong = errors.New("description too long")
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MaxDescriptionLength = 255
	MaxTransferAmount    = int64(100_000_000_000) // 1 billion in major units

	// MinorUnitExponent is the number of decimal places between minor and
	// major currency units.
	MinorUnitExponent = 2

	maxAmountExponent = 12
)

// ValidateAccountName validates an account name used for lookups.
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}

	if utf8.RuneCountInString(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	return nil
}

// ValidateAmount validates a transfer amount in minor units.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if amount > MaxTransferAmount {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, FormatAmount(MaxTransferAmount))
	}

	return nil
}

// ValidateDescription validates a ledger entry description.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrDescriptionTooLong, MaxDescriptionLength)
	}
	return nil
}

// FormatAmount renders minor units as a fixed-point major unit string,
// e.g. 12345 -> "123.45".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}

// ParseAmount reads a major unit amount such as "12.5" into minor units.
// More than MinorUnitExponent decimal places are rejected.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}

	// Rescaling costs grow with the exponent, so bound it before any
	// arithmetic. MaxTransferAmount has 12 digits in minor units.
	if d.Exponent() < -MinorUnitExponent {
		return 0, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, MinorUnitExponent)
	}
	if d.Exponent() > maxAmountExponent {
		return 0, fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, FormatAmount(MaxTransferAmount))
	}

	minor := d.Shift(MinorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, MinorUnitExponent)
	}

	if minor.GreaterThan(decimal.NewFromInt(MaxTransferAmount)) {
		return 0, fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, FormatAmount(MaxTransferAmount))
	}

	if err := ValidateAmount(minor.IntPart()); err != nil {
		return 0, err
	}

	return minor.IntPart(), nil
}
