package domain

import (
	"github.com/holiman/uint256"

	dErrors "smartcore/pkg/domainerrors"
)

// Amount helpers. Token quantities are 256-bit unsigned integers carried as
// *uint256.Int throughout the core; callers must treat values as immutable
// and allocate a fresh Int for arithmetic results.

// ParseAmount constructs an amount from a decimal string.
//
// Errors: returns CodeInvalidInput for empty, malformed, or overflowing
// values.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount cannot be empty")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be an unsigned decimal integer")
	}
	return v, nil
}

// NewAmount returns an amount from a uint64, for wiring and tests.
func NewAmount(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// CloneAmount returns a defensive copy, treating nil as zero.
func CloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}
