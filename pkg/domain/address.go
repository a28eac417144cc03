package domain

import (
	"encoding/hex"
	"strings"

	dErrors "smartcore/pkg/domainerrors"
)

// Address identifies an account, identity, or issuer on the ledger.
// Invariant: a non-zero Address is always "0x" followed by 40 lowercase hex
// characters.
//
// Usage: construct via ParseAddress at trust boundaries to enforce the
// format; direct casting bypasses validation.
type Address string

// ZeroAddress is the null account. Mints originate from it and burns are
// sent to it; it can never hold a balance.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress constructs an Address from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, has the wrong
// length, or contains non-hex characters.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must start with 0x")
	}
	body := strings.ToLower(s[2:])
	if len(body) != 40 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address contains non-hex characters")
	}
	return Address("0x" + body), nil
}

// IsZero reports whether the address is the null account.
func (a Address) IsZero() bool {
	return a == ZeroAddress || a == ""
}

// String returns the canonical lowercase form.
func (a Address) String() string {
	return string(a)
}
