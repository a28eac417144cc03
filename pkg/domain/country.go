package domain

import (
	"strconv"

	dErrors "smartcore/pkg/domainerrors"
)

// CountryCode is an ISO-3166-1 numeric country code registered against an
// investor identity. Zero means "not registered".
type CountryCode uint16

// Codes used widely in tests and default policy sets.
const (
	CountryBelgium       CountryCode = 56
	CountryFrance        CountryCode = 250
	CountryNetherlands   CountryCode = 528
	CountryUnitedStates  CountryCode = 840
	CountryUnitedKingdom CountryCode = 826
)

// ParseCountryCode constructs a CountryCode from external input.
func ParseCountryCode(s string) (CountryCode, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "country code cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "country code must be a positive 16-bit integer")
	}
	return CountryCode(v), nil
}

func (c CountryCode) String() string {
	return strconv.FormatUint(uint64(c), 10)
}
