package yield

import (
	"errors"
	"fmt"
)

// Construction and lifecycle failures.
var (
	ErrInvalidStartDate = errors.New("start date must be in the future")
	ErrInvalidEndDate   = errors.New("end date must be after start date")
	ErrInvalidRate      = errors.New("rate must be positive")
	ErrInvalidInterval  = errors.New("interval must be positive")

	ErrScheduleNotActive = errors.New("schedule not active")
	ErrNoYieldAvailable  = errors.New("no yield available")

	ErrInvalidAmount                 = errors.New("amount must be positive")
	ErrInvalidUnderlyingAsset        = errors.New("underlying asset recipient is required")
	ErrInsufficientUnderlyingBalance = errors.New("insufficient underlying asset balance")
)

// InvalidPeriodError reports a period outside [1, totalPeriods].
type InvalidPeriodError struct {
	Period int
	Total  int
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period %d: schedule has %d periods", e.Period, e.Total)
}
