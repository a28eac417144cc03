package token

import "errors"

// Gate precondition failures. Services wrap these with domainerrors codes
// at the boundary; tests and integrators match with errors.Is.
var (
	ErrRecipientNotVerified = errors.New("recipient not verified")
	ErrSenderFrozen         = errors.New("sender address frozen")
	ErrRecipientFrozen      = errors.New("recipient address frozen")
	ErrTokenPaused          = errors.New("token paused")
	ErrTokenNotPaused       = errors.New("token not paused")

	// ErrYieldScheduleActive blocks minting once the attached yield
	// schedule has started; new supply would dilute accrued entitlements.
	ErrYieldScheduleActive = errors.New("yield schedule active")
	// ErrYieldScheduleAlreadySet enforces the set-once schedule link.
	ErrYieldScheduleAlreadySet = errors.New("yield schedule already set")

	ErrNoTokensToRecover    = errors.New("no tokens to recover")
	ErrRecoveryTargetFrozen = errors.New("recovery target address frozen")

	ErrInvalidAmount = errors.New("amount must be positive")
)
