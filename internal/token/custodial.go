package token

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"smartcore/internal/audit"
	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
)

// SetAddressFrozen toggles the binary freeze on an account. Idempotent on
// state; the audit trail still records duplicate calls.
func (s *Service) SetAddressFrozen(ctx context.Context, addr domain.Address, frozen bool) error {
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "account address is required")
	}
	start := time.Now()
	s.custody.SetFrozen(addr, frozen)
	s.record(ctx, "set_address_frozen", start, nil, audit.Event{
		Action:  audit.ActionAddressFrozen,
		Subject: addr,
		Details: map[string]string{"frozen": boolString(frozen)},
	})
	return nil
}

// FreezePartialTokens locks amount of addr's unfrozen balance.
func (s *Service) FreezePartialTokens(ctx context.Context, addr domain.Address, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	start := time.Now()
	// The balance read and the freeze must see the same ledger state.
	s.opMu.Lock()
	err := s.custody.FreezePartial(addr, amount, s.ledger.BalanceOf(addr))
	s.opMu.Unlock()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeRejected, "partial freeze failed")
	}
	s.record(ctx, "freeze_partial", start, nil, audit.Event{
		Action:  audit.ActionPartialFreeze,
		Subject: addr,
		Details: map[string]string{"amount": amount.Dec()},
	})
	return nil
}

// UnfreezePartialTokens releases amount of addr's frozen balance.
func (s *Service) UnfreezePartialTokens(ctx context.Context, addr domain.Address, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	start := time.Now()
	if err := s.custody.UnfreezePartial(addr, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRejected, "partial unfreeze failed")
	}
	s.record(ctx, "unfreeze_partial", start, nil, audit.Event{
		Action:  audit.ActionPartialUnfreeze,
		Subject: addr,
		Details: map[string]string{"amount": amount.Dec()},
	})
	return nil
}

// RecoverAddress transplants the whole position (balance, frozen amount,
// freeze flag) from a lost wallet to a replacement and unfreezes the lost
// wallet. This is deliberately not a transfer: the ordinary gate
// preconditions do not apply, because the lost wallet is presumed
// compromised or inaccessible. newIdentity is the replacement wallet's
// identity, recorded for the audit trail.
func (s *Service) RecoverAddress(ctx context.Context, lost, next, newIdentity domain.Address) error {
	if lost.IsZero() || next.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "lost and replacement addresses are required")
	}
	start := time.Now()
	balance, err := s.recover(ctx, lost, next)
	if err != nil {
		return err
	}

	s.record(ctx, "recover_address", start, nil, audit.Event{
		Action:  audit.ActionRecovery,
		Subject: lost,
		Details: map[string]string{
			"new_wallet":   next.String(),
			"new_identity": newIdentity.String(),
			"amount":       balance.Dec(),
		},
	})
	return nil
}

// recover runs the transplant under opMu so the balance read, the custody
// transplant, and the ledger move form one step no transfer can interleave.
func (s *Service) recover(ctx context.Context, lost, next domain.Address) (*uint256.Int, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	balance := s.ledger.BalanceOf(lost)
	if balance.IsZero() {
		return nil, dErrors.Wrap(ErrNoTokensToRecover, dErrors.CodeRejected, "no tokens to recover")
	}
	if s.custody.IsFrozen(next) {
		return nil, dErrors.Wrap(ErrRecoveryTargetFrozen, dErrors.CodeRejected, "recovery target address frozen")
	}

	// Move the freeze state first so the frozen <= balance invariant holds
	// for the replacement wallet the moment the balance lands.
	s.custody.Transplant(lost, next)
	if err := s.ledger.Move(ctx, lost, next, balance); err != nil {
		// The balance was read under opMu; a move of the exact amount
		// cannot fail.
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "recovery transplant failed")
	}
	return balance, nil
}

// Pause blocks all mint/transfer/burn operations.
func (s *Service) Pause(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return dErrors.Wrap(ErrTokenPaused, dErrors.CodeConflict, "token already paused")
	}
	s.paused = true
	s.mu.Unlock()
	s.record(ctx, "pause", start, nil, audit.Event{Action: audit.ActionPause})
	return nil
}

// Unpause resumes operations.
func (s *Service) Unpause(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return dErrors.Wrap(ErrTokenNotPaused, dErrors.CodeConflict, "token not paused")
	}
	s.paused = false
	s.mu.Unlock()
	s.record(ctx, "unpause", start, nil, audit.Event{Action: audit.ActionUnpause})
	return nil
}

// SetYieldSchedule links the yield schedule. The link is set-once: tokens
// cannot swap schedules mid-life.
func (s *Service) SetYieldSchedule(schedule YieldSchedule) error {
	if schedule == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "yield schedule is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule != nil {
		return dErrors.Wrap(ErrYieldScheduleAlreadySet, dErrors.CodeConflict, "yield schedule already set")
	}
	s.schedule = schedule
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
