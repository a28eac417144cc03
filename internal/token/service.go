// Package token hosts the transfer/mint/burn gate: the single place every
// balance mutation passes through. It composes identity verification, the
// compliance module chain, custodian freeze state, and the collateral gate
// into one fail-fast precondition sequence, then applies the mutation and
// fires post-hooks.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"smartcore/internal/audit"
	"smartcore/internal/collateral"
	"smartcore/internal/compliance"
	"smartcore/internal/custodian"
	"smartcore/internal/ledger"
	"smartcore/internal/platform/clock"
	"smartcore/internal/token/metrics"
	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
)

// Verifier is the identity-verification capability the gate consumes.
type Verifier interface {
	IsVerified(ctx context.Context, addr domain.Address, topics []domain.Topic) (bool, error)
}

// CollateralGate is the mint-time backing check.
type CollateralGate interface {
	CheckMint(ctx context.Context, tokenIdentity domain.Address, totalSupply, mintAmount *uint256.Int) error
}

// YieldSchedule is the slice of the yield engine the gate needs: whether
// accrual has begun, which blocks further minting.
type YieldSchedule interface {
	StartDate() uint64
}

// AuditPublisher records gate operations; failures must not abort the
// operation that already happened.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is one permissioned token: a ledger plus the gate around it.
type Service struct {
	name     string
	symbol   string
	decimals uint8
	// identity is the token's own identity address, the subject of
	// collateral claims.
	identity       domain.Address
	requiredTopics []domain.Topic

	verifier   Verifier
	chain      *compliance.Chain
	custody    *custodian.State
	collateral CollateralGate
	ledger     *ledger.Ledger
	clock      clock.Clock

	// opMu serializes state-mutating operations: the precondition checks
	// and the mutation they authorize must observe the same ledger and
	// custody state, or concurrent transfers could both spend the same
	// available balance.
	opMu sync.Mutex

	// mu guards the pause flag and the schedule link only.
	mu       sync.Mutex
	paused   bool
	schedule YieldSchedule

	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Config captures the static token parameters.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8
	// Identity is the token's own identity address (collateral claims
	// subject). Leave zero to disable the collateral gate even when one is
	// injected.
	Identity domain.Address
	// RequiredTopics are the claim topics every counterparty must hold.
	RequiredTopics []domain.Topic
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithCollateralGate(g CollateralGate) Option {
	return func(s *Service) { s.collateral = g }
}

// New assembles a token gate. The verifier, chain, custodian state, ledger,
// and clock are mandatory collaborators.
func New(cfg Config, verifier Verifier, chain *compliance.Chain, custody *custodian.State, led *ledger.Ledger, clk clock.Clock, opts ...Option) (*Service, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if chain == nil {
		return nil, fmt.Errorf("compliance chain is required")
	}
	if custody == nil {
		return nil, fmt.Errorf("custodian state is required")
	}
	if led == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	topics := cfg.RequiredTopics
	if len(topics) == 0 {
		topics = []domain.Topic{domain.TopicKYC}
	}
	s := &Service{
		name:           cfg.Name,
		symbol:         cfg.Symbol,
		decimals:       cfg.Decimals,
		identity:       cfg.Identity,
		requiredTopics: topics,
		verifier:       verifier,
		chain:          chain,
		custody:        custody,
		ledger:         led,
		clock:          clk,
		logger:         slog.Default(),
		tracer:         otel.Tracer("smartcore/internal/token"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the token name.
func (s *Service) Name() string { return s.name }

// Symbol returns the token symbol.
func (s *Service) Symbol() string { return s.symbol }

// Decimals returns the token's fixed-point scale.
func (s *Service) Decimals() uint8 { return s.decimals }

// Chain exposes the compliance chain for module administration.
func (s *Service) Chain() *compliance.Chain { return s.chain }

// BalanceOf returns the live balance.
func (s *Service) BalanceOf(addr domain.Address) *uint256.Int {
	return s.ledger.BalanceOf(addr)
}

// AvailableBalanceOf returns balance minus the partially frozen amount.
func (s *Service) AvailableBalanceOf(addr domain.Address) *uint256.Int {
	bal := s.ledger.BalanceOf(addr)
	frozen := s.custody.FrozenAmount(addr)
	if frozen.Gt(bal) {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(bal, frozen)
}

// TotalSupply returns the live total supply.
func (s *Service) TotalSupply() *uint256.Int {
	return s.ledger.TotalSupply()
}

// BalanceOfAt returns the balance at a strictly past timepoint.
func (s *Service) BalanceOfAt(addr domain.Address, timepoint uint64) (*uint256.Int, error) {
	v, err := s.ledger.BalanceOfAt(addr, timepoint)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "historical balance lookup")
	}
	return v, nil
}

// TotalSupplyAt returns the total supply at a strictly past timepoint.
func (s *Service) TotalSupplyAt(timepoint uint64) (*uint256.Int, error) {
	v, err := s.ledger.TotalSupplyAt(timepoint)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "historical supply lookup")
	}
	return v, nil
}

// IsFrozen reports the binary freeze flag.
func (s *Service) IsFrozen(addr domain.Address) bool {
	return s.custody.IsFrozen(addr)
}

// FrozenAmount returns the partially frozen amount.
func (s *Service) FrozenAmount(addr domain.Address) *uint256.Int {
	return s.custody.FrozenAmount(addr)
}

// Paused reports the token-level pause flag.
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Mint creates amount for to after the full gate sequence.
func (s *Service) Mint(ctx context.Context, to domain.Address, amount *uint256.Int) error {
	ctx, span := s.tracer.Start(ctx, "token.mint")
	defer span.End()

	start := time.Now()
	err := s.mint(ctx, to, amount)
	s.record(ctx, "mint", start, err, audit.Event{
		Action:  audit.ActionMint,
		Subject: to,
		Details: map[string]string{"amount": amount.Dec()},
	})
	return err
}

func (s *Service) mint(ctx context.Context, to domain.Address, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "mint recipient is required")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkUpdate(ctx, domain.ZeroAddress, to, amount, false); err != nil {
		return err
	}
	s.ledger.Credit(ctx, to, amount)
	s.chain.Created(ctx, to, amount)
	return nil
}

// Transfer moves amount between holders through the ordinary (non-forced)
// gate path.
func (s *Service) Transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) error {
	ctx, span := s.tracer.Start(ctx, "token.transfer")
	defer span.End()

	start := time.Now()
	err := s.transfer(ctx, from, to, amount, false)
	s.record(ctx, "transfer", start, err, audit.Event{
		Action:  audit.ActionTransfer,
		Subject: from,
		Details: map[string]string{"to": to.String(), "amount": amount.Dec()},
	})
	return err
}

// ForcedTransfer is the custodian-privileged transfer: it ignores the
// sender freeze flag, may consume frozen tokens, and clamps the frozen
// amount so frozen <= balance still holds afterwards.
func (s *Service) ForcedTransfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) error {
	ctx, span := s.tracer.Start(ctx, "token.forced_transfer")
	defer span.End()

	start := time.Now()
	err := s.transfer(ctx, from, to, amount, true)
	s.record(ctx, "forced_transfer", start, err, audit.Event{
		Action:  audit.ActionForcedTransfer,
		Subject: from,
		Details: map[string]string{"to": to.String(), "amount": amount.Dec()},
	})
	return err
}

func (s *Service) transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int, forced bool) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer endpoints are required")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkUpdate(ctx, from, to, amount, forced); err != nil {
		return err
	}
	if err := s.ledger.Move(ctx, from, to, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRejected, "transfer failed")
	}
	if forced {
		s.custody.ClampFrozen(from, s.ledger.BalanceOf(from))
	}
	s.chain.Transferred(ctx, from, to, amount)
	return nil
}

// Burn destroys amount from a holder. Burning is custodian-privileged in
// this framework: it operates on the total balance and unfreezes on demand
// when it dips into frozen territory.
func (s *Service) Burn(ctx context.Context, from domain.Address, amount *uint256.Int) error {
	ctx, span := s.tracer.Start(ctx, "token.burn")
	defer span.End()

	start := time.Now()
	err := s.burn(ctx, from, amount)
	s.record(ctx, "burn", start, err, audit.Event{
		Action:  audit.ActionBurn,
		Subject: from,
		Details: map[string]string{"amount": amount.Dec()},
	})
	return err
}

func (s *Service) burn(ctx context.Context, from domain.Address, amount *uint256.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if from.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "burn source is required")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.checkUpdate(ctx, from, domain.ZeroAddress, amount, true); err != nil {
		return err
	}
	if err := s.ledger.Debit(ctx, from, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRejected, "burn failed")
	}
	s.custody.ClampFrozen(from, s.ledger.BalanceOf(from))
	s.chain.Destroyed(ctx, from, amount)
	return nil
}

// checkUpdate is the gate's precondition sequence, run with opMu held.
// Order is load-bearing: the first failing check wins and nothing mutates.
func (s *Service) checkUpdate(ctx context.Context, from, to domain.Address, amount *uint256.Int, forced bool) error {
	mint := from.IsZero()

	// 1. Recipient identity verification.
	if !to.IsZero() {
		verified, err := s.verifier.IsVerified(ctx, to, s.requiredTopics)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "identity verification failed")
		}
		if !verified {
			return dErrors.Wrap(ErrRecipientNotVerified, dErrors.CodeRejected, "recipient not verified")
		}
	}

	// 2. Recipient freeze flag.
	if !to.IsZero() && s.custody.IsFrozen(to) {
		return dErrors.Wrap(ErrRecipientFrozen, dErrors.CodeRejected, "recipient address frozen")
	}

	// 3. Sender freeze flag and balance sufficiency. Forced paths skip the
	// flag and spend against the total balance.
	if !mint {
		if !forced {
			if s.custody.IsFrozen(from) {
				return dErrors.Wrap(ErrSenderFrozen, dErrors.CodeRejected, "sender address frozen")
			}
			available := s.AvailableBalanceOf(from)
			if amount.Gt(available) {
				return dErrors.Wrap(
					&ledger.InsufficientBalanceError{Account: from, Available: available, Requested: amount.Clone()},
					dErrors.CodeRejected, "insufficient available balance")
			}
		} else {
			balance := s.ledger.BalanceOf(from)
			if amount.Gt(balance) {
				return dErrors.Wrap(
					&ledger.InsufficientBalanceError{Account: from, Available: balance, Requested: amount.Clone()},
					dErrors.CodeRejected, "insufficient balance")
			}
		}
	}

	// 4. Collateral backing (mint only).
	if mint && s.collateral != nil && !s.identity.IsZero() {
		if err := s.collateral.CheckMint(ctx, s.identity, s.ledger.TotalSupply(), amount); err != nil {
			var insufficient *collateral.InsufficientCollateralError
			if errors.As(err, &insufficient) {
				return dErrors.Wrap(err, dErrors.CodeRejected, "collateral check failed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "collateral check failed")
		}
	}

	// 5. Minting is blocked once yield accrual has begun.
	if mint {
		s.mu.Lock()
		schedule := s.schedule
		s.mu.Unlock()
		if schedule != nil && s.clock.Now() >= schedule.StartDate() {
			return dErrors.Wrap(ErrYieldScheduleActive, dErrors.CodeRejected, "minting blocked while yield schedule is active")
		}
	}

	// 6. Compliance module chain, in registration order.
	if err := s.chain.ValidateTransfer(ctx, from, to, amount); err != nil {
		if s.metrics != nil {
			var rejection *compliance.RejectionError
			if errors.As(err, &rejection) {
				s.metrics.ComplianceRejections.Inc()
			}
		}
		return dErrors.Wrap(err, dErrors.CodeRejected, "compliance check failed")
	}

	// 7. Token-level pause flag.
	if s.Paused() {
		return dErrors.Wrap(ErrTokenPaused, dErrors.CodeRejected, "token paused")
	}

	return nil
}

func validateAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return dErrors.Wrap(ErrInvalidAmount, dErrors.CodeInvalidInput, "amount must be positive")
	}
	return nil
}

// record updates metrics and emits the audit event for a completed (or
// rejected) operation. start is the operation's entry time.
func (s *Service) record(ctx context.Context, op string, start time.Time, opErr error, event audit.Event) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, opErr)
		s.metrics.ObserveOperation(start)
	}
	if opErr != nil || s.auditor == nil {
		return
	}
	event.Token = s.symbol
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "op", op, "error", err)
	}
}
