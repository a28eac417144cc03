// Package yield implements the fixed yield schedule: period-based, pro-rata
// accrual computed by replaying historical holder balances at period
// boundaries, paid from a pre-funded reserve of a separate payment asset.
package yield

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"smartcore/internal/audit"
	"smartcore/internal/platform/clock"
	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
)

// rateDenominator scales basis-point rates.
var rateDenominator = uint256.NewInt(10000)

// Schedule is one fixed-yield schedule bound 1:1 to a token. The date and
// rate parameters are immutable after construction; only the per-holder
// claim cursor advances.
type Schedule struct {
	id      uuid.UUID
	reserve domain.Address

	token TokenSource
	asset Asset
	clock clock.Clock

	startDate uint64
	endDate   uint64
	interval  uint64
	// rate is the per-period payout in basis points of the held balance.
	rate         *uint256.Int
	basisPerUnit *uint256.Int
	totalPeriods int

	mu          sync.Mutex
	lastClaimed map[domain.Address]int

	auditor *audit.Publisher
	logger  *slog.Logger
}

// Config captures the immutable schedule parameters.
type Config struct {
	// Reserve is the schedule's account on the payment asset.
	Reserve domain.Address
	// StartDate and EndDate are unix-seconds bounds; StartDate must be in
	// the future at construction.
	StartDate uint64
	EndDate   uint64
	// RateBasisPoints is the per-period payout rate (500 = 5%).
	RateBasisPoints uint64
	// IntervalSeconds is the period length.
	IntervalSeconds uint64
}

type Option func(*Schedule)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Schedule) { s.logger = logger }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Schedule) { s.auditor = p }
}

// WithBasisPerUnit overrides the yield basis multiplier (face value for
// bond-style assets). Defaults to 1.
func WithBasisPerUnit(basis *uint256.Int) Option {
	return func(s *Schedule) { s.basisPerUnit = domain.CloneAmount(basis) }
}

// New validates the configuration and builds a schedule.
func New(cfg Config, token TokenSource, asset Asset, clk clock.Clock, opts ...Option) (*Schedule, error) {
	if token == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if asset == nil {
		return nil, fmt.Errorf("payment asset is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	now := clk.Now()
	if cfg.StartDate <= now {
		return nil, dErrors.Wrap(ErrInvalidStartDate, dErrors.CodeInvalidInput, "start date must be in the future")
	}
	if cfg.EndDate <= cfg.StartDate {
		return nil, dErrors.Wrap(ErrInvalidEndDate, dErrors.CodeInvalidInput, "end date must be after start date")
	}
	if cfg.RateBasisPoints == 0 {
		return nil, dErrors.Wrap(ErrInvalidRate, dErrors.CodeInvalidInput, "rate must be positive")
	}
	if cfg.IntervalSeconds == 0 {
		return nil, dErrors.Wrap(ErrInvalidInterval, dErrors.CodeInvalidInput, "interval must be positive")
	}
	duration := cfg.EndDate - cfg.StartDate
	total := int((duration + cfg.IntervalSeconds - 1) / cfg.IntervalSeconds)

	s := &Schedule{
		id:           uuid.New(),
		reserve:      cfg.Reserve,
		token:        token,
		asset:        asset,
		clock:        clk,
		startDate:    cfg.StartDate,
		endDate:      cfg.EndDate,
		interval:     cfg.IntervalSeconds,
		rate:         uint256.NewInt(cfg.RateBasisPoints),
		basisPerUnit: uint256.NewInt(1),
		totalPeriods: total,
		lastClaimed:  make(map[domain.Address]int),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the schedule identifier.
func (s *Schedule) ID() uuid.UUID { return s.id }

// StartDate returns the accrual start timepoint. The token gate consults it
// to block minting once accrual has begun.
func (s *Schedule) StartDate() uint64 { return s.startDate }

// EndDate returns the accrual end timepoint.
func (s *Schedule) EndDate() uint64 { return s.endDate }

// TotalPeriods returns the period count, rounding the final partial
// interval up into a full period slot.
func (s *Schedule) TotalPeriods() int { return s.totalPeriods }

// Reserve returns the schedule's account on the payment asset.
func (s *Schedule) Reserve() domain.Address { return s.reserve }

// CurrentPeriod derives the 1-based running period from the clock: 0 while
// pending, pinned to the final period once concluded.
func (s *Schedule) CurrentPeriod() int {
	return s.currentPeriod(s.clock.Now())
}

func (s *Schedule) currentPeriod(now uint64) int {
	if now < s.startDate {
		return 0
	}
	p := int((now-s.startDate)/s.interval) + 1
	if p > s.totalPeriods {
		return s.totalPeriods
	}
	return p
}

// LastCompletedPeriod is the latest period whose end has passed: one behind
// the running period while active, the final period once concluded.
func (s *Schedule) LastCompletedPeriod() int {
	return s.lastCompletedPeriod(s.clock.Now())
}

func (s *Schedule) lastCompletedPeriod(now uint64) int {
	if now >= s.endDate {
		return s.totalPeriods
	}
	p := s.currentPeriod(now)
	if p == 0 {
		return 0
	}
	return p - 1
}

// PeriodEnd returns the end timepoint of a 1-based period, capped at the
// schedule end for a short final period.
func (s *Schedule) PeriodEnd(period int) (uint64, error) {
	if period <= 0 || period > s.totalPeriods {
		return 0, dErrors.Wrap(
			&InvalidPeriodError{Period: period, Total: s.totalPeriods},
			dErrors.CodeInvalidInput, "invalid period")
	}
	end := s.startDate + uint64(period)*s.interval
	if end > s.endDate {
		end = s.endDate
	}
	return end, nil
}

// LastClaimedPeriod returns the holder's claim cursor.
func (s *Schedule) LastClaimedPeriod(holder domain.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastClaimed[holder]
}

// periodYield is the payout for one completed period: the holder's balance
// at the period end times basis times rate over 10000.
func (s *Schedule) periodYield(holder domain.Address, period int, now uint64) (*uint256.Int, error) {
	end, err := s.PeriodEnd(period)
	if err != nil {
		return nil, err
	}
	var balance *uint256.Int
	if end >= now {
		// A period ending exactly now has no checkpoint strictly before it
		// yet; the live balance is the same value.
		balance = s.token.BalanceOf(holder)
	} else {
		balance, err = s.token.BalanceOfAt(holder, end)
		if err != nil {
			return nil, err
		}
	}
	v := new(uint256.Int).Mul(balance, s.basisPerUnit)
	v.Mul(v, s.rate)
	return v.Div(v, rateDenominator), nil
}

// CalculateAccruedYield reports the holder's total entitlement since period
// one: every completed period plus a pro-rata estimate for the partially
// elapsed current period.
//
// The pro-rata component is a visibility feature and is NOT what ClaimYield
// pays: claims settle completed periods only, so this view over-reports
// relative to an immediate claim. Integrators displaying both must label
// the difference.
func (s *Schedule) CalculateAccruedYield(ctx context.Context, holder domain.Address) (*uint256.Int, error) {
	now := s.clock.Now()
	if now < s.startDate {
		return nil, dErrors.Wrap(ErrScheduleNotActive, dErrors.CodeConflict, "schedule not active")
	}

	total := uint256.NewInt(0)
	completed := s.lastCompletedPeriod(now)
	for p := 1; p <= completed; p++ {
		v, err := s.periodYield(holder, p, now)
		if err != nil {
			return nil, err
		}
		total.Add(total, v)
	}

	// Pro-rata share of the running period, by elapsed seconds.
	if now < s.endDate {
		current := s.currentPeriod(now)
		periodStart := s.startDate + uint64(current-1)*s.interval
		elapsed := now - periodStart
		if elapsed > 0 {
			v := new(uint256.Int).Mul(s.token.BalanceOf(holder), s.basisPerUnit)
			v.Mul(v, s.rate)
			v.Mul(v, uint256.NewInt(elapsed))
			v.Div(v, new(uint256.Int).Mul(uint256.NewInt(s.interval), rateDenominator))
			total.Add(total, v)
		}
	}
	return total, nil
}

// ClaimYield pays the holder everything owed for completed periods past
// their claim cursor, then advances the cursor. The cursor moves before any
// external asset call so a reentrant payment asset observes the claim as
// already settled; a failed reserve check or transfer restores the cursor
// and pays nothing.
func (s *Schedule) ClaimYield(ctx context.Context, holder domain.Address) (*uint256.Int, error) {
	now := s.clock.Now()
	if now < s.startDate {
		return nil, dErrors.Wrap(ErrScheduleNotActive, dErrors.CodeConflict, "schedule not active")
	}

	s.mu.Lock()
	previous := s.lastClaimed[holder]
	completed := s.lastCompletedPeriod(now)

	amount := uint256.NewInt(0)
	for p := previous + 1; p <= completed; p++ {
		v, err := s.periodYield(holder, p, now)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		amount.Add(amount, v)
	}
	if amount.IsZero() {
		s.mu.Unlock()
		return nil, dErrors.Wrap(ErrNoYieldAvailable, dErrors.CodeRejected, "no yield available")
	}

	// Effects before interactions: settle the cursor first, and hold no
	// lock across asset calls so a payment asset that reads schedule state
	// cannot deadlock. Any failure past this point rolls the cursor back.
	s.lastClaimed[holder] = completed
	s.mu.Unlock()
	rollback := func() {
		s.mu.Lock()
		s.lastClaimed[holder] = previous
		s.mu.Unlock()
	}

	reserve, err := s.asset.BalanceOf(ctx, s.reserve)
	if err != nil {
		rollback()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reserve balance check failed")
	}
	if reserve.Lt(amount) {
		rollback()
		return nil, dErrors.Wrap(ErrInsufficientUnderlyingBalance, dErrors.CodeRejected, "insufficient reserve for claim")
	}
	if err := s.asset.Transfer(ctx, s.reserve, holder, amount); err != nil {
		rollback()
		return nil, dErrors.Wrap(err, dErrors.CodeRejected, "yield payout failed")
	}

	s.audit(ctx, audit.ActionYieldClaim, holder, map[string]string{
		"amount":  amount.Dec(),
		"periods": fmt.Sprintf("%d-%d", previous+1, completed),
	})
	return amount, nil
}

// TopUpUnderlyingAsset pulls payment-asset tokens from funder into the
// reserve.
func (s *Schedule) TopUpUnderlyingAsset(ctx context.Context, funder domain.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return dErrors.Wrap(ErrInvalidAmount, dErrors.CodeInvalidInput, "top-up amount must be positive")
	}
	if funder.IsZero() {
		return dErrors.Wrap(ErrInvalidUnderlyingAsset, dErrors.CodeInvalidInput, "funder address is required")
	}
	if err := s.asset.Transfer(ctx, funder, s.reserve, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRejected, "top-up transfer failed")
	}
	s.audit(ctx, audit.ActionYieldTopUp, funder, map[string]string{"amount": amount.Dec()})
	return nil
}

// WithdrawUnderlyingAsset pushes reserve funds to an admin-chosen address.
func (s *Schedule) WithdrawUnderlyingAsset(ctx context.Context, to domain.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return dErrors.Wrap(ErrInvalidAmount, dErrors.CodeInvalidInput, "withdraw amount must be positive")
	}
	if to.IsZero() {
		return dErrors.Wrap(ErrInvalidUnderlyingAsset, dErrors.CodeInvalidInput, "withdraw recipient is required")
	}
	reserve, err := s.asset.BalanceOf(ctx, s.reserve)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reserve balance check failed")
	}
	if reserve.Lt(amount) {
		return dErrors.Wrap(ErrInsufficientUnderlyingBalance, dErrors.CodeRejected, "insufficient reserve")
	}
	if err := s.asset.Transfer(ctx, s.reserve, to, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRejected, "withdraw transfer failed")
	}
	s.audit(ctx, audit.ActionYieldWithdraw, to, map[string]string{"amount": amount.Dec()})
	return nil
}

// WithdrawAllUnderlyingAsset drains the reserve to an admin-chosen address.
func (s *Schedule) WithdrawAllUnderlyingAsset(ctx context.Context, to domain.Address) error {
	if to.IsZero() {
		return dErrors.Wrap(ErrInvalidUnderlyingAsset, dErrors.CodeInvalidInput, "withdraw recipient is required")
	}
	reserve, err := s.asset.BalanceOf(ctx, s.reserve)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reserve balance check failed")
	}
	if reserve.IsZero() {
		return dErrors.Wrap(ErrInsufficientUnderlyingBalance, dErrors.CodeRejected, "reserve is empty")
	}
	if err := s.asset.Transfer(ctx, s.reserve, to, reserve); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRejected, "withdraw transfer failed")
	}
	s.audit(ctx, audit.ActionYieldWithdraw, to, map[string]string{"amount": reserve.Dec()})
	return nil
}

func (s *Schedule) audit(ctx context.Context, action audit.Action, subject domain.Address, details map[string]string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:  action,
		Subject: subject,
		Token:   s.id.String(),
		Details: details,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
