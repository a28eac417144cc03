// Package ledger owns account balances, total supply, and the append-only
// checkpoint series behind point-in-time queries. Only the token gate
// mutates it; everything else reads.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"smartcore/internal/platform/clock"
	"smartcore/pkg/domain"
)

// FutureLookupError rejects historical queries at or past the current
// timepoint. Live balances are read through BalanceOf, not the history.
type FutureLookupError struct {
	Requested uint64
	Current   uint64
}

func (e *FutureLookupError) Error() string {
	return fmt.Sprintf("future lookup: requested timepoint %d, current %d", e.Requested, e.Current)
}

// InsufficientBalanceError reports a debit exceeding the account balance.
type InsufficientBalanceError struct {
	Account   domain.Address
	Available *uint256.Int
	Requested *uint256.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s",
		e.Account, e.Available.Dec(), e.Requested.Dec())
}

// Archive is an optional durable sink for checkpoints, written best-effort
// after every in-memory append. Lookups never touch it.
type Archive interface {
	AppendCheckpoint(ctx context.Context, account domain.Address, timepoint uint64, value *uint256.Int) error
}

// checkpoint is one (timepoint, balance-after) pair. Series are strictly
// increasing in timepoint; a second write within one timepoint overwrites
// the last entry.
type checkpoint struct {
	timepoint uint64
	value     *uint256.Int
}

// Ledger tracks live balances plus per-account and total-supply checkpoint
// series.
type Ledger struct {
	mu          sync.RWMutex
	clock       clock.Clock
	balances    map[domain.Address]*uint256.Int
	totalSupply *uint256.Int
	accountCk   map[domain.Address][]checkpoint
	supplyCk    []checkpoint
	archive     Archive
	logger      *slog.Logger
}

type Option func(*Ledger)

func WithArchive(a Archive) Option {
	return func(l *Ledger) { l.archive = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates an empty ledger.
func New(clk clock.Clock, opts ...Option) (*Ledger, error) {
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	l := &Ledger{
		clock:       clk,
		balances:    make(map[domain.Address]*uint256.Int),
		totalSupply: uint256.NewInt(0),
		accountCk:   make(map[domain.Address][]checkpoint),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// BalanceOf returns the live balance (zero for unknown accounts).
func (l *Ledger) BalanceOf(addr domain.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.CloneAmount(l.balances[addr])
}

// TotalSupply returns the live total supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.CloneAmount(l.totalSupply)
}

// BalanceOfAt returns the balance at a strictly past timepoint.
func (l *Ledger) BalanceOfAt(addr domain.Address, timepoint uint64) (*uint256.Int, error) {
	now := l.clock.Now()
	if timepoint >= now {
		return nil, &FutureLookupError{Requested: timepoint, Current: now}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lookup(l.accountCk[addr], timepoint), nil
}

// TotalSupplyAt returns the total supply at a strictly past timepoint.
func (l *Ledger) TotalSupplyAt(timepoint uint64) (*uint256.Int, error) {
	now := l.clock.Now()
	if timepoint >= now {
		return nil, &FutureLookupError{Requested: timepoint, Current: now}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lookup(l.supplyCk, timepoint), nil
}

// lookup binary-searches for the floor checkpoint: the latest entry with
// timepoint <= query, or zero before the first checkpoint.
func lookup(series []checkpoint, timepoint uint64) *uint256.Int {
	i := sort.Search(len(series), func(i int) bool {
		return series[i].timepoint > timepoint
	})
	if i == 0 {
		return uint256.NewInt(0)
	}
	return domain.CloneAmount(series[i-1].value)
}

// Credit mints amount to addr, growing total supply.
func (l *Ledger) Credit(ctx context.Context, addr domain.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	l.setBalance(ctx, addr, new(uint256.Int).Add(l.balance(addr), amount), now)
	l.setSupply(ctx, new(uint256.Int).Add(l.totalSupply, amount), now)
}

// Debit burns amount from addr, shrinking total supply.
func (l *Ledger) Debit(ctx context.Context, addr domain.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balance(addr)
	if bal.Lt(amount) {
		return &InsufficientBalanceError{Account: addr, Available: bal.Clone(), Requested: amount.Clone()}
	}
	now := l.clock.Now()
	l.setBalance(ctx, addr, new(uint256.Int).Sub(bal, amount), now)
	l.setSupply(ctx, new(uint256.Int).Sub(l.totalSupply, amount), now)
	return nil
}

// Move transfers amount between accounts; supply is unchanged.
func (l *Ledger) Move(ctx context.Context, from, to domain.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balance(from)
	if bal.Lt(amount) {
		return &InsufficientBalanceError{Account: from, Available: bal.Clone(), Requested: amount.Clone()}
	}
	now := l.clock.Now()
	l.setBalance(ctx, from, new(uint256.Int).Sub(bal, amount), now)
	l.setBalance(ctx, to, new(uint256.Int).Add(l.balance(to), amount), now)
	return nil
}

func (l *Ledger) balance(addr domain.Address) *uint256.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return uint256.NewInt(0)
}

func (l *Ledger) setBalance(ctx context.Context, addr domain.Address, value *uint256.Int, now uint64) {
	l.balances[addr] = value
	l.accountCk[addr] = appendCheckpoint(l.accountCk[addr], now, value)
	l.archiveWrite(ctx, addr, now, value)
}

func (l *Ledger) setSupply(ctx context.Context, value *uint256.Int, now uint64) {
	l.totalSupply = value
	l.supplyCk = appendCheckpoint(l.supplyCk, now, value)
	l.archiveWrite(ctx, domain.ZeroAddress, now, value)
}

// appendCheckpoint keeps timepoints strictly increasing: a mutation in the
// same timepoint overwrites the last entry (last write wins).
func appendCheckpoint(series []checkpoint, now uint64, value *uint256.Int) []checkpoint {
	v := domain.CloneAmount(value)
	if n := len(series); n > 0 && series[n-1].timepoint == now {
		series[n-1].value = v
		return series
	}
	return append(series, checkpoint{timepoint: now, value: v})
}

func (l *Ledger) archiveWrite(ctx context.Context, account domain.Address, now uint64, value *uint256.Int) {
	if l.archive == nil {
		return
	}
	if err := l.archive.AppendCheckpoint(ctx, account, now, value); err != nil {
		l.logger.WarnContext(ctx, "checkpoint archive write failed",
			"account", account, "timepoint", now, "error", err)
	}
}
