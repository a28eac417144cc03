// Package custodian tracks per-address freeze state: a binary frozen flag
// that blocks all movement, and a partial frozen amount that reduces the
// transferable balance. Only custodian-role operations on the token gate
// mutate it.
package custodian

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"smartcore/pkg/domain"
)

// FreezeExceedsAvailableError reports a partial freeze larger than the
// unfrozen balance.
type FreezeExceedsAvailableError struct {
	Available *uint256.Int
	Requested *uint256.Int
}

func (e *FreezeExceedsAvailableError) Error() string {
	return fmt.Sprintf("freeze amount exceeds available balance: available %s, requested %s",
		e.Available.Dec(), e.Requested.Dec())
}

// InsufficientFrozenError reports an unfreeze larger than the frozen amount.
type InsufficientFrozenError struct {
	Current   *uint256.Int
	Requested *uint256.Int
}

func (e *InsufficientFrozenError) Error() string {
	return fmt.Sprintf("insufficient frozen tokens: current %s, requested %s",
		e.Current.Dec(), e.Requested.Dec())
}

// State holds freeze flags and partial frozen amounts.
// Invariant: frozenAmount[addr] <= balance[addr]; the balance lives in the
// ledger, so the gate passes it in wherever the invariant is checked.
type State struct {
	mu      sync.RWMutex
	flags   map[domain.Address]bool
	amounts map[domain.Address]*uint256.Int
}

// NewState creates empty custodian state.
func NewState() *State {
	return &State{
		flags:   make(map[domain.Address]bool),
		amounts: make(map[domain.Address]*uint256.Int),
	}
}

// IsFrozen reports the binary freeze flag.
func (s *State) IsFrozen(addr domain.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[addr]
}

// FrozenAmount returns the partially frozen amount (zero when none).
func (s *State) FrozenAmount(addr domain.Address) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneAmount(s.amounts[addr])
}

// SetFrozen toggles the binary freeze flag. Idempotent: the returned bool
// tells the caller whether state actually changed, so duplicate events can
// still be emitted if desired.
func (s *State) SetFrozen(addr domain.Address, frozen bool) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[addr] == frozen {
		return false
	}
	if frozen {
		s.flags[addr] = true
	} else {
		delete(s.flags, addr)
	}
	return true
}

// FreezePartial increases the frozen amount. balance is the account's live
// ledger balance; the freeze may only cover tokens that exist and are not
// already frozen.
func (s *State) FreezePartial(addr domain.Address, amount, balance *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	frozen := s.amount(addr)
	available := new(uint256.Int)
	if balance.Gt(frozen) {
		available.Sub(balance, frozen)
	}
	if amount.Gt(available) {
		return &FreezeExceedsAvailableError{Available: available, Requested: amount.Clone()}
	}
	s.amounts[addr] = new(uint256.Int).Add(frozen, amount)
	return nil
}

// UnfreezePartial decreases the frozen amount.
func (s *State) UnfreezePartial(addr domain.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	frozen := s.amount(addr)
	if amount.Gt(frozen) {
		return &InsufficientFrozenError{Current: frozen.Clone(), Requested: amount.Clone()}
	}
	s.setAmount(addr, new(uint256.Int).Sub(frozen, amount))
	return nil
}

// ClampFrozen lowers the frozen amount to at most limit. Forced transfers
// and burns call it after consuming frozen tokens so the frozen <= balance
// invariant holds post-mutation.
func (s *State) ClampFrozen(addr domain.Address, limit *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.amount(addr).Gt(limit) {
		s.setAmount(addr, limit.Clone())
	}
}

// Transplant moves the whole freeze state from lost to new and clears the
// lost wallet. Used by address recovery only.
func (s *State) Transplant(lost, next domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[lost] {
		s.flags[next] = true
	}
	delete(s.flags, lost)
	if amt, ok := s.amounts[lost]; ok {
		existing := s.amount(next)
		s.amounts[next] = new(uint256.Int).Add(existing, amt)
		delete(s.amounts, lost)
	}
}

func (s *State) amount(addr domain.Address) *uint256.Int {
	if a, ok := s.amounts[addr]; ok {
		return a
	}
	return uint256.NewInt(0)
}

func (s *State) setAmount(addr domain.Address, v *uint256.Int) {
	if v.IsZero() {
		delete(s.amounts, addr)
		return
	}
	s.amounts[addr] = v
}
