package yield

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"smartcore/internal/ledger"
	"smartcore/pkg/domain"
)

// Asset is the payment token the schedule disburses. It is external and
// treated as adversarial: the schedule finishes its own bookkeeping before
// calling into it, and never trusts it to behave.
type Asset interface {
	BalanceOf(ctx context.Context, addr domain.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) error
}

// SimpleAsset is a plain in-memory fungible balance book. It backs tests
// and single-process deployments where the payment asset is not itself a
// permissioned token.
type SimpleAsset struct {
	mu       sync.Mutex
	balances map[domain.Address]*uint256.Int
}

func NewSimpleAsset() *SimpleAsset {
	return &SimpleAsset{balances: make(map[domain.Address]*uint256.Int)}
}

// Issue credits an account out of thin air, for funding reserves in tests
// and wiring.
func (a *SimpleAsset) Issue(addr domain.Address, amount *uint256.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[addr] = new(uint256.Int).Add(a.balance(addr), amount)
}

func (a *SimpleAsset) BalanceOf(ctx context.Context, addr domain.Address) (*uint256.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.CloneAmount(a.balances[addr]), nil
}

func (a *SimpleAsset) Transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	bal := a.balance(from)
	if bal.Lt(amount) {
		return &ledger.InsufficientBalanceError{Account: from, Available: bal.Clone(), Requested: amount.Clone()}
	}
	a.balances[from] = new(uint256.Int).Sub(bal, amount)
	a.balances[to] = new(uint256.Int).Add(a.balance(to), amount)
	return nil
}

func (a *SimpleAsset) balance(addr domain.Address) *uint256.Int {
	if b, ok := a.balances[addr]; ok {
		return b
	}
	return uint256.NewInt(0)
}

// TokenSource is the slice of the token gate the schedule reads: live and
// historical holder balances.
type TokenSource interface {
	BalanceOf(addr domain.Address) *uint256.Int
	BalanceOfAt(addr domain.Address, timepoint uint64) (*uint256.Int, error)
}
