package compliance

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"

	"smartcore/pkg/domain"
)

// TestModule is a settable compliance module used by tests to observe hook
// ordering and force rejections. It documents the expected module shape;
// it has no production use.
type TestModule struct {
	name string

	mu         sync.Mutex
	failReason string

	CreatedCalls     atomic.Int64
	TransferredCalls atomic.Int64
	DestroyedCalls   atomic.Int64
}

// NewTestModule creates a passing test module with the given name.
func NewTestModule(name string) *TestModule {
	return &TestModule{name: name}
}

func (m *TestModule) Name() string { return m.name }

func (m *TestModule) IsComplianceModule() bool { return true }

// FailWith makes every subsequent pre-check reject with reason; an empty
// reason returns the module to passing.
func (m *TestModule) FailWith(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReason = reason
}

func (m *TestModule) ValidateTransfer(ctx context.Context, from, to domain.Address, amount *uint256.Int, params []byte) error {
	m.mu.Lock()
	reason := m.failReason
	m.mu.Unlock()
	if reason != "" {
		return Reject(m.name, reason)
	}
	return nil
}

func (m *TestModule) Transferred(ctx context.Context, from, to domain.Address, amount *uint256.Int, params []byte) {
	m.TransferredCalls.Add(1)
}

func (m *TestModule) Created(ctx context.Context, to domain.Address, amount *uint256.Int, params []byte) {
	m.CreatedCalls.Add(1)
}

func (m *TestModule) Destroyed(ctx context.Context, from domain.Address, amount *uint256.Int, params []byte) {
	m.DestroyedCalls.Add(1)
}
