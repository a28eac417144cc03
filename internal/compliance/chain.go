package compliance

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"smartcore/pkg/domain"
)

// Registration errors.
var (
	ErrModuleAlreadyRegistered = errors.New("compliance module already registered")
	ErrModuleNotRegistered     = errors.New("compliance module not registered")
	ErrNotComplianceModule     = errors.New("not a compliance module")
)

// registration pairs a module with the token-specific parameter blob it was
// attached with.
type registration struct {
	module Module
	params []byte
}

// Chain is the ordered list of compliance modules attached to a token.
// Evaluation and post-hooks run in registration order; removal preserves
// the order of the remaining modules.
type Chain struct {
	mu     sync.RWMutex
	regs   []registration
	logger *slog.Logger
}

// NewChain creates an empty chain.
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{logger: logger}
}

// AddModule appends a module with its parameters. A module name can be
// registered at most once at a time; re-adding after removal is a fresh
// registration.
func (c *Chain) AddModule(m Module, params []byte) error {
	if m == nil || !m.IsComplianceModule() {
		return ErrNotComplianceModule
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, reg := range c.regs {
		if reg.module.Name() == m.Name() {
			return ErrModuleAlreadyRegistered
		}
	}
	c.regs = append(c.regs, registration{module: m, params: append([]byte(nil), params...)})
	return nil
}

// RemoveModule drops a module by name, keeping the rest in order.
func (c *Chain) RemoveModule(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, reg := range c.regs {
		if reg.module.Name() == name {
			c.regs = append(c.regs[:i], c.regs[i+1:]...)
			return nil
		}
	}
	return ErrModuleNotRegistered
}

// ModuleNames lists registered modules in evaluation order.
func (c *Chain) ModuleNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.regs))
	for i, reg := range c.regs {
		names[i] = reg.module.Name()
	}
	return names
}

func (c *Chain) snapshot() []registration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]registration(nil), c.regs...)
}

// ValidateTransfer runs every module's pre-check in order; the first
// rejection wins.
func (c *Chain) ValidateTransfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) error {
	for _, reg := range c.snapshot() {
		if err := reg.module.ValidateTransfer(ctx, from, to, amount, reg.params); err != nil {
			return err
		}
	}
	return nil
}

// Transferred fans the post-transfer hook out to every module in order.
func (c *Chain) Transferred(ctx context.Context, from, to domain.Address, amount *uint256.Int) {
	for _, reg := range c.snapshot() {
		reg.module.Transferred(ctx, from, to, amount, reg.params)
	}
}

// Created fans the post-mint hook out to every module in order.
func (c *Chain) Created(ctx context.Context, to domain.Address, amount *uint256.Int) {
	for _, reg := range c.snapshot() {
		reg.module.Created(ctx, to, amount, reg.params)
	}
}

// Destroyed fans the post-burn hook out to every module in order.
func (c *Chain) Destroyed(ctx context.Context, from domain.Address, amount *uint256.Int) {
	for _, reg := range c.snapshot() {
		reg.module.Destroyed(ctx, from, amount, reg.params)
	}
}
