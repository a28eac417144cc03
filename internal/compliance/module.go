// Package compliance implements the pluggable policy layer evaluated on
// every balance-changing operation. Modules are registered on a chain in
// order; any module rejecting aborts the whole operation before state
// mutates.
package compliance

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"smartcore/pkg/domain"
)

// Module is one policy check. ValidateTransfer runs before any state
// mutation and is the only place a module may reject. The post-hooks run
// after balances have already moved and must absorb their own failures.
//
// A mint arrives with from == ZeroAddress, a burn with to == ZeroAddress.
type Module interface {
	Name() string
	ValidateTransfer(ctx context.Context, from, to domain.Address, amount *uint256.Int, params []byte) error
	Transferred(ctx context.Context, from, to domain.Address, amount *uint256.Int, params []byte)
	Created(ctx context.Context, to domain.Address, amount *uint256.Int, params []byte)
	Destroyed(ctx context.Context, from domain.Address, amount *uint256.Int, params []byte)
	// IsComplianceModule is the capability marker checked at registration.
	IsComplianceModule() bool
}

// RejectionError is a module's refusal, carrying the module name and the
// policy reason. The reason string is part of the module's contract with
// integrators.
type RejectionError struct {
	Module string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("compliance module %s rejected: %s", e.Module, e.Reason)
}

// Reject builds a RejectionError for the named module.
func Reject(module, reason string) error {
	return &RejectionError{Module: module, Reason: reason}
}

// CountryLookup resolves the registered jurisdiction of an address. The
// identity registry provides it.
type CountryLookup interface {
	InvestorCountry(ctx context.Context, addr domain.Address) (domain.CountryCode, error)
}
