package token

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
)

// BatchEntry is one leg of a batch operation.
type BatchEntry struct {
	From   domain.Address
	To     domain.Address
	Amount *uint256.Int
}

// BatchMint mints to each recipient in order. Each leg is atomic; the
// first failing leg stops the batch and legs already applied stay applied.
// Callers needing all-or-nothing semantics submit one leg at a time and
// reconcile, matching the serialized transaction model.
func (s *Service) BatchMint(ctx context.Context, entries []BatchEntry) error {
	for i, e := range entries {
		if err := s.Mint(ctx, e.To, e.Amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeOf(err), batchLegMsg("mint", i))
		}
	}
	return nil
}

// BatchTransfer transfers each leg in order with the same stop-on-failure
// behavior as BatchMint.
func (s *Service) BatchTransfer(ctx context.Context, entries []BatchEntry) error {
	for i, e := range entries {
		if err := s.Transfer(ctx, e.From, e.To, e.Amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeOf(err), batchLegMsg("transfer", i))
		}
	}
	return nil
}

func batchLegMsg(op string, i int) string {
	return fmt.Sprintf("batch %s leg %d failed", op, i)
}
