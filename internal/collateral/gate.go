// Package collateral implements the mint-time collateral check: the token's
// own identity must carry a trusted, unexpired claim attesting to backing
// at least as large as the prospective total supply.
package collateral

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"smartcore/internal/identity/models"
	"smartcore/internal/platform/clock"
	"smartcore/pkg/domain"
)

// InsufficientCollateralError reports a mint that would exceed the attested
// backing. Required is the prospective total supply after the mint.
type InsufficientCollateralError struct {
	Required  *uint256.Int
	Available *uint256.Int
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("insufficient collateral: required %s, available %s",
		e.Required.Dec(), e.Available.Dec())
}

// ClaimSource is the slice of the identity registry the gate needs.
type ClaimSource interface {
	ClaimsByTopic(ctx context.Context, addr domain.Address, topic domain.Topic) ([]models.Claim, error)
	IsTrustedIssuerFor(ctx context.Context, issuer domain.Address, topic domain.Topic) (bool, error)
}

// ClaimValidator mirrors the identity registry's validity callback.
type ClaimValidator interface {
	IsClaimValid(ctx context.Context, subject domain.Address, claim models.Claim) (bool, error)
}

// Gate resolves the available collateral for a token identity. Nothing is
// stored; the claim set is re-read on every mint.
type Gate struct {
	claims    ClaimSource
	validator ClaimValidator
	clock     clock.Clock
	topic     domain.Topic
}

// New constructs a gate reading collateral claims for the given topic.
func New(claims ClaimSource, validator ClaimValidator, clk clock.Clock, topic domain.Topic) (*Gate, error) {
	if claims == nil {
		return nil, fmt.Errorf("claim source is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("claim validator is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if topic == 0 {
		topic = domain.TopicCollateral
	}
	return &Gate{claims: claims, validator: validator, clock: clk, topic: topic}, nil
}

// Available returns the attested collateral amount for the token identity.
//
// Policy: among the identity's claims for the collateral topic, filtered to
// trusted issuers and unexpired claims, the first valid claim wins; later
// claims are not summed or compared. No valid claim means zero collateral.
func (g *Gate) Available(ctx context.Context, tokenIdentity domain.Address) (*uint256.Int, error) {
	claims, err := g.claims.ClaimsByTopic(ctx, tokenIdentity, g.topic)
	if err != nil {
		return nil, fmt.Errorf("load collateral claims: %w", err)
	}
	now := g.clock.Now()
	for _, claim := range claims {
		if claim.Expired(now) {
			continue
		}
		trusted, err := g.claims.IsTrustedIssuerFor(ctx, claim.Issuer, g.topic)
		if err != nil {
			return nil, fmt.Errorf("check collateral issuer: %w", err)
		}
		if !trusted {
			continue
		}
		valid, err := g.validator.IsClaimValid(ctx, tokenIdentity, claim)
		if err != nil {
			return nil, fmt.Errorf("validate collateral claim: %w", err)
		}
		if valid {
			return DecodeAmount(claim.Data), nil
		}
	}
	return uint256.NewInt(0), nil
}

// CheckMint fails unless totalSupply + mintAmount fits inside the attested
// collateral.
func (g *Gate) CheckMint(ctx context.Context, tokenIdentity domain.Address, totalSupply, mintAmount *uint256.Int) error {
	available, err := g.Available(ctx, tokenIdentity)
	if err != nil {
		return err
	}
	required := new(uint256.Int).Add(totalSupply, mintAmount)
	if required.Gt(available) {
		return &InsufficientCollateralError{Required: required, Available: available}
	}
	return nil
}

// EncodeAmount serializes a collateral amount as claim data.
func EncodeAmount(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

// DecodeAmount parses big-endian claim data into an amount; malformed or
// empty data reads as zero.
func DecodeAmount(data []byte) *uint256.Int {
	if len(data) == 0 || len(data) > 32 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).SetBytes(data)
}
