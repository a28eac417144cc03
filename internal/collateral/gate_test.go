package collateral

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"

	"smartcore/internal/identity/models"
	"smartcore/internal/platform/clock"
	"smartcore/pkg/domain"
)

// =============================================================================
// Collateral Gate Test Suite
// =============================================================================
// Justification for unit tests: claim selection policy (first valid claim
// wins, expiry and trust filters) and the supply arithmetic boundary are the
// whole contract of this package.

type stubClaims struct {
	claims  []models.Claim
	trusted map[domain.Address]bool
}

func (s *stubClaims) ClaimsByTopic(ctx context.Context, addr domain.Address, topic domain.Topic) ([]models.Claim, error) {
	return s.claims, nil
}

func (s *stubClaims) IsTrustedIssuerFor(ctx context.Context, issuer domain.Address, topic domain.Topic) (bool, error) {
	return s.trusted[issuer], nil
}

type signaturePresence struct{}

func (signaturePresence) IsClaimValid(ctx context.Context, subject domain.Address, claim models.Claim) (bool, error) {
	return len(claim.Signature) > 0, nil
}

type CollateralGateSuite struct {
	suite.Suite
	ctx           context.Context
	clk           *clock.Manual
	claims        *stubClaims
	gate          *Gate
	tokenIdentity domain.Address
	trustedIssuer domain.Address
	rogueIssuer   domain.Address
}

func TestCollateralGateSuite(t *testing.T) {
	suite.Run(t, new(CollateralGateSuite))
}

func (s *CollateralGateSuite) SetupTest() {
	s.ctx = context.Background()
	s.clk = clock.NewManual(1_700_000_000)
	s.tokenIdentity = domain.Address("0x00000000000000000000000000000000000000ee")
	s.trustedIssuer = domain.Address("0x0000000000000000000000000000000000000010")
	s.rogueIssuer = domain.Address("0x0000000000000000000000000000000000000066")
	s.claims = &stubClaims{trusted: map[domain.Address]bool{s.trustedIssuer: true}}

	var err error
	s.gate, err = New(s.claims, signaturePresence{}, s.clk, domain.TopicCollateral)
	s.Require().NoError(err)
}

func (s *CollateralGateSuite) claim(issuer domain.Address, amount uint64, expiresAt uint64) models.Claim {
	return models.Claim{
		Topic:     domain.TopicCollateral,
		Issuer:    issuer,
		Data:      EncodeAmount(uint256.NewInt(amount)),
		Signature: []byte{0x01},
		ExpiresAt: expiresAt,
	}
}

func (s *CollateralGateSuite) TestAvailable() {
	s.Run("no claims means zero collateral", func() {
		available, err := s.gate.Available(s.ctx, s.tokenIdentity)
		s.NoError(err)
		s.True(available.IsZero())
	})

	s.Run("first valid claim wins", func() {
		s.claims.claims = []models.Claim{
			s.claim(s.trustedIssuer, 1000, 0),
			s.claim(s.trustedIssuer, 9999, 0),
		}
		available, err := s.gate.Available(s.ctx, s.tokenIdentity)
		s.NoError(err)
		s.Equal(uint256.NewInt(1000), available)
	})

	s.Run("expired claims are skipped", func() {
		s.claims.claims = []models.Claim{
			s.claim(s.trustedIssuer, 1000, s.clk.Now()),
			s.claim(s.trustedIssuer, 500, 0),
		}
		available, err := s.gate.Available(s.ctx, s.tokenIdentity)
		s.NoError(err)
		s.Equal(uint256.NewInt(500), available)
	})

	s.Run("untrusted issuers are skipped", func() {
		s.claims.claims = []models.Claim{
			s.claim(s.rogueIssuer, 9999, 0),
			s.claim(s.trustedIssuer, 500, 0),
		}
		available, err := s.gate.Available(s.ctx, s.tokenIdentity)
		s.NoError(err)
		s.Equal(uint256.NewInt(500), available)
	})

	s.Run("unsigned claims are skipped", func() {
		unsigned := s.claim(s.trustedIssuer, 9999, 0)
		unsigned.Signature = nil
		s.claims.claims = []models.Claim{unsigned}
		available, err := s.gate.Available(s.ctx, s.tokenIdentity)
		s.NoError(err)
		s.True(available.IsZero())
	})
}

func (s *CollateralGateSuite) TestCheckMint() {
	s.claims.claims = []models.Claim{s.claim(s.trustedIssuer, 1000, 0)}

	s.Run("mint within collateral passes", func() {
		s.NoError(s.gate.CheckMint(s.ctx, s.tokenIdentity, uint256.NewInt(400), uint256.NewInt(600)))
	})

	s.Run("mint exceeding collateral is rejected", func() {
		err := s.gate.CheckMint(s.ctx, s.tokenIdentity, uint256.NewInt(400), uint256.NewInt(601))
		var insufficient *InsufficientCollateralError
		s.ErrorAs(err, &insufficient)
		s.Equal(uint256.NewInt(1001), insufficient.Required)
		s.Equal(uint256.NewInt(1000), insufficient.Available)
	})
}

func (s *CollateralGateSuite) TestAmountCodec() {
	s.Run("round trip", func() {
		v := uint256.NewInt(123456789)
		s.Equal(v, DecodeAmount(EncodeAmount(v)))
	})

	s.Run("empty data reads as zero", func() {
		s.True(DecodeAmount(nil).IsZero())
	})

	s.Run("oversized data reads as zero", func() {
		s.True(DecodeAmount(make([]byte, 33)).IsZero())
	})
}
