package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"smartcore/internal/identity/models"
	identitystore "smartcore/internal/identity/store"
	"smartcore/internal/platform/clock"
	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
)

// =============================================================================
// Identity Registry Test Suite
// =============================================================================
// Justification for unit tests: the verification verdict composes four
// filters (registration, expiry, issuer trust, validator) across multiple
// topics; each filter needs isolated coverage plus the cache interaction.

type IdentityServiceSuite struct {
	suite.Suite
	ctx      context.Context
	clk      *clock.Manual
	store    *identitystore.InMemoryStore
	service  *Service
	investor domain.Address
	issuer   domain.Address
	other    domain.Address
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clk = clock.NewManual(1_700_000_000)
	s.store = identitystore.NewInMemoryStore()
	s.investor = domain.Address("0x00000000000000000000000000000000000000a1")
	s.issuer = domain.Address("0x0000000000000000000000000000000000000010")
	s.other = domain.Address("0x0000000000000000000000000000000000000020")

	var err error
	s.service, err = New(s.store, s.clk)
	s.Require().NoError(err)
}

func (s *IdentityServiceSuite) kycClaim(issuer domain.Address, expiresAt uint64) models.Claim {
	return models.Claim{
		Topic:     domain.TopicKYC,
		Issuer:    issuer,
		Signature: []byte{0x01},
		ExpiresAt: expiresAt,
	}
}

func (s *IdentityServiceSuite) TestRegistration() {
	s.Run("zero address is invalid", func() {
		err := s.service.RegisterIdentity(s.ctx, domain.ZeroAddress, domain.CountryBelgium)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("register records the jurisdiction", func() {
		s.NoError(s.service.RegisterIdentity(s.ctx, s.investor, domain.CountryBelgium))
		country, err := s.service.InvestorCountry(s.ctx, s.investor)
		s.NoError(err)
		s.Equal(domain.CountryBelgium, country)
	})

	s.Run("re-register updates the jurisdiction", func() {
		s.NoError(s.service.RegisterIdentity(s.ctx, s.investor, domain.CountryFrance))
		country, err := s.service.InvestorCountry(s.ctx, s.investor)
		s.NoError(err)
		s.Equal(domain.CountryFrance, country)
	})

	s.Run("unknown investor country is not found", func() {
		_, err := s.service.InvestorCountry(s.ctx, s.other)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})

	s.Run("delete removes the identity", func() {
		s.NoError(s.service.DeleteIdentity(s.ctx, s.investor))
		err := s.service.DeleteIdentity(s.ctx, s.investor)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func (s *IdentityServiceSuite) TestClaims() {
	s.Require().NoError(s.service.RegisterIdentity(s.ctx, s.investor, domain.CountryBelgium))

	s.Run("claim needs a topic and an issuer", func() {
		err := s.service.AddClaim(s.ctx, s.investor, models.Claim{Issuer: s.issuer})
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
		err = s.service.AddClaim(s.ctx, s.investor, models.Claim{Topic: domain.TopicKYC})
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("claim on an unregistered identity is not found", func() {
		err := s.service.AddClaim(s.ctx, s.other, s.kycClaim(s.issuer, 0))
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})

	s.Run("same topic and issuer replaces the claim", func() {
		first := s.kycClaim(s.issuer, 0)
		first.Data = []byte{0x01}
		s.NoError(s.service.AddClaim(s.ctx, s.investor, first))

		second := s.kycClaim(s.issuer, 0)
		second.Data = []byte{0x02}
		s.NoError(s.service.AddClaim(s.ctx, s.investor, second))

		claims, err := s.service.ClaimsByTopic(s.ctx, s.investor, domain.TopicKYC)
		s.NoError(err)
		s.Require().Len(claims, 1)
		s.Equal([]byte{0x02}, claims[0].Data)
	})

	s.Run("remove claim", func() {
		s.NoError(s.service.RemoveClaim(s.ctx, s.investor, domain.TopicKYC, s.issuer))
		err := s.service.RemoveClaim(s.ctx, s.investor, domain.TopicKYC, s.issuer)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func (s *IdentityServiceSuite) TestTrustedIssuers() {
	s.Run("issuer needs topics", func() {
		err := s.service.AddTrustedIssuer(s.ctx, s.issuer, nil)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("trust is scoped to listed topics", func() {
		s.NoError(s.service.AddTrustedIssuer(s.ctx, s.issuer, []domain.Topic{domain.TopicKYC}))

		trusted, err := s.service.IsTrustedIssuerFor(s.ctx, s.issuer, domain.TopicKYC)
		s.NoError(err)
		s.True(trusted)

		trusted, err = s.service.IsTrustedIssuerFor(s.ctx, s.issuer, domain.TopicAML)
		s.NoError(err)
		s.False(trusted)
	})

	s.Run("issuers list in registration order", func() {
		s.NoError(s.service.AddTrustedIssuer(s.ctx, s.other, []domain.Topic{domain.TopicKYC}))
		issuers, err := s.service.TrustedIssuersFor(s.ctx, domain.TopicKYC)
		s.NoError(err)
		s.Equal([]domain.Address{s.issuer, s.other}, issuers)
	})

	s.Run("removal revokes trust", func() {
		s.NoError(s.service.RemoveTrustedIssuer(s.ctx, s.issuer))
		trusted, err := s.service.IsTrustedIssuerFor(s.ctx, s.issuer, domain.TopicKYC)
		s.NoError(err)
		s.False(trusted)
	})
}

func (s *IdentityServiceSuite) TestIsVerified() {
	topics := []domain.Topic{domain.TopicKYC}
	s.Require().NoError(s.service.AddTrustedIssuer(s.ctx, s.issuer, []domain.Topic{domain.TopicKYC, domain.TopicAML}))

	s.Run("unregistered address is not verified, without error", func() {
		verified, err := s.service.IsVerified(s.ctx, s.investor, topics)
		s.NoError(err)
		s.False(verified)
	})

	s.Run("registration without claims is not verified", func() {
		s.Require().NoError(s.service.RegisterIdentity(s.ctx, s.investor, domain.CountryBelgium))
		verified, err := s.service.IsVerified(s.ctx, s.investor, topics)
		s.NoError(err)
		s.False(verified)
	})

	s.Run("trusted unexpired claim verifies", func() {
		s.Require().NoError(s.service.AddClaim(s.ctx, s.investor, s.kycClaim(s.issuer, 0)))
		verified, err := s.service.IsVerified(s.ctx, s.investor, topics)
		s.NoError(err)
		s.True(verified)
	})

	s.Run("claim from untrusted issuer does not count", func() {
		s.Require().NoError(s.service.RegisterIdentity(s.ctx, s.other, domain.CountryBelgium))
		rogue := domain.Address("0x0000000000000000000000000000000000000066")
		s.Require().NoError(s.service.AddClaim(s.ctx, s.other, s.kycClaim(rogue, 0)))
		verified, err := s.service.IsVerified(s.ctx, s.other, topics)
		s.NoError(err)
		s.False(verified)
	})

	s.Run("all topics must be satisfied", func() {
		verified, err := s.service.IsVerified(s.ctx, s.investor, []domain.Topic{domain.TopicKYC, domain.TopicAML})
		s.NoError(err)
		s.False(verified)

		aml := s.kycClaim(s.issuer, 0)
		aml.Topic = domain.TopicAML
		s.Require().NoError(s.service.AddClaim(s.ctx, s.investor, aml))
		verified, err = s.service.IsVerified(s.ctx, s.investor, []domain.Topic{domain.TopicKYC, domain.TopicAML})
		s.NoError(err)
		s.True(verified)
	})

	s.Run("expiry flips the verdict", func() {
		expiring := domain.Address("0x00000000000000000000000000000000000000e1")
		s.Require().NoError(s.service.RegisterIdentity(s.ctx, expiring, domain.CountryBelgium))
		s.Require().NoError(s.service.AddClaim(s.ctx, expiring, s.kycClaim(s.issuer, s.clk.Now()+60)))

		verified, err := s.service.IsVerified(s.ctx, expiring, topics)
		s.NoError(err)
		s.True(verified)

		s.clk.Advance(61)
		verified, err = s.service.IsVerified(s.ctx, expiring, topics)
		s.NoError(err)
		s.False(verified)
	})

	s.Run("unsigned claims fail the default validator", func() {
		unsigned := domain.Address("0x00000000000000000000000000000000000000e2")
		s.Require().NoError(s.service.RegisterIdentity(s.ctx, unsigned, domain.CountryBelgium))
		claim := s.kycClaim(s.issuer, 0)
		claim.Signature = nil
		s.Require().NoError(s.service.AddClaim(s.ctx, unsigned, claim))

		verified, err := s.service.IsVerified(s.ctx, unsigned, topics)
		s.NoError(err)
		s.False(verified)
	})
}

// =============================================================================
// Cache Interaction Tests
// =============================================================================

// mapCache is an in-process Cache capturing invalidation traffic.
type mapCache struct {
	mu          sync.Mutex
	entries     map[string]bool
	invalidated []domain.Address
	flushed     int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]bool{}}
}

func cacheKey(addr domain.Address, topics []domain.Topic) string {
	key := string(addr)
	for _, t := range topics {
		key += ":" + t.String()
	}
	return key
}

func (c *mapCache) Get(ctx context.Context, addr domain.Address, topics []domain.Topic) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[cacheKey(addr, topics)]
	return v, ok
}

func (c *mapCache) Set(ctx context.Context, addr domain.Address, topics []domain.Topic, verified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(addr, topics)] = verified
}

func (c *mapCache) InvalidateAddress(ctx context.Context, addr domain.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, addr)
	for k := range c.entries {
		if len(k) >= len(addr) && k[:len(addr)] == string(addr) {
			delete(c.entries, k)
		}
	}
}

func (c *mapCache) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed++
	c.entries = map[string]bool{}
}

func (s *IdentityServiceSuite) TestCaching() {
	cache := newMapCache()
	svc, err := New(s.store, s.clk, WithCache(cache))
	s.Require().NoError(err)
	topics := []domain.Topic{domain.TopicKYC}

	s.Require().NoError(svc.AddTrustedIssuer(s.ctx, s.issuer, []domain.Topic{domain.TopicKYC}))
	s.Require().NoError(svc.RegisterIdentity(s.ctx, s.investor, domain.CountryBelgium))
	s.Require().NoError(svc.AddClaim(s.ctx, s.investor, s.kycClaim(s.issuer, 0)))

	s.Run("verdicts are cached", func() {
		verified, err := svc.IsVerified(s.ctx, s.investor, topics)
		s.NoError(err)
		s.True(verified)

		cached, ok := cache.Get(s.ctx, s.investor, topics)
		s.True(ok)
		s.True(cached)
	})

	s.Run("claim changes invalidate the address", func() {
		s.Require().NoError(svc.RemoveClaim(s.ctx, s.investor, domain.TopicKYC, s.issuer))
		_, ok := cache.Get(s.ctx, s.investor, topics)
		s.False(ok)

		verified, err := svc.IsVerified(s.ctx, s.investor, topics)
		s.NoError(err)
		s.False(verified)
	})

	s.Run("issuer changes flush everything", func() {
		before := cache.flushed
		s.Require().NoError(svc.RemoveTrustedIssuer(s.ctx, s.issuer))
		s.Equal(before+1, cache.flushed)
	})
}
