package store

import (
	"context"
	"sync"

	"smartcore/internal/identity/models"
	"smartcore/pkg/domain"
	"smartcore/pkg/platform/sentinel"
)

// InMemoryStore keeps identities and trusted issuers in process memory.
// It is the default for tests and single-node deployments; use the
// Postgres store when registry state must survive restarts.
type InMemoryStore struct {
	mu         sync.RWMutex
	identities map[domain.Address]*models.Identity
	issuers    map[domain.Address]*models.TrustedIssuer
	// issuerOrder preserves registration order so trusted-issuer scans are
	// deterministic; collateral resolution depends on it.
	issuerOrder []domain.Address
}

// NewInMemoryStore creates an empty identity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		identities: make(map[domain.Address]*models.Identity),
		issuers:    make(map[domain.Address]*models.TrustedIssuer),
	}
}

// UpsertIdentity registers or re-registers an identity with its country.
// Existing claims are preserved on country updates.
func (s *InMemoryStore) UpsertIdentity(ctx context.Context, addr domain.Address, country domain.CountryCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident, ok := s.identities[addr]; ok {
		ident.Country = country
		return nil
	}
	s.identities[addr] = &models.Identity{Address: addr, Country: country}
	return nil
}

// DeleteIdentity removes an identity and all its claims.
func (s *InMemoryStore) DeleteIdentity(ctx context.Context, addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[addr]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.identities, addr)
	return nil
}

// GetIdentity returns a deep copy of the identity record.
func (s *InMemoryStore) GetIdentity(ctx context.Context, addr domain.Address) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *ident
	cp.Claims = append([]models.Claim(nil), ident.Claims...)
	return &cp, nil
}

// AddClaim attaches a claim to an identity. A claim with the same topic and
// issuer replaces the previous one.
func (s *InMemoryStore) AddClaim(ctx context.Context, addr domain.Address, claim models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[addr]
	if !ok {
		return sentinel.ErrNotFound
	}
	for i, c := range ident.Claims {
		if c.Topic == claim.Topic && c.Issuer == claim.Issuer {
			ident.Claims[i] = claim
			return nil
		}
	}
	ident.Claims = append(ident.Claims, claim)
	return nil
}

// RemoveClaim drops the claim for (topic, issuer) from an identity.
func (s *InMemoryStore) RemoveClaim(ctx context.Context, addr domain.Address, topic domain.Topic, issuer domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[addr]
	if !ok {
		return sentinel.ErrNotFound
	}
	for i, c := range ident.Claims {
		if c.Topic == topic && c.Issuer == issuer {
			ident.Claims = append(ident.Claims[:i], ident.Claims[i+1:]...)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// ClaimsByTopic returns the identity's claims for a topic in insertion order.
func (s *InMemoryStore) ClaimsByTopic(ctx context.Context, addr domain.Address, topic domain.Topic) ([]models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var out []models.Claim
	for _, c := range ident.Claims {
		if c.Topic == topic {
			out = append(out, c)
		}
	}
	return out, nil
}

// AddTrustedIssuer registers an issuer for a set of topics. Re-registering
// replaces the topic set.
func (s *InMemoryStore) AddTrustedIssuer(ctx context.Context, issuer domain.Address, topics []domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.issuers[issuer]; ok {
		existing.Topics = append([]domain.Topic(nil), topics...)
		return nil
	}
	s.issuers[issuer] = &models.TrustedIssuer{
		Issuer: issuer,
		Topics: append([]domain.Topic(nil), topics...),
	}
	s.issuerOrder = append(s.issuerOrder, issuer)
	return nil
}

// RemoveTrustedIssuer drops an issuer entirely.
func (s *InMemoryStore) RemoveTrustedIssuer(ctx context.Context, issuer domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[issuer]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.issuers, issuer)
	for i, a := range s.issuerOrder {
		if a == issuer {
			s.issuerOrder = append(s.issuerOrder[:i], s.issuerOrder[i+1:]...)
			break
		}
	}
	return nil
}

// IsTrustedIssuerFor reports whether the issuer is trusted for the topic.
func (s *InMemoryStore) IsTrustedIssuerFor(ctx context.Context, issuer domain.Address, topic domain.Topic) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.issuers[issuer]
	if !ok {
		return false, nil
	}
	return t.TrustedFor(topic), nil
}

// TrustedIssuersFor lists issuers trusted for a topic in registration order.
func (s *InMemoryStore) TrustedIssuersFor(ctx context.Context, topic domain.Topic) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Address
	for _, addr := range s.issuerOrder {
		if s.issuers[addr].TrustedFor(topic) {
			out = append(out, addr)
		}
	}
	return out, nil
}
