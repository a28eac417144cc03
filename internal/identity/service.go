// Package identity hosts the identity registry: investor identities with
// jurisdiction codes, the claims attached to them, and the trusted issuers
// registry. The token gate consumes it through the narrow Verifier surface.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartcore/internal/identity/models"
	"smartcore/internal/platform/clock"
	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
	"smartcore/pkg/platform/sentinel"
)

// Store is the persistence surface for identities and trusted issuers.
type Store interface {
	UpsertIdentity(ctx context.Context, addr domain.Address, country domain.CountryCode) error
	DeleteIdentity(ctx context.Context, addr domain.Address) error
	GetIdentity(ctx context.Context, addr domain.Address) (*models.Identity, error)
	AddClaim(ctx context.Context, addr domain.Address, claim models.Claim) error
	RemoveClaim(ctx context.Context, addr domain.Address, topic domain.Topic, issuer domain.Address) error
	ClaimsByTopic(ctx context.Context, addr domain.Address, topic domain.Topic) ([]models.Claim, error)
	AddTrustedIssuer(ctx context.Context, issuer domain.Address, topics []domain.Topic) error
	RemoveTrustedIssuer(ctx context.Context, issuer domain.Address) error
	IsTrustedIssuerFor(ctx context.Context, issuer domain.Address, topic domain.Topic) (bool, error)
	TrustedIssuersFor(ctx context.Context, topic domain.Topic) ([]domain.Address, error)
}

// ClaimValidator answers whether a claim is cryptographically valid. The
// check belongs to the issuing system; the registry treats it as a black
// box.
type ClaimValidator interface {
	IsClaimValid(ctx context.Context, subject domain.Address, claim models.Claim) (bool, error)
}

// SignaturePresenceValidator accepts any claim carrying a signature. It is
// the default validator; deployments front a real issuer callback instead.
type SignaturePresenceValidator struct{}

func (SignaturePresenceValidator) IsClaimValid(ctx context.Context, subject domain.Address, claim models.Claim) (bool, error) {
	return len(claim.Signature) > 0, nil
}

// Cache is an optional read-through cache for verification verdicts.
type Cache interface {
	Get(ctx context.Context, addr domain.Address, topics []domain.Topic) (verified bool, ok bool)
	Set(ctx context.Context, addr domain.Address, topics []domain.Topic, verified bool)
	InvalidateAddress(ctx context.Context, addr domain.Address)
	InvalidateAll(ctx context.Context)
}

// Service implements identity verification over a Store.
type Service struct {
	store     Store
	validator ClaimValidator
	clock     clock.Clock
	cache     Cache
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithClaimValidator(v ClaimValidator) Option {
	return func(s *Service) { s.validator = v }
}

func New(store Store, clk clock.Clock, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	svc := &Service{
		store:     store,
		clock:     clk,
		validator: SignaturePresenceValidator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterIdentity registers a wallet with its jurisdiction.
func (s *Service) RegisterIdentity(ctx context.Context, addr domain.Address, country domain.CountryCode) error {
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity address is required")
	}
	if err := s.store.UpsertIdentity(ctx, addr, country); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register identity")
	}
	s.invalidate(ctx, addr)
	return nil
}

// DeleteIdentity removes a wallet registration and its claims.
func (s *Service) DeleteIdentity(ctx context.Context, addr domain.Address) error {
	if err := s.store.DeleteIdentity(ctx, addr); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete identity")
	}
	s.invalidate(ctx, addr)
	return nil
}

// AddClaim attaches a claim to a registered identity.
func (s *Service) AddClaim(ctx context.Context, addr domain.Address, claim models.Claim) error {
	if claim.Topic == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "claim topic is required")
	}
	if claim.Issuer.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "claim issuer is required")
	}
	if err := s.store.AddClaim(ctx, addr, claim); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add claim")
	}
	s.invalidate(ctx, addr)
	return nil
}

// RemoveClaim drops a claim from an identity.
func (s *Service) RemoveClaim(ctx context.Context, addr domain.Address, topic domain.Topic, issuer domain.Address) error {
	if err := s.store.RemoveClaim(ctx, addr, topic, issuer); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove claim")
	}
	s.invalidate(ctx, addr)
	return nil
}

// AddTrustedIssuer trusts an issuer for a set of topics. Issuer trust is
// global to the registry, so all cached verdicts are dropped.
func (s *Service) AddTrustedIssuer(ctx context.Context, issuer domain.Address, topics []domain.Topic) error {
	if issuer.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "issuer address is required")
	}
	if len(topics) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one topic is required")
	}
	if err := s.store.AddTrustedIssuer(ctx, issuer, topics); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add trusted issuer")
	}
	if s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}
	return nil
}

// RemoveTrustedIssuer revokes an issuer's trust for all topics.
func (s *Service) RemoveTrustedIssuer(ctx context.Context, issuer domain.Address) error {
	if err := s.store.RemoveTrustedIssuer(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "issuer not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove trusted issuer")
	}
	if s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}
	return nil
}

// IsTrustedIssuerFor reports whether the issuer is trusted for the topic.
func (s *Service) IsTrustedIssuerFor(ctx context.Context, issuer domain.Address, topic domain.Topic) (bool, error) {
	trusted, err := s.store.IsTrustedIssuerFor(ctx, issuer, topic)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer trust")
	}
	return trusted, nil
}

// TrustedIssuersFor lists issuers trusted for a topic in registration order.
func (s *Service) TrustedIssuersFor(ctx context.Context, topic domain.Topic) ([]domain.Address, error) {
	issuers, err := s.store.TrustedIssuersFor(ctx, topic)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trusted issuers")
	}
	return issuers, nil
}

// ClaimsByTopic returns an identity's claims for a topic.
func (s *Service) ClaimsByTopic(ctx context.Context, addr domain.Address, topic domain.Topic) ([]models.Claim, error) {
	claims, err := s.store.ClaimsByTopic(ctx, addr, topic)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

// IsVerified reports whether the address holds, for every required topic, at
// least one unexpired claim issued by an issuer trusted for that topic that
// the validator accepts. An unregistered address is never verified.
func (s *Service) IsVerified(ctx context.Context, addr domain.Address, topics []domain.Topic) (bool, error) {
	if s.cache != nil {
		if verified, ok := s.cache.Get(ctx, addr, topics); ok {
			return verified, nil
		}
	}

	verified, err := s.isVerified(ctx, addr, topics)
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, addr, topics, verified)
	}
	return verified, nil
}

func (s *Service) isVerified(ctx context.Context, addr domain.Address, topics []domain.Topic) (bool, error) {
	ident, err := s.store.GetIdentity(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}

	now := s.clock.Now()
	for _, topic := range topics {
		if ok, err := s.topicSatisfied(ctx, ident, topic, now); err != nil {
			return false, err
		} else if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) topicSatisfied(ctx context.Context, ident *models.Identity, topic domain.Topic, now uint64) (bool, error) {
	for _, claim := range ident.Claims {
		if claim.Topic != topic || claim.Expired(now) {
			continue
		}
		trusted, err := s.store.IsTrustedIssuerFor(ctx, claim.Issuer, topic)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer trust")
		}
		if !trusted {
			continue
		}
		valid, err := s.validator.IsClaimValid(ctx, ident.Address, claim)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "claim validation failed")
		}
		if valid {
			return true, nil
		}
	}
	return false, nil
}

// InvestorCountry returns the registered jurisdiction of an address.
func (s *Service) InvestorCountry(ctx context.Context, addr domain.Address) (domain.CountryCode, error) {
	ident, err := s.store.GetIdentity(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "identity not registered")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return ident.Country, nil
}

func (s *Service) invalidate(ctx context.Context, addr domain.Address) {
	if s.cache != nil {
		s.cache.InvalidateAddress(ctx, addr)
	}
}
