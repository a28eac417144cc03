package models

import (
	"smartcore/pkg/domain"
)

// Claim is a signed attestation by an issuer about a subject identity for a
// given topic. Validity is delegated to a ClaimValidator; the store only
// records the material.
type Claim struct {
	Topic     domain.Topic
	Issuer    domain.Address
	Data      []byte
	Signature []byte
	// ExpiresAt is a unix-seconds deadline; zero means the claim does not
	// expire.
	ExpiresAt uint64
}

// Expired reports whether the claim is past its deadline at the given
// timepoint. A claim expiring exactly now is treated as expired.
func (c Claim) Expired(now uint64) bool {
	return c.ExpiresAt != 0 && c.ExpiresAt <= now
}

// Identity is a registered investor or contract identity: a wallet address,
// its jurisdiction, and the claims attached to it.
type Identity struct {
	Address domain.Address
	Country domain.CountryCode
	Claims  []Claim
}

// TrustedIssuer is an issuer identity trusted for a set of claim topics.
type TrustedIssuer struct {
	Issuer domain.Address
	Topics []domain.Topic
}

// TrustedFor reports whether the issuer covers the topic.
func (t TrustedIssuer) TrustedFor(topic domain.Topic) bool {
	for _, tt := range t.Topics {
		if tt == topic {
			return true
		}
	}
	return false
}
