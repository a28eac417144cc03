package domain

import (
	"strconv"

	dErrors "smartcore/pkg/domainerrors"
)

// Topic is an integer identifier naming a category of claim an identity can
// carry (KYC, AML, collateral attestation, ...). Issuers are trusted per
// topic, never globally.
type Topic uint64

// Well-known claim topics. The numbering mirrors the claim scheme used by
// the on-chain identity registries this service fronts.
const (
	TopicKYC        Topic = 1
	TopicAML        Topic = 2
	TopicCollateral Topic = 10
)

// ParseTopic constructs a Topic from external input.
func ParseTopic(s string) (Topic, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "topic cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "topic must be a positive integer")
	}
	return Topic(v), nil
}

func (t Topic) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
