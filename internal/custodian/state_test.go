package custodian

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"

	"smartcore/pkg/domain"
)

// =============================================================================
// Custodian State Test Suite
// =============================================================================
// Justification for unit tests: the frozen <= balance invariant is enforced
// through small arithmetic guards whose boundaries (exact available amount,
// clamp-on-consume, transplant merge) are easiest to pin down in isolation.

type CustodianStateSuite struct {
	suite.Suite
	state *State
	acct  domain.Address
	next  domain.Address
}

func TestCustodianStateSuite(t *testing.T) {
	suite.Run(t, new(CustodianStateSuite))
}

func (s *CustodianStateSuite) SetupTest() {
	s.state = NewState()
	s.acct = domain.Address("0x00000000000000000000000000000000000000a1")
	s.next = domain.Address("0x00000000000000000000000000000000000000b2")
}

func (s *CustodianStateSuite) TestSetFrozen() {
	s.Run("toggle reports change", func() {
		s.True(s.state.SetFrozen(s.acct, true))
		s.True(s.state.IsFrozen(s.acct))
	})

	s.Run("repeat set is idempotent", func() {
		s.False(s.state.SetFrozen(s.acct, true))
		s.True(s.state.IsFrozen(s.acct))
	})

	s.Run("unfreeze reports change", func() {
		s.True(s.state.SetFrozen(s.acct, false))
		s.False(s.state.IsFrozen(s.acct))
		s.False(s.state.SetFrozen(s.acct, false))
	})
}

func (s *CustodianStateSuite) TestPartialFreeze() {
	balance := uint256.NewInt(1000)

	s.Run("freeze within available succeeds", func() {
		s.NoError(s.state.FreezePartial(s.acct, uint256.NewInt(400), balance))
		s.Equal(uint256.NewInt(400), s.state.FrozenAmount(s.acct))
	})

	s.Run("freezes accumulate", func() {
		s.NoError(s.state.FreezePartial(s.acct, uint256.NewInt(200), balance))
		s.Equal(uint256.NewInt(600), s.state.FrozenAmount(s.acct))
	})

	s.Run("freeze beyond available is rejected", func() {
		err := s.state.FreezePartial(s.acct, uint256.NewInt(401), balance)
		var exceeded *FreezeExceedsAvailableError
		s.ErrorAs(err, &exceeded)
		s.Equal(uint256.NewInt(400), exceeded.Available)
		s.Equal(uint256.NewInt(600), s.state.FrozenAmount(s.acct))
	})

	s.Run("freeze up to the exact available succeeds", func() {
		s.NoError(s.state.FreezePartial(s.acct, uint256.NewInt(400), balance))
		s.Equal(uint256.NewInt(1000), s.state.FrozenAmount(s.acct))
	})

	s.Run("unfreeze beyond frozen is rejected", func() {
		err := s.state.UnfreezePartial(s.acct, uint256.NewInt(1001))
		var insufficient *InsufficientFrozenError
		s.ErrorAs(err, &insufficient)
		s.Equal(uint256.NewInt(1000), insufficient.Current)
	})

	s.Run("full unfreeze clears the entry", func() {
		s.NoError(s.state.UnfreezePartial(s.acct, uint256.NewInt(1000)))
		s.True(s.state.FrozenAmount(s.acct).IsZero())
	})
}

func (s *CustodianStateSuite) TestClampFrozen() {
	s.Require().NoError(s.state.FreezePartial(s.acct, uint256.NewInt(800), uint256.NewInt(1000)))

	s.Run("clamp lowers to the limit", func() {
		s.state.ClampFrozen(s.acct, uint256.NewInt(300))
		s.Equal(uint256.NewInt(300), s.state.FrozenAmount(s.acct))
	})

	s.Run("clamp above current is a no-op", func() {
		s.state.ClampFrozen(s.acct, uint256.NewInt(900))
		s.Equal(uint256.NewInt(300), s.state.FrozenAmount(s.acct))
	})
}

func (s *CustodianStateSuite) TestTransplant() {
	s.Run("moves flag and amount, clears the source", func() {
		s.state.SetFrozen(s.acct, true)
		s.Require().NoError(s.state.FreezePartial(s.acct, uint256.NewInt(400), uint256.NewInt(1000)))

		s.state.Transplant(s.acct, s.next)

		s.False(s.state.IsFrozen(s.acct))
		s.True(s.state.FrozenAmount(s.acct).IsZero())
		s.True(s.state.IsFrozen(s.next))
		s.Equal(uint256.NewInt(400), s.state.FrozenAmount(s.next))
	})

	s.Run("merges into an existing frozen amount", func() {
		s.Require().NoError(s.state.FreezePartial(s.acct, uint256.NewInt(100), uint256.NewInt(100)))
		s.state.Transplant(s.acct, s.next)
		s.Equal(uint256.NewInt(500), s.state.FrozenAmount(s.next))
	})
}
