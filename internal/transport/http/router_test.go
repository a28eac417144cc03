package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"

	"smartcore/internal/audit"
	"smartcore/internal/compliance"
	"smartcore/internal/custodian"
	"smartcore/internal/identity"
	"smartcore/internal/identity/models"
	identitystore "smartcore/internal/identity/store"
	"smartcore/internal/ledger"
	"smartcore/internal/platform/clock"
	"smartcore/internal/token"
	"smartcore/internal/yield"
	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
	"smartcore/pkg/platform/middleware/auth"
	"smartcore/pkg/testutil"
)

// =============================================================================
// Router Test Suite
// =============================================================================
// Justification for handler tests: the role guards and error translation live
// only in this layer; domain suites cannot catch a route mounted under the
// wrong guard or a mis-mapped status code.

const (
	routerStartTime uint64 = 1_700_000_000
	signingKey             = "router-test-signing-key"
)

type RouterSuite struct {
	suite.Suite
	ctx      context.Context
	clk      *clock.Manual
	identity *identity.Service
	token    *token.Service
	asset    *yield.SimpleAsset
	router   http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctx = context.Background()
	s.clk = clock.NewManual(routerStartTime)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.identity, err = identity.New(identitystore.NewInMemoryStore(), s.clk, identity.WithLogger(logger))
	s.Require().NoError(err)

	chain := compliance.NewChain(logger)
	led, err := ledger.New(s.clk, ledger.WithLogger(logger))
	s.Require().NoError(err)
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithLogger(logger))

	s.token, err = token.New(
		token.Config{Name: "Test Bond", Symbol: "TBOND", Decimals: 18},
		s.identity, chain, custodian.NewState(), led, s.clk,
		token.WithLogger(logger),
		token.WithAuditPublisher(auditor),
	)
	s.Require().NoError(err)

	newModule := func(name string, params []byte) (compliance.Module, error) {
		switch name {
		case "country-allowlist":
			return compliance.NewCountryAllowListModule(s.identity), nil
		case "country-blocklist":
			return compliance.NewCountryBlockListModule(s.identity), nil
		default:
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance module %q", name)
		}
	}

	s.asset = yield.NewSimpleAsset()
	newSchedule := func(cfg yield.Config) (*yield.Schedule, error) {
		return yield.New(cfg, s.token, s.asset, s.clk, yield.WithLogger(logger))
	}

	handler := NewHandler(s.token, s.identity, newModule, newSchedule, auditor, logger)
	s.router = NewRouter(handler, auth.NewValidator(signingKey))
}

// bearer mints an HS256 token carrying the given roles.
func (s *RouterSuite) bearer(roles ...string) string {
	claims := &auth.Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) addr(b byte) string {
	return fmt.Sprintf("0x%040x", b)
}

// verify registers addr with a KYC claim from a trusted issuer, directly
// against the identity service so each test controls its own fixtures.
func (s *RouterSuite) verify(raw string) {
	issuer := domain.Address(s.addr(0x10))
	addr := domain.Address(raw)
	s.Require().NoError(s.identity.AddTrustedIssuer(s.ctx, issuer, []domain.Topic{domain.TopicKYC}))
	s.Require().NoError(s.identity.RegisterIdentity(s.ctx, addr, domain.CountryBelgium))
	s.Require().NoError(s.identity.AddClaim(s.ctx, addr, models.Claim{
		Topic:     domain.TopicKYC,
		Issuer:    issuer,
		Signature: []byte{0x01},
	}))
}

// =============================================================================
// Public Surface
// =============================================================================

func (s *RouterSuite) TestPublicEndpoints() {
	s.Run("health responds without auth", func() {
		rr := s.do(http.MethodGet, "/healthz", nil, "")
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("token info is public", func() {
		rr := s.do(http.MethodGet, "/token", nil, "")
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "symbol", "TBOND")
		testutil.AssertJSONContains(s.T(), rr, "paused", false)
	})

	s.Run("balances are public and zero by default", func() {
		rr := s.do(http.MethodGet, "/token/balance/"+s.addr(0xa1), nil, "")
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "balance", "0")
	})

	s.Run("malformed address rejected", func() {
		rr := s.do(http.MethodGet, "/token/balance/not-an-address", nil, "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("metrics endpoint mounted", func() {
		rr := s.do(http.MethodGet, "/metrics", nil, "")
		testutil.AssertStatusOK(s.T(), rr)
	})
}

// =============================================================================
// Authentication and Role Guards
// =============================================================================

func (s *RouterSuite) TestAuthGuards() {
	mintBody := mintRequest{To: s.addr(0xa1), Amount: "100"}

	s.Run("missing token", func() {
		rr := s.do(http.MethodPost, "/token/mint", mintBody, "")
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("garbage token", func() {
		rr := s.do(http.MethodPost, "/token/mint", mintBody, "not-a-jwt")
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("expired token", func() {
		claims := &auth.Claims{
			Roles: []string{auth.RoleSupply},
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
		s.Require().NoError(err)

		rr := s.do(http.MethodPost, "/token/mint", mintBody, signed)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("authenticated but missing role", func() {
		rr := s.do(http.MethodPost, "/token/mint", mintBody, s.bearer())
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	})

	s.Run("role from another group does not carry over", func() {
		rr := s.do(http.MethodPost, "/token/mint", mintBody, s.bearer(auth.RoleCustodian))
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	})

	s.Run("admin implies every role", func() {
		s.verify(s.addr(0xa1))
		rr := s.do(http.MethodPost, "/token/mint", mintBody, s.bearer(auth.RoleAdmin))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

// =============================================================================
// Token Operations
// =============================================================================

func (s *RouterSuite) TestMintAndTransfer() {
	alice, bob := s.addr(0xa1), s.addr(0xb0)
	s.verify(alice)
	s.verify(bob)

	s.Run("mint to verified recipient", func() {
		rr := s.do(http.MethodPost, "/token/mint", mintRequest{To: alice, Amount: "1000"}, s.bearer(auth.RoleSupply))
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodGet, "/token/balance/"+alice, nil, "")
		testutil.AssertJSONContains(s.T(), rr, "balance", "1000")
		rr = s.do(http.MethodGet, "/token/supply", nil, "")
		testutil.AssertJSONContains(s.T(), rr, "amount", "1000")
	})

	s.Run("mint to unverified recipient", func() {
		rr := s.do(http.MethodPost, "/token/mint", mintRequest{To: s.addr(0xee), Amount: "5"}, s.bearer(auth.RoleSupply))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "rejected")
	})

	s.Run("transfer between verified holders", func() {
		rr := s.do(http.MethodPost, "/token/transfer",
			transferRequest{From: alice, To: bob, Amount: "400"}, s.bearer())
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodGet, "/token/balance/"+bob, nil, "")
		testutil.AssertJSONContains(s.T(), rr, "balance", "400")
	})

	s.Run("historical balance floors to last checkpoint", func() {
		mintTime := s.clk.Now()
		s.clk.Advance(100)

		path := fmt.Sprintf("/token/balance/%s/at/%d", alice, mintTime)
		rr := s.do(http.MethodGet, path, nil, "")
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "amount", "600")
	})

	s.Run("future timepoint rejected", func() {
		path := fmt.Sprintf("/token/supply/at/%d", s.clk.Now()+1)
		rr := s.do(http.MethodGet, path, nil, "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("malformed body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/token/transfer", "{not json")
		req.Header.Set("Authorization", "Bearer "+s.bearer())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *RouterSuite) TestPauseGate() {
	alice := s.addr(0xa1)
	s.verify(alice)

	rr := s.do(http.MethodPost, "/token/pause", nil, s.bearer(auth.RoleAdmin))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(http.MethodGet, "/token", nil, "")
	testutil.AssertJSONContains(s.T(), rr, "paused", true)

	rr = s.do(http.MethodPost, "/token/mint", mintRequest{To: alice, Amount: "10"}, s.bearer(auth.RoleSupply))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "rejected")

	rr = s.do(http.MethodPost, "/token/unpause", nil, s.bearer(auth.RoleAdmin))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(http.MethodPost, "/token/mint", mintRequest{To: alice, Amount: "10"}, s.bearer(auth.RoleSupply))
	testutil.AssertStatusOK(s.T(), rr)
}

// =============================================================================
// Custodian Operations
// =============================================================================

func (s *RouterSuite) TestCustodianEndpoints() {
	alice, bob := s.addr(0xa1), s.addr(0xb0)
	s.verify(alice)
	s.verify(bob)
	rr := s.do(http.MethodPost, "/token/mint", mintRequest{To: alice, Amount: "1000"}, s.bearer(auth.RoleSupply))
	testutil.AssertStatusOK(s.T(), rr)

	s.Run("partial freeze caps transfers", func() {
		rr := s.do(http.MethodPost, "/custodian/freeze-partial",
			partialFreezeRequest{Address: alice, Amount: "700"}, s.bearer(auth.RoleCustodian))
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodPost, "/token/transfer",
			transferRequest{From: alice, To: bob, Amount: "500"}, s.bearer())
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "rejected")

		rr = s.do(http.MethodGet, "/token/balance/"+alice, nil, "")
		testutil.AssertJSONContains(s.T(), rr, "available", "300")
	})

	s.Run("forced transfer ignores the freeze", func() {
		rr := s.do(http.MethodPost, "/custodian/forced-transfer",
			transferRequest{From: alice, To: bob, Amount: "900"}, s.bearer(auth.RoleCustodian))
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodGet, "/token/balance/"+bob, nil, "")
		testutil.AssertJSONContains(s.T(), rr, "balance", "900")
	})

	s.Run("address freeze blocks receipt", func() {
		rr := s.do(http.MethodPost, "/custodian/freeze-address",
			freezeAddressRequest{Address: bob, Frozen: true}, s.bearer(auth.RoleCustodian))
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodGet, "/token/frozen/"+bob, nil, "")
		testutil.AssertJSONContains(s.T(), rr, "frozen", true)

		rr = s.do(http.MethodPost, "/token/mint", mintRequest{To: bob, Amount: "1"}, s.bearer(auth.RoleSupply))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "rejected")
	})

	s.Run("recovery moves the full position", func() {
		carol := s.addr(0xc0)
		s.verify(carol)
		rr := s.do(http.MethodPost, "/custodian/recover",
			recoveryRequest{LostWallet: alice, NewWallet: carol, NewIdentity: carol}, s.bearer(auth.RoleCustodian))
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodGet, "/token/balance/"+carol, nil, "")
		testutil.AssertJSONContains(s.T(), rr, "balance", "100")
		rr = s.do(http.MethodGet, "/token/balance/"+alice, nil, "")
		testutil.AssertJSONContains(s.T(), rr, "balance", "0")
	})
}

// =============================================================================
// Identity and Compliance Administration
// =============================================================================

func (s *RouterSuite) TestIdentityEndpoints() {
	issuer, investor := s.addr(0x10), s.addr(0xa1)
	admin := s.bearer(auth.RoleAdmin)

	rr := s.do(http.MethodPost, "/issuers",
		trustedIssuerRequest{Issuer: issuer, Topics: []uint64{uint64(domain.TopicKYC)}}, admin)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	rr = s.do(http.MethodPost, "/identity/register",
		registerIdentityRequest{Address: investor, Country: uint16(domain.CountryFrance)}, admin)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	rr = s.do(http.MethodPost, "/identity/"+investor+"/claims",
		claimRequest{Topic: uint64(domain.TopicKYC), Issuer: issuer, Signature: []byte{0x01}}, admin)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	// The registered claim now satisfies the mint-side verification gate.
	rr = s.do(http.MethodPost, "/token/mint", mintRequest{To: investor, Amount: "50"}, s.bearer(auth.RoleSupply))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(http.MethodDelete, "/identity/"+investor+"/claims",
		removeClaimRequest{Topic: uint64(domain.TopicKYC), Issuer: issuer}, admin)
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(http.MethodPost, "/token/mint", mintRequest{To: investor, Amount: "50"}, s.bearer(auth.RoleSupply))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "rejected")

	rr = s.do(http.MethodDelete, "/identity/"+s.addr(0xdd), nil, admin)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RouterSuite) TestComplianceModuleEndpoints() {
	admin := s.bearer(auth.RoleAdmin)

	s.Run("unknown module name", func() {
		rr := s.do(http.MethodPost, "/compliance/modules", addModuleRequest{Name: "velocity-cap"}, admin)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("add and remove a country module", func() {
		rr := s.do(http.MethodPost, "/compliance/modules",
			addModuleRequest{Name: "country-blocklist"}, admin)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)

		rr = s.do(http.MethodGet, "/compliance/modules", nil, admin)
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodDelete, "/compliance/modules/country-blocklist", nil, admin)
		testutil.AssertStatusOK(s.T(), rr)

		rr = s.do(http.MethodDelete, "/compliance/modules/country-blocklist", nil, admin)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

// =============================================================================
// Yield Endpoints
// =============================================================================

func (s *RouterSuite) TestYieldEndpoints() {
	alice := s.addr(0xa1)
	reserve := s.addr(0x77)
	s.verify(alice)
	rr := s.do(http.MethodPost, "/token/mint", mintRequest{To: alice, Amount: "1000"}, s.bearer(auth.RoleSupply))
	testutil.AssertStatusOK(s.T(), rr)

	yieldAdmin := s.bearer(auth.RoleYieldAdmin)

	s.Run("no schedule yet", func() {
		rr := s.do(http.MethodGet, "/yield", nil, "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	create := createScheduleRequest{
		Reserve:         reserve,
		StartDate:       s.clk.Now() + 100,
		EndDate:         s.clk.Now() + 100 + 3*2_592_000,
		RateBasisPoints: 500,
		IntervalSeconds: 2_592_000,
	}

	s.Run("create schedule", func() {
		rr := s.do(http.MethodPost, "/yield", create, yieldAdmin)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "total_periods", float64(3))
	})

	s.Run("second schedule conflicts", func() {
		rr := s.do(http.MethodPost, "/yield", create, yieldAdmin)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("mint blocked once the schedule is active", func() {
		s.clk.Advance(200)
		rr := s.do(http.MethodPost, "/token/mint", mintRequest{To: alice, Amount: "1"}, s.bearer(auth.RoleSupply))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "rejected")
	})

	s.Run("top up the reserve", func() {
		s.asset.Issue(domain.Address(s.addr(0x88)), uint256.NewInt(10_000))
		rr := s.do(http.MethodPost, "/yield/top-up",
			yieldFundingRequest{Account: s.addr(0x88), Amount: "10000"}, yieldAdmin)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("claim after one full period", func() {
		s.clk.Advance(2_592_000)
		rr := s.do(http.MethodGet, "/yield/accrued/"+alice, nil, "")
		testutil.AssertStatusOK(s.T(), rr)

		// 5% of 1000 for one completed period.
		rr = s.do(http.MethodPost, "/yield/claim", yieldClaimRequest{Holder: alice}, s.bearer())
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "amount", "50")
	})

	s.Run("immediate second claim finds nothing", func() {
		rr := s.do(http.MethodPost, "/yield/claim", yieldClaimRequest{Holder: alice}, s.bearer())
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "rejected")
	})

	s.Run("withdraw from the reserve", func() {
		rr := s.do(http.MethodPost, "/yield/withdraw",
			yieldFundingRequest{Account: s.addr(0x88), Amount: "1000"}, yieldAdmin)
		testutil.AssertStatusOK(s.T(), rr)
	})
}
