package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
	"smartcore/pkg/platform/httputil"
)

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type burnRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type batchEntryRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type batchRequest struct {
	Entries []batchEntryRequest `json:"entries"`
}

type freezeAddressRequest struct {
	Address string `json:"address"`
	Frozen  bool   `json:"frozen"`
}

type partialFreezeRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type recoveryRequest struct {
	LostWallet  string `json:"lost_wallet"`
	NewWallet   string `json:"new_wallet"`
	NewIdentity string `json:"new_identity"`
}

type registerIdentityRequest struct {
	Address string `json:"address"`
	Country uint16 `json:"country"`
}

type claimRequest struct {
	Topic     uint64 `json:"topic"`
	Issuer    string `json:"issuer"`
	Data      []byte `json:"data,omitempty"`
	Signature []byte `json:"signature,omitempty"`
	ExpiresAt uint64 `json:"expires_at,omitempty"`
}

type removeClaimRequest struct {
	Topic  uint64 `json:"topic"`
	Issuer string `json:"issuer"`
}

type trustedIssuerRequest struct {
	Issuer string   `json:"issuer"`
	Topics []uint64 `json:"topics"`
}

type addModuleRequest struct {
	Name   string `json:"name"`
	Params []byte `json:"params,omitempty"`
}

type createScheduleRequest struct {
	Reserve         string `json:"reserve"`
	StartDate       uint64 `json:"start_date"`
	EndDate         uint64 `json:"end_date"`
	RateBasisPoints uint64 `json:"rate_basis_points"`
	IntervalSeconds uint64 `json:"interval_seconds"`
}

type yieldClaimRequest struct {
	Holder string `json:"holder"`
}

type yieldFundingRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type statusResponse struct {
	Status string `json:"status"`
}

var ok = statusResponse{Status: "ok"}

// parseAddress validates a request address and writes the error response
// on failure.
func parseAddress(w http.ResponseWriter, raw string) (domain.Address, bool) {
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid address"))
		return "", false
	}
	return addr, true
}

// parseAmount validates a request amount and writes the error response
// on failure.
func parseAmount(w http.ResponseWriter, raw string) (*uint256.Int, bool) {
	v, err := domain.ParseAmount(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid amount"))
		return nil, false
	}
	return v, true
}

// pathAddress reads an address URL parameter.
func pathAddress(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	return parseAddress(w, chi.URLParam(r, "address"))
}

// pathTimepoint reads a unix-seconds URL parameter.
func pathTimepoint(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "timepoint")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid timepoint"))
		return 0, false
	}
	return v, true
}
