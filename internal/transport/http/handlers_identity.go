package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartcore/internal/identity/models"
	"smartcore/pkg/domain"
	"smartcore/pkg/platform/httputil"
)

func (h *Handler) handleRegisterIdentity(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[registerIdentityRequest](w, r, h.logger)
	if !valid {
		return
	}
	addr, valid := parseAddress(w, req.Address)
	if !valid {
		return
	}
	if err := h.identity.RegisterIdentity(r.Context(), addr, domain.CountryCode(req.Country)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ok)
}

func (h *Handler) handleDeleteIdentity(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	if err := h.identity.DeleteIdentity(r.Context(), addr); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleAddClaim(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	req, valid := httputil.Decode[claimRequest](w, r, h.logger)
	if !valid {
		return
	}
	issuer, valid := parseAddress(w, req.Issuer)
	if !valid {
		return
	}
	claim := models.Claim{
		Topic:     domain.Topic(req.Topic),
		Issuer:    issuer,
		Data:      req.Data,
		Signature: req.Signature,
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.identity.AddClaim(r.Context(), addr, claim); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ok)
}

func (h *Handler) handleRemoveClaim(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	req, valid := httputil.Decode[removeClaimRequest](w, r, h.logger)
	if !valid {
		return
	}
	issuer, valid := parseAddress(w, req.Issuer)
	if !valid {
		return
	}
	if err := h.identity.RemoveClaim(r.Context(), addr, domain.Topic(req.Topic), issuer); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleAddTrustedIssuer(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[trustedIssuerRequest](w, r, h.logger)
	if !valid {
		return
	}
	issuer, valid := parseAddress(w, req.Issuer)
	if !valid {
		return
	}
	topics := make([]domain.Topic, 0, len(req.Topics))
	for _, t := range req.Topics {
		topics = append(topics, domain.Topic(t))
	}
	if err := h.identity.AddTrustedIssuer(r.Context(), issuer, topics); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ok)
}

func (h *Handler) handleRemoveTrustedIssuer(w http.ResponseWriter, r *http.Request) {
	issuer, valid := parseAddress(w, chi.URLParam(r, "address"))
	if !valid {
		return
	}
	if err := h.identity.RemoveTrustedIssuer(r.Context(), issuer); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}
