package httptransport

import (
	"net/http"

	"smartcore/pkg/platform/httputil"
)

func (h *Handler) handleSetAddressFrozen(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[freezeAddressRequest](w, r, h.logger)
	if !valid {
		return
	}
	addr, valid := parseAddress(w, req.Address)
	if !valid {
		return
	}
	if err := h.token.SetAddressFrozen(r.Context(), addr, req.Frozen); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleFreezePartial(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[partialFreezeRequest](w, r, h.logger)
	if !valid {
		return
	}
	addr, valid := parseAddress(w, req.Address)
	if !valid {
		return
	}
	amount, valid := parseAmount(w, req.Amount)
	if !valid {
		return
	}
	if err := h.token.FreezePartialTokens(r.Context(), addr, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleUnfreezePartial(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[partialFreezeRequest](w, r, h.logger)
	if !valid {
		return
	}
	addr, valid := parseAddress(w, req.Address)
	if !valid {
		return
	}
	amount, valid := parseAmount(w, req.Amount)
	if !valid {
		return
	}
	if err := h.token.UnfreezePartialTokens(r.Context(), addr, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleForcedTransfer(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[transferRequest](w, r, h.logger)
	if !valid {
		return
	}
	from, valid := parseAddress(w, req.From)
	if !valid {
		return
	}
	to, valid := parseAddress(w, req.To)
	if !valid {
		return
	}
	amount, valid := parseAmount(w, req.Amount)
	if !valid {
		return
	}
	if err := h.token.ForcedTransfer(r.Context(), from, to, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleRecover(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[recoveryRequest](w, r, h.logger)
	if !valid {
		return
	}
	lost, valid := parseAddress(w, req.LostWallet)
	if !valid {
		return
	}
	next, valid := parseAddress(w, req.NewWallet)
	if !valid {
		return
	}
	ident, valid := parseAddress(w, req.NewIdentity)
	if !valid {
		return
	}
	if err := h.token.RecoverAddress(r.Context(), lost, next, ident); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	events, err := h.auditor.List(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}
