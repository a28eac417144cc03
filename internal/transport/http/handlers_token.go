package httptransport

import (
	"net/http"

	"smartcore/internal/token"
	"smartcore/pkg/platform/httputil"
)

type tokenInfoResponse struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	Paused      bool     `json:"paused"`
	TotalSupply string   `json:"total_supply"`
	Modules     []string `json:"compliance_modules"`
}

func (h *Handler) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, tokenInfoResponse{
		Name:        h.token.Name(),
		Symbol:      h.token.Symbol(),
		Decimals:    h.token.Decimals(),
		Paused:      h.token.Paused(),
		TotalSupply: h.token.TotalSupply().Dec(),
		Modules:     h.token.Chain().ModuleNames(),
	})
}

func (h *Handler) handleTotalSupply(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, amountResponse{Amount: h.token.TotalSupply().Dec()})
}

func (h *Handler) handleTotalSupplyAt(w http.ResponseWriter, r *http.Request) {
	tp, valid := pathTimepoint(w, r)
	if !valid {
		return
	}
	supply, err := h.token.TotalSupplyAt(tp)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{Amount: supply.Dec()})
}

type balanceResponse struct {
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Frozen    string `json:"frozen"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		Balance:   h.token.BalanceOf(addr).Dec(),
		Available: h.token.AvailableBalanceOf(addr).Dec(),
		Frozen:    h.token.FrozenAmount(addr).Dec(),
	})
}

func (h *Handler) handleBalanceAt(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	tp, valid := pathTimepoint(w, r)
	if !valid {
		return
	}
	balance, err := h.token.BalanceOfAt(addr, tp)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{Amount: balance.Dec()})
}

type frozenResponse struct {
	Frozen       bool   `json:"frozen"`
	FrozenAmount string `json:"frozen_amount"`
}

func (h *Handler) handleFrozen(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, frozenResponse{
		Frozen:       h.token.IsFrozen(addr),
		FrozenAmount: h.token.FrozenAmount(addr).Dec(),
	})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[mintRequest](w, r, h.logger)
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
	if err := h.token.Mint(r.Context(), to, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
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
	if err := h.token.Transfer(r.Context(), from, to, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[burnRequest](w, r, h.logger)
	if !valid {
		return
	}
	from, valid := parseAddress(w, req.From)
	if !valid {
		return
	}
	amount, valid := parseAmount(w, req.Amount)
	if !valid {
		return
	}
	if err := h.token.Burn(r.Context(), from, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) batchEntries(w http.ResponseWriter, req batchRequest) ([]token.BatchEntry, bool) {
	entries := make([]token.BatchEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entry := token.BatchEntry{}
		if e.From != "" {
			from, valid := parseAddress(w, e.From)
			if !valid {
				return nil, false
			}
			entry.From = from
		}
		to, valid := parseAddress(w, e.To)
		if !valid {
			return nil, false
		}
		amount, valid := parseAmount(w, e.Amount)
		if !valid {
			return nil, false
		}
		entry.To = to
		entry.Amount = amount
		entries = append(entries, entry)
	}
	return entries, true
}

func (h *Handler) handleBatchMint(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[batchRequest](w, r, h.logger)
	if !valid {
		return
	}
	entries, valid := h.batchEntries(w, req)
	if !valid {
		return
	}
	if err := h.token.BatchMint(r.Context(), entries); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleBatchTransfer(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[batchRequest](w, r, h.logger)
	if !valid {
		return
	}
	entries, valid := h.batchEntries(w, req)
	if !valid {
		return
	}
	if err := h.token.BatchTransfer(r.Context(), entries); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.token.Pause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	if err := h.token.Unpause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}
