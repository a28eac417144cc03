package httptransport

import (
	"net/http"

	"smartcore/internal/yield"
	dErrors "smartcore/pkg/domainerrors"
	"smartcore/pkg/platform/httputil"
)

// currentSchedule returns the bound schedule, or a not-found error when
// none has been created yet.
func (h *Handler) currentSchedule(w http.ResponseWriter) (*yield.Schedule, bool) {
	h.yieldMu.RLock()
	s := h.schedule
	h.yieldMu.RUnlock()
	if s == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no yield schedule configured"))
		return nil, false
	}
	return s, true
}

type scheduleResponse struct {
	ID              string `json:"id"`
	Reserve         string `json:"reserve"`
	StartDate       uint64 `json:"start_date"`
	EndDate         uint64 `json:"end_date"`
	TotalPeriods    int    `json:"total_periods"`
	CurrentPeriod   int    `json:"current_period"`
	CompletedPeriod int    `json:"last_completed_period"`
}

func scheduleView(s *yield.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:              s.ID().String(),
		Reserve:         s.Reserve().String(),
		StartDate:       s.StartDate(),
		EndDate:         s.EndDate(),
		TotalPeriods:    s.TotalPeriods(),
		CurrentPeriod:   s.CurrentPeriod(),
		CompletedPeriod: s.LastCompletedPeriod(),
	}
}

func (h *Handler) handleYieldInfo(w http.ResponseWriter, r *http.Request) {
	s, valid := h.currentSchedule(w)
	if !valid {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, scheduleView(s))
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[createScheduleRequest](w, r, h.logger)
	if !valid {
		return
	}
	reserve, valid := parseAddress(w, req.Reserve)
	if !valid {
		return
	}

	h.yieldMu.Lock()
	defer h.yieldMu.Unlock()
	if h.schedule != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "yield schedule already configured"))
		return
	}
	s, err := h.newSchedule(yield.Config{
		Reserve:         reserve,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		RateBasisPoints: req.RateBasisPoints,
		IntervalSeconds: req.IntervalSeconds,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.token.SetYieldSchedule(s); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.schedule = s
	httputil.WriteJSON(w, http.StatusCreated, scheduleView(s))
}

func (h *Handler) handleYieldAccrued(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r)
	if !valid {
		return
	}
	s, valid := h.currentSchedule(w)
	if !valid {
		return
	}
	accrued, err := s.CalculateAccruedYield(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{Amount: accrued.Dec()})
}

func (h *Handler) handleYieldClaim(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[yieldClaimRequest](w, r, h.logger)
	if !valid {
		return
	}
	holder, valid := parseAddress(w, req.Holder)
	if !valid {
		return
	}
	s, valid := h.currentSchedule(w)
	if !valid {
		return
	}
	paid, err := s.ClaimYield(r.Context(), holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{Amount: paid.Dec()})
}

func (h *Handler) handleYieldTopUp(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[yieldFundingRequest](w, r, h.logger)
	if !valid {
		return
	}
	account, valid := parseAddress(w, req.Account)
	if !valid {
		return
	}
	amount, valid := parseAmount(w, req.Amount)
	if !valid {
		return
	}
	s, valid := h.currentSchedule(w)
	if !valid {
		return
	}
	if err := s.TopUpUnderlyingAsset(r.Context(), account, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleYieldWithdraw(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[yieldFundingRequest](w, r, h.logger)
	if !valid {
		return
	}
	account, valid := parseAddress(w, req.Account)
	if !valid {
		return
	}
	amount, valid := parseAmount(w, req.Amount)
	if !valid {
		return
	}
	s, valid := h.currentSchedule(w)
	if !valid {
		return
	}
	if err := s.WithdrawUnderlyingAsset(r.Context(), account, amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}

func (h *Handler) handleYieldWithdrawAll(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[yieldClaimRequest](w, r, h.logger)
	if !valid {
		return
	}
	to, valid := parseAddress(w, req.Holder)
	if !valid {
		return
	}
	s, valid := h.currentSchedule(w)
	if !valid {
		return
	}
	if err := s.WithdrawAllUnderlyingAsset(r.Context(), to); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}
