package api

import (
	"net/http"

	"github.com/cloudwalk/yield-streamer/internal/types"
)

// YieldRateRequest is the POST /admin/yield-rates body.
type YieldRateRequest struct {
	EffectiveDay uint64 `json:"effectiveDay"`
	Rate         string `json:"rate"`
}

// LookBackRequest is the POST /admin/look-back-periods body.
type LookBackRequest struct {
	EffectiveDay uint64 `json:"effectiveDay"`
	Length       uint64 `json:"length"`
}

// FeeReceiverRequest is the PUT /admin/fee-receiver body.
type FeeReceiverRequest struct {
	Receiver string `json:"receiver"`
}

// ScheduleResponse is the GET /admin/schedule body.
type ScheduleResponse struct {
	YieldRates      []YieldRateEntry `json:"yieldRates"`
	LookBackPeriods []LookBackEntry  `json:"lookBackPeriods"`
}

// YieldRateEntry is one effective-dated yield rate.
type YieldRateEntry struct {
	EffectiveDay uint64 `json:"effectiveDay"`
	Rate         string `json:"rate"`
}

// LookBackEntry is one effective-dated look-back period.
type LookBackEntry struct {
	EffectiveDay uint64 `json:"effectiveDay"`
	Length       uint64 `json:"length"`
}

// handleConfigureYieldRate handles POST /api/admin/yield-rates.
func (s *Server) handleConfigureYieldRate(w http.ResponseWriter, r *http.Request) {
	var req YieldRateRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error(), nil)
		return
	}

	rate, err := parseClaimAmount(req.Rate)
	if err != nil || rate == nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "rate must be a non-negative decimal integer", nil)
		return
	}

	if err := s.service.ConfigureYieldRate(r.Context(), types.Day(req.EffectiveDay), rate); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, YieldRateEntry{EffectiveDay: req.EffectiveDay, Rate: rate.String()})
}

// handleConfigureLookBack handles POST /api/admin/look-back-periods.
func (s *Server) handleConfigureLookBack(w http.ResponseWriter, r *http.Request) {
	var req LookBackRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error(), nil)
		return
	}

	if err := s.service.ConfigureLookBackPeriod(r.Context(), types.Day(req.EffectiveDay), req.Length); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, LookBackEntry{EffectiveDay: req.EffectiveDay, Length: req.Length})
}

// handleSetFeeReceiver handles PUT /api/admin/fee-receiver.
func (s *Server) handleSetFeeReceiver(w http.ResponseWriter, r *http.Request) {
	var req FeeReceiverRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error(), nil)
		return
	}

	if err := s.service.SetFeeReceiver(r.Context(), req.Receiver); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"receiver": req.Receiver})
}

// handleGetSchedule handles GET /api/admin/schedule.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	rates, lookBacks := s.service.Schedule()

	resp := ScheduleResponse{
		YieldRates:      make([]YieldRateEntry, len(rates)),
		LookBackPeriods: make([]LookBackEntry, len(lookBacks)),
	}
	for i, rate := range rates {
		resp.YieldRates[i] = YieldRateEntry{EffectiveDay: uint64(rate.EffectiveDay), Rate: rate.Rate.String()}
	}
	for i, lb := range lookBacks {
		resp.LookBackPeriods[i] = LookBackEntry{EffectiveDay: uint64(lb.EffectiveDay), Length: lb.Length}
	}
	respondJSON(w, http.StatusOK, resp)
}
