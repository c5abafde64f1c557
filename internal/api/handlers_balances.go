package api

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// maxDayRange caps a single range query.
const maxDayRange = 1000

// DayRangeResponse carries per-day values for a [fromDay, toDay] range.
type DayRangeResponse struct {
	Account string   `json:"account"`
	FromDay uint64   `json:"fromDay"`
	ToDay   uint64   `json:"toDay"`
	Values  []string `json:"values"`
}

// parseDayRange reads and validates the fromDay/toDay query parameters.
func parseDayRange(r *http.Request) (types.Day, types.Day, error) {
	fromRaw := r.URL.Query().Get("fromDay")
	toRaw := r.URL.Query().Get("toDay")
	if fromRaw == "" || toRaw == "" {
		return 0, 0, apperrors.NewInvalidParameterError("fromDay/toDay", "both query parameters are required")
	}

	fromDay, err := strconv.ParseUint(fromRaw, 10, 64)
	if err != nil {
		return 0, 0, apperrors.NewInvalidParameterError("fromDay", "must be an unsigned integer")
	}
	toDay, err := strconv.ParseUint(toRaw, 10, 64)
	if err != nil {
		return 0, 0, apperrors.NewInvalidParameterError("toDay", "must be an unsigned integer")
	}
	if toDay < fromDay {
		return 0, 0, apperrors.NewInvalidParameterError("toDay", "must not precede fromDay")
	}
	if toDay-fromDay+1 > maxDayRange {
		return 0, 0, apperrors.NewInvalidParameterError("toDay", "range exceeds the maximum of 1000 days")
	}
	return types.Day(fromDay), types.Day(toDay), nil
}

func toDayRangeResponse(account string, fromDay, toDay types.Day, values []*big.Int) DayRangeResponse {
	out := DayRangeResponse{
		Account: account,
		FromDay: uint64(fromDay),
		ToDay:   uint64(toDay),
		Values:  make([]string, len(values)),
	}
	for i, v := range values {
		out.Values[i] = v.String()
	}
	return out
}

// handleDailyBalances handles GET /api/accounts/{address}/daily-balances.
func (s *Server) handleDailyBalances(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	fromDay, toDay, err := parseDayRange(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	balances, err := s.service.GetDailyBalances(r.Context(), address, fromDay, toDay)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toDayRangeResponse(address, fromDay, toDay, balances))
}

// handleYieldByDays handles GET /api/accounts/{address}/yield-by-days.
func (s *Server) handleYieldByDays(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	fromDay, toDay, err := parseDayRange(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	yields, err := s.service.GetYieldByDays(r.Context(), address, fromDay, toDay)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toDayRangeResponse(address, fromDay, toDay, yields))
}
