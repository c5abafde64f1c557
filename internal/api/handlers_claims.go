package api

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// ClaimRequest is the POST /claims body. Amount is a decimal string; "all",
// the empty string, or an omitted field claims everything available.
type ClaimRequest struct {
	Amount string `json:"amount,omitempty"`
}

// PreviewResponse is the wire form of a claim preview.
type PreviewResponse struct {
	FirstYieldDay  uint64 `json:"firstYieldDay"`
	NextClaimDay   uint64 `json:"nextClaimDay"`
	NextClaimDebit string `json:"nextClaimDebit"`
	PrimaryYield   string `json:"primaryYield"`
	StreamYield    string `json:"streamYield"`
	LastDayYield   string `json:"lastDayYield"`
	Shortfall      string `json:"shortfall"`
	Fee            string `json:"fee"`
}

func toPreviewResponse(p types.ClaimPreview) PreviewResponse {
	return PreviewResponse{
		FirstYieldDay:  uint64(p.FirstYieldDay),
		NextClaimDay:   uint64(p.NextClaimDay),
		NextClaimDebit: p.NextClaimDebit.String(),
		PrimaryYield:   p.PrimaryYield.String(),
		StreamYield:    p.StreamYield.String(),
		LastDayYield:   p.LastDayYield.String(),
		Shortfall:      p.Shortfall.String(),
		Fee:            p.Fee.String(),
	}
}

// ClaimResponse is the wire form of an executed claim.
type ClaimResponse struct {
	Account        string `json:"account"`
	Claimed        string `json:"claimed"`
	Credited       string `json:"credited"`
	Fee            string `json:"fee"`
	NextClaimDay   uint64 `json:"nextClaimDay"`
	NextClaimDebit string `json:"nextClaimDebit"`
}

// LastClaimResponse is the wire form of an account's claim state.
type LastClaimResponse struct {
	Day   uint64 `json:"day"`
	Debit string `json:"debit"`
}

// parseClaimAmount parses an amount string. Empty or "all" means claim
// everything and returns nil.
func parseClaimAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return nil, nil
	}

	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, apperrors.NewInvalidParameterError("amount", "must be a decimal integer or \"all\"")
	}
	if amount.Sign() < 0 {
		return nil, apperrors.NewInvalidParameterError("amount", "must not be negative")
	}
	if amount.Cmp(types.MaxUint256) > 0 {
		return nil, apperrors.NewValueOverflowError("amount", raw)
	}
	return amount, nil
}

// handleClaim handles POST /api/accounts/{address}/claims.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	var req ClaimRequest
	if r.ContentLength != 0 {
		if err := parseJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error(), nil)
			return
		}
	}

	amount, err := parseClaimAmount(req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.service.ExecuteClaim(r.Context(), address, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ClaimResponse{
		Account:        result.Account.Hex(),
		Claimed:        result.Claimed.String(),
		Credited:       result.Credited.String(),
		Fee:            result.Fee.String(),
		NextClaimDay:   uint64(result.Preview.NextClaimDay),
		NextClaimDebit: result.Preview.NextClaimDebit.String(),
	})
}

// handleClaimPreview handles GET /api/accounts/{address}/claim-preview.
func (s *Server) handleClaimPreview(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	amount, err := parseClaimAmount(r.URL.Query().Get("amount"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	preview, err := s.service.GetClaimPreview(r.Context(), address, amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPreviewResponse(preview))
}

// handleClaimAllPreview handles GET /api/accounts/{address}/claim-all-preview.
func (s *Server) handleClaimAllPreview(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	preview, err := s.service.GetClaimAllPreview(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPreviewResponse(preview))
}

// handleLastClaim handles GET /api/accounts/{address}/last-claim.
func (s *Server) handleLastClaim(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	state, err := s.service.GetLastClaim(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, LastClaimResponse{
		Day:   uint64(state.Day),
		Debit: state.Debit.String(),
	})
}
