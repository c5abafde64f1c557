package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondServiceError maps an error from the service layer onto the wire.
// Categorized errors carry their own status code and safe message; anything
// else is a masked 500.
func respondServiceError(w http.ResponseWriter, err error) {
	if ce, ok := apperrors.AsCategorized(err); ok {
		respondError(w, ce.StatusCode, ce.Code, ce.Message, ce.Details)
		return
	}
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses a JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
