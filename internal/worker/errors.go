package worker

import (
	"context"
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/laboveda/pkg/models"
)

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error              string `json:"error"`
	Field              string `json:"field,omitempty"`
	RequestID          string `json:"request_id,omitempty"`
	NeedsRecalibration bool   `json:"needs_recalibration,omitempty"`
}

// statusFor maps an engine error to an HTTP status.
// Inconsistent state is checked first because it wraps the cascade cause.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInconsistentState):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes err with the status of its category.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{
		Error:              err.Error(),
		RequestID:          GetRequestID(r.Context()),
		NeedsRecalibration: models.NeedsRecalibration(err),
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", resp.RequestID).Msg("Request failed")
	}
	writeJSON(w, status, resp)
}

// writeProblem writes a plain error message with status.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: GetRequestID(r.Context())})
}

// decodeJSON reads the request body into v. Unknown fields are rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Err: err, Field: "body", Reason: "malformed JSON: " + err.Error()}
	}
	return nil
}
