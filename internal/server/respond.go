// ABOUTME: JSON response and error-mapping helpers for the HTTP API
// ABOUTME: Every error maps to a machine-stable reason string, no stack traces

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/costing"
	"github.com/partforge/partforge/internal/store"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeReason writes an error response with a machine-stable reason string.
func writeReason(w http.ResponseWriter, status int, reason, detail string) {
	writeJSON(w, status, errorResponse{Error: reason, Detail: detail})
}

// writeError maps an internal error to an HTTP error response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeReason(w, http.StatusNotFound, "NotFound", "")
	case errors.Is(err, authz.ErrUnlinked):
		writeReason(w, http.StatusForbidden, "ProjectRequired", "")
	case errors.Is(err, store.ErrConflict):
		writeReason(w, http.StatusConflict, "ConflictError", "")
	case errors.Is(err, costing.ErrResourceNotFound):
		writeReason(w, http.StatusUnprocessableEntity, "ResourceNotFound", "")
	default:
		s.logger.Error("request failed", "error", err)
		writeReason(w, http.StatusInternalServerError, "Internal", "")
	}
}

// writeDeny writes the response for an authorization denial.
func writeDeny(w http.ResponseWriter, d authz.Decision) {
	writeReason(w, http.StatusForbidden, string(d.Reason), "")
}

// writeValidation writes a validation failure response.
func writeValidation(w http.ResponseWriter, detail string) {
	writeReason(w, http.StatusBadRequest, "ValidationError", detail)
}

// decodeJSON decodes the request body into v, reporting malformed input as
// a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidation(w, "invalid JSON body")
		return false
	}
	return true
}
