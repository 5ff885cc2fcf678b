package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conduitapp/conduit/internal/auth"
	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
	"github.com/conduitapp/conduit/internal/store"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeValidation   = "validation_error"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeValidationError writes a 422 error response.
func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// respondError maps a backend error onto the HTTP surface. Database
// unavailability is the one transport-level case callers can act on, so
// it gets its own status; everything unexpected collapses to 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, postgres.ErrDisconnected):
		s.logger.Warn("request failed, database unavailable",
			"path", r.URL.Path, "request_id", requestID(r))
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
	case errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, store.ErrUsernameTaken),
		errors.Is(err, store.ErrDuplicate):
		writeValidationError(w, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid email or password")
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path, "error", err, "request_id", requestID(r))
		writeInternalError(w, "internal server error")
	}
}
