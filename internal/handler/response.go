// Package handler provides HTTP handlers for the Harper Profiles API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/harper-profiles/internal/domain"
	"github.com/prn-tf/harper-profiles/internal/scoring"
	"github.com/prn-tf/harper-profiles/internal/service"
)

// userPayload is the wire shape of a user record: the stored document plus
// the score breakdown computed at response time.
type userPayload struct {
	*domain.User
	PotentialScoreDetails scoring.Breakdown `json:"potentialScoreDetails"`
}

// messageResponse wraps mutation results.
type messageResponse struct {
	Message string       `json:"message"`
	User    *userPayload `json:"user,omitempty"`
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error().Err(err).Msg("failed to encode response")
		}
	}
}

// writeError maps an error to its HTTP status and writes the JSON body.
// Domain errors surface their message; anything unrecognized is treated as
// an infrastructure failure and answered with a generic 500.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps domain and service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrEmailRequired),
		errors.Is(err, domain.ErrEmptyPatch),
		errors.Is(err, domain.ErrInvalidCursor),
		errors.Is(err, domain.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUpdateConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrExportInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
