package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// errorStatus maps engine errors to a status and a stable code clients can
// switch on.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrInvalidPollID):
		return http.StatusBadRequest, "invalid_poll_id"
	case errors.Is(err, domain.ErrPollNotLive):
		return http.StatusConflict, "poll_not_live"
	case errors.Is(err, domain.ErrStaleQuestion):
		return http.StatusConflict, "stale_question"
	case errors.Is(err, domain.ErrDuplicateVote):
		return http.StatusConflict, "duplicate_vote"
	case errors.Is(err, domain.ErrPollLocked):
		return http.StatusConflict, "poll_locked"
	case errors.Is(err, domain.ErrPollNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPermission):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusServiceUnavailable, "conflict"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = domain.ErrInternal.Error()
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
