package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type LeaderboardHandler struct {
	service ports.LeaderboardService
}

func NewLeaderboardHandler(service ports.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
	}
}

func (h *LeaderboardHandler) PollLeaderboard(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.write(w, r, pollID)
}

func (h *LeaderboardHandler) GlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, uuid.Nil)
}

func (h *LeaderboardHandler) write(w http.ResponseWriter, r *http.Request, pollID uuid.UUID) {
	board, err := h.service.Leaderboard(r.Context(), pollID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
