package http

import (
	"net/http"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const (
	defaultRecentReactions = 5
	maxRecentReactions     = 100
)

type ReactionHandler struct {
	service ports.ReactionService
}

func NewReactionHandler(service ports.ReactionService) *ReactionHandler {
	return &ReactionHandler{
		service: service,
	}
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

func (h *ReactionHandler) SendReaction(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req reactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reaction, err := h.service.Send(r.Context(), ActorFrom(r.Context()), pollID, req.Emoji)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, reaction)
}

func (h *ReactionHandler) RecentReactions(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := defaultRecentReactions
	n, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if n != nil {
		limit = min(*n, maxRecentReactions)
	}

	reactions := h.service.Recent(pollID, limit)
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	writeJSON(w, http.StatusOK, reactions)
}
