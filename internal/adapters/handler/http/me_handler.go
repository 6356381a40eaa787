package http

import (
	"net/http"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// GetMe godoc
// @Summary      Returns the authenticated caller
// @Tags         auth
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /api/me [get]
func GetMe(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())
	if actor.ID == "" {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, actor)
}
