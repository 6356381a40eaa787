package http

import (
	"net/http"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type VoteHandler struct {
	service ports.VoteService
}

func NewVoteHandler(service ports.VoteService) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

type voteRequest struct {
	QuestionIndex *int   `json:"question_index" validate:"required,min=0"`
	Options       []int  `json:"options"`
	Answer        string `json:"answer" validate:"max=4000"`
}

type hasVotedResponse struct {
	Voted         bool `json:"voted"`
	QuestionIndex *int `json:"question_index,omitempty"`
}

// SubmitVote godoc
// @Summary      Submits the caller's answer to the current question
// @Description  Answers 409 with code stale_question or poll_not_live when the client is behind; it should refresh and retry.
// @Tags         votes
// @Accept       json
// @Produce      json
// @Success      201
// @Failure      400,401,404,409,503
// @Router       /api/polls/{id}/votes [post]
func (h *VoteHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req voteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input := ports.VoteInput{
		PollID:        pollID,
		QuestionIndex: *req.QuestionIndex,
		Payload: domain.Payload{
			Options: req.Options,
			Answer:  req.Answer,
		},
	}

	receipt, err := h.service.Vote(r.Context(), ActorFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

func (h *VoteHandler) HasVoted(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	question, err := intQuery(r, "question")
	if err != nil {
		writeError(w, r, err)
		return
	}

	voted, err := h.service.HasVoted(r.Context(), ActorFrom(r.Context()), pollID, question)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, hasVotedResponse{Voted: voted, QuestionIndex: question})
}

func (h *VoteHandler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	votes, err := h.service.AuditLog(r.Context(), ActorFrom(r.Context()), pollID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if votes == nil {
		votes = []domain.Vote{}
	}

	writeJSON(w, http.StatusOK, votes)
}
