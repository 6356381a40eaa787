package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type PollHandler struct {
	service ports.PollService
	results ports.ResultService
}

func NewPollHandler(service ports.PollService, results ports.ResultService) *PollHandler {
	return &PollHandler{
		service: service,
		results: results,
	}
}

type createPollRequest struct {
	Title     string                `json:"title" validate:"required,max=200"`
	Type      domain.PollType       `json:"type" validate:"omitempty,oneof=contest survey quiz exam"`
	Questions []domain.QuestionJSON `json:"questions" validate:"required,min=1"`
}

type updatePollRequest struct {
	Title     *string               `json:"title" validate:"omitempty,max=200"`
	Type      *domain.PollType      `json:"type" validate:"omitempty,oneof=contest survey quiz exam"`
	Questions []domain.QuestionJSON `json:"questions" validate:"omitempty,min=1"`
}

type advanceRequest struct {
	Direction     int  `json:"direction" validate:"required,oneof=1 -1"`
	ExpectedIndex *int `json:"expected_index" validate:"omitempty,min=0"`
}

// CreatePoll godoc
// @Summary      Creates a poll
// @Description  Creates a waiting poll owned by the caller. Requires the creator permission.
// @Tags         polls
// @Accept       json
// @Produce      json
// @Success      201
// @Failure      400,401,403
// @Router       /api/polls [post]
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	questions, err := domain.DecodeQuestions(req.Questions)
	if err != nil {
		writeError(w, r, err)
		return
	}

	input := ports.CreatePollInput{
		Title:     req.Title,
		Type:      req.Type,
		Questions: questions,
	}

	poll, err := h.service.Create(r.Context(), ActorFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, poll)
}

func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}

	input := ports.ListPollsInput{}
	if page != nil {
		input.Page = *page
	}

	polls, err := h.service.ListPolls(r.Context(), ActorFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if polls == nil {
		polls = []*domain.Poll{}
	}

	writeJSON(w, http.StatusOK, polls)
}

// GetPoll returns the full definition to the poll's managers and a copy
// without answer keys to everyone else.
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.service.GetPoll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !poll.CanManage(ActorFrom(r.Context())) {
		writeJSON(w, http.StatusOK, poll.Public())
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

func (h *PollHandler) UpdatePoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updatePollRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input := ports.UpdatePollInput{
		PollID: pollID,
		Title:  req.Title,
		Type:   req.Type,
	}
	if req.Questions != nil {
		if input.Questions, err = domain.DecodeQuestions(req.Questions); err != nil {
			writeError(w, r, err)
			return
		}
	}

	poll, err := h.service.Update(r.Context(), ActorFrom(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, poll)
}

func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), ActorFrom(r.Context()), pollID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PollHandler) StartPoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Start(r.Context(), ActorFrom(r.Context()), pollID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AdvanceQuestion godoc
// @Summary      Moves the poll to the next or previous question
// @Description  A stale expected_index or an out of range step answers 200 with changed=false and the current state.
// @Tags         polls
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400,401,403,404
// @Router       /api/polls/{id}/advance [post]
func (h *PollHandler) AdvanceQuestion(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req advanceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Advance(r.Context(), ActorFrom(r.Context()), ports.AdvanceInput{
		PollID:        pollID,
		Direction:     req.Direction,
		ExpectedIndex: req.ExpectedIndex,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PollHandler) EndPoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.End(r.Context(), ActorFrom(r.Context()), pollID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PollHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "question"))
	if err != nil {
		writeError(w, r, &domain.ValidationError{Field: "question", Reason: "must be an integer"})
		return
	}

	agg, err := h.results.GetAggregate(r.Context(), pollID, index)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, agg)
}
