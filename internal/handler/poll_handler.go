// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"net/http"

	"classpoll/internal/domain/poll"
	"classpoll/internal/services"
	"classpoll/internal/transport/httpdto"
	classpoll_errors "classpoll/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PollHandler handles poll lifecycle HTTP endpoints.
type PollHandler struct {
	service *services.PollService
}

func NewPollHandler(service *services.PollService) *PollHandler {
	return &PollHandler{service: service}
}

// Create handles poll creation.
func (h *PollHandler) Create(c *gin.Context) {
	var req httpdto.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	options := make([]poll.OptionInput, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, poll.OptionInput{Text: o.Text, IsCorrect: o.IsCorrect})
	}

	p, err := h.service.CreatePoll(c.Request.Context(), req.Question, options, req.Duration)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(p))
}

// Start activates a pending poll.
func (h *PollHandler) Start(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return
	}

	p, err := h.service.StartPoll(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(p))
}

// End terminates an active poll early.
func (h *PollHandler) End(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.EndPoll(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"poll_id": id, "status": poll.StatusCompleted}))
}

// Active returns the currently running poll with its remaining time.
func (h *PollHandler) Active(c *gin.Context) {
	p, remaining, err := h.service.GetActivePoll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"active_poll": nil}))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"active_poll":    p,
		"remaining_time": remaining,
	}))
}

// History returns completed polls, newest first.
func (h *PollHandler) History(c *gin.Context) {
	polls, err := h.service.GetPollHistory(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(polls))
}

// Get returns one poll by id.
func (h *PollHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return
	}

	p, err := h.service.GetPollByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(p))
}

// Results returns the vote tally for a poll.
func (h *PollHandler) Results(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return
	}

	tally, err := h.service.GetResults(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(tally))
}

func writeError(c *gin.Context, err error) {
	c.JSON(classpoll_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), classpoll_errors.Code(err)))
}
