package handler

import (
	"net/http"

	"classpoll/internal/services"
	"classpoll/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VoteHandler handles vote submission and lookup endpoints.
type VoteHandler struct {
	service *services.VoteService
}

func NewVoteHandler(service *services.VoteService) *VoteHandler {
	return &VoteHandler{service: service}
}

// Submit records one vote and returns the updated tally.
func (h *VoteHandler) Submit(c *gin.Context) {
	var req httpdto.SubmitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	results, err := h.service.SubmitVote(c.Request.Context(), req.PollID, req.ParticipantID, req.OptionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(results))
}

// Check reports whether a participant has voted on a poll.
func (h *VoteHandler) Check(c *gin.Context) {
	pollID, err := uuid.Parse(c.Query("poll_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return
	}
	participantID, err := uuid.Parse(c.Query("participant_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant id", "INVALID_REQUEST"))
		return
	}

	voted, err := h.service.HasVoted(c.Request.Context(), pollID, participantID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"has_voted": voted}
	if voted {
		if vote, err := h.service.GetParticipantVote(c.Request.Context(), pollID, participantID); err == nil {
			resp["option_id"] = vote.OptionID
		}
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
