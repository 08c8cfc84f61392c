package handler

import (
	"net/http"

	"classpoll/internal/services"
	"classpoll/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StateHandler serves full-session reconciliation snapshots.
type StateHandler struct {
	service *services.StateService
}

func NewStateHandler(service *services.StateService) *StateHandler {
	return &StateHandler{service: service}
}

// Me returns the snapshot for one participant, resolved by id if given, else
// by session token, else anonymously — an unidentified caller still gets the
// poll and remaining-time view with a nil participant.
func (h *StateHandler) Me(c *gin.Context) {
	if idStr := c.Query("participant_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant id", "INVALID_REQUEST"))
			return
		}
		view, err := h.service.GetParticipantView(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
		return
	}

	if token := c.Query("session_token"); token != "" {
		view, err := h.service.GetParticipantViewByToken(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
		return
	}

	view, err := h.service.GetAnonymousView(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

// Operator returns the teacher-side snapshot with the live tally.
func (h *StateHandler) Operator(c *gin.Context) {
	view, err := h.service.GetOperatorView(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}
