package handler

import (
	"net/http"

	"classpoll/internal/services"
	"classpoll/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ParticipantHandler handles participant registration and removal endpoints.
type ParticipantHandler struct {
	service  *services.ParticipantService
	presence *services.PresenceTracker
}

func NewParticipantHandler(service *services.ParticipantService, presence *services.PresenceTracker) *ParticipantHandler {
	return &ParticipantHandler{service: service, presence: presence}
}

// Register creates or recovers the participant for a session token.
func (h *ParticipantHandler) Register(c *gin.Context) {
	var req httpdto.RegisterParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	p, err := h.service.Register(c.Request.Context(), req.Name, req.SessionToken)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(p))
}

// Get returns one participant by id.
func (h *ParticipantHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant id", "INVALID_REQUEST"))
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(p))
}

// ListOnline returns the current roster.
func (h *ParticipantHandler) ListOnline(c *gin.Context) {
	roster := h.presence.ListOnline()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"count":        len(roster),
		"participants": roster,
	}))
}

// Kick removes a participant from the session.
func (h *ParticipantHandler) Kick(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.KickParticipantRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Kick(c.Request.Context(), id, req.Reason); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"participant_id": id}))
}
