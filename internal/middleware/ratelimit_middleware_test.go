package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestVoteLimitKey_UsesParticipantIDFromBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/votes",
		bytes.NewBufferString(`{"participant_id":"7f9c0a66-8e1c-4c9a-9b55-0f6f3a1f2b11","poll_id":"x"}`))

	assert.Equal(t, "7f9c0a66-8e1c-4c9a-9b55-0f6f3a1f2b11", voteLimitKey(c))

	// the body must be readable again for the handler's own bind
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	assert.NoError(t, c.ShouldBindJSON(&req))
	assert.Equal(t, "7f9c0a66-8e1c-4c9a-9b55-0f6f3a1f2b11", req.ParticipantID)
}

func TestVoteLimitKey_FallsBackToClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/votes", bytes.NewBufferString(`{}`))
	assert.Equal(t, c.ClientIP(), voteLimitKey(c))

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/votes", bytes.NewBufferString(`not json`))
	assert.Equal(t, c.ClientIP(), voteLimitKey(c))
}
