package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"classpoll/internal/redis"
	"classpoll/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VoteRateLimitMiddleware limits vote submissions per participant, keyed by
// the participant id in the request body, falling back to the client IP when
// no participant can be identified.
func VoteRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowVote(c.Request.Context(), voteLimitKey(c))
		if err != nil {
			// degrade open: an unreachable limiter must not block voting
			zap.L().Warn("vote rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("vote rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// PollRateLimitMiddleware limits poll management actions per client IP.
func PollRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowPollAction(c.Request.Context(), c.ClientIP())
		if err != nil {
			zap.L().Warn("poll rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("poll rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// ConnectionRateLimitMiddleware limits websocket connection attempts per IP.
func ConnectionRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowConnection(c.Request.Context(), c.ClientIP())
		if err != nil {
			zap.L().Warn("connection rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// voteLimitKey identifies the voter: the participant id from the request
// body when present, the client IP otherwise. The body is restored so the
// handler can bind it again.
func voteLimitKey(c *gin.Context) string {
	if c.Request.Body == nil {
		return c.ClientIP()
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return c.ClientIP()
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := json.Unmarshal(body, &req); err == nil && req.ParticipantID != "" {
		return req.ParticipantID
	}
	return c.ClientIP()
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
