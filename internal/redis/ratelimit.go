package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{participant_id}:votes - per-minute vote submissions
// - ratelimit:{ip}:polls - per-minute poll management actions
// - ratelimit:{ip}:connections - per-minute websocket connection attempts

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	VoteLimit        int           // Max vote submissions per window
	VoteWindow       time.Duration // Vote rate limit window
	PollLimit        int           // Max poll management actions per window
	PollWindow       time.Duration // Poll rate limit window
	ConnectionLimit  int           // Max connection attempts per window
	ConnectionWindow time.Duration // Connection rate limit window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		VoteLimit:        20, // 20 vote submissions per minute
		VoteWindow:       60 * time.Second,
		PollLimit:        30, // 30 poll actions per minute
		PollWindow:       60 * time.Second,
		ConnectionLimit:  15, // 15 connection attempts per minute
		ConnectionWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowVote checks if a participant can submit another vote request
func (r *RateLimiter) AllowVote(ctx context.Context, participantID string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:votes", participantID)
	return r.checkLimit(ctx, key, r.config.VoteLimit, r.config.VoteWindow)
}

// AllowPollAction checks if a client can perform another poll management action
func (r *RateLimiter) AllowPollAction(ctx context.Context, ip string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:polls", ip)
	return r.checkLimit(ctx, key, r.config.PollLimit, r.config.PollWindow)
}

// AllowConnection checks if an IP can open another websocket connection
func (r *RateLimiter) AllowConnection(ctx context.Context, ip string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:connections", ip)
	return r.checkLimit(ctx, key, r.config.ConnectionLimit, r.config.ConnectionWindow)
}

// checkLimit performs the actual rate limit check using a fixed window counter
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	// Use Lua script for atomic increment and check
	script := goredis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end

		if current < limit then
			redis.call('INCR', key)
			if ttl == window then
				redis.call('EXPIRE', key, window)
			end
			return {1, limit - current - 1, ttl}
		else
			return {0, 0, ttl}
		end
	`)

	result, err := script.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	allowed := resultSlice[0].(int64) == 1
	remaining := int(resultSlice[1].(int64))
	resetIn := time.Duration(resultSlice[2].(int64)) * time.Second

	return &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     limit,
	}, nil
}

// Reset resets the rate limit for a specific key (admin operation)
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// ResetParticipant resets all rate limits for a participant
func (r *RateLimiter) ResetParticipant(ctx context.Context, participantID string) error {
	key := fmt.Sprintf("ratelimit:%s:votes", participantID)
	return r.client.Del(ctx, key).Err()
}

// GetStatus returns the current rate limit status without consuming
func (r *RateLimiter) GetStatus(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	_, _ = pipe.Exec(ctx)

	current := 0
	if val, err := getCmd.Int(); err == nil {
		current = val
	}

	ttl := window
	if ttlVal := ttlCmd.Val(); ttlVal > 0 {
		ttl = ttlVal
	}

	return &RateLimitResult{
		Allowed:   current < limit,
		Remaining: limit - current,
		ResetIn:   ttl,
		Limit:     limit,
	}, nil
}
