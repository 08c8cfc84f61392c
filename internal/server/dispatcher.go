package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	classpoll_errors "classpoll/pkg/errors"
)

// HandlerFunc handles one inbound command and returns the reply data.
type HandlerFunc func(ctx context.Context, c *Client, msg *ClientMessage) (any, error)

// Interceptor wraps a HandlerFunc with cross-cutting behavior. Interceptors
// compose outermost-first, so the first one in the chain sees the command
// before the rest.
type Interceptor func(next HandlerFunc) HandlerFunc

// Dispatcher routes inbound command frames to their handlers, with every
// handler wrapped by the interceptor chain.
type Dispatcher struct {
	handlers     map[string]HandlerFunc
	interceptors []Interceptor
	logger       *WebSocketLogger
}

func newDispatcher(logger *WebSocketLogger, interceptors ...Interceptor) *Dispatcher {
	return &Dispatcher{
		handlers:     make(map[string]HandlerFunc),
		interceptors: interceptors,
		logger:       logger,
	}
}

// register wires a handler wrapped by the interceptor chain.
func (d *Dispatcher) register(msgType string, h HandlerFunc) {
	for i := len(d.interceptors) - 1; i >= 0; i-- {
		h = d.interceptors[i](h)
	}
	d.handlers[msgType] = h
}

// Dispatch runs the handler for one frame and queues the reply on the
// originating connection.
func (d *Dispatcher) Dispatch(c *Client, msg *ClientMessage) {
	h, ok := d.handlers[msg.Type]
	if !ok {
		d.logger.Warn("unknown message type", c.connID, zap.String("msg_type", msg.Type))
		c.reply(commandReply{RequestID: msg.RequestID, Success: false, Error: "unknown message type", Code: "UNKNOWN_TYPE"})
		return
	}

	data, err := h(context.Background(), c, msg)
	if err != nil {
		reply := commandReply{RequestID: msg.RequestID, Success: false}
		if classpoll_errors.IsBusiness(err) {
			reply.Error = err.Error()
		} else {
			reply.Error = "internal error"
		}
		reply.Code = classpoll_errors.Code(err)
		c.reply(reply)
		return
	}

	c.reply(commandReply{RequestID: msg.RequestID, Success: true, Data: data})
}

// RecoveryInterceptor turns handler panics into internal errors instead of
// taking the read pump down.
func RecoveryInterceptor(logger *WebSocketLogger) Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, c *Client, msg *ClientMessage) (data any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic", c.connID, nil,
						zap.String("msg_type", msg.Type),
						zap.Any("panic", r))
					data = nil
					err = classpoll_errors.ErrServiceUnavailable
				}
			}()
			return next(ctx, c, msg)
		}
	}
}

// LoggingInterceptor records every handled command with its latency.
func LoggingInterceptor(logger *WebSocketLogger) Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
			start := time.Now()
			data, err := next(ctx, c, msg)
			fields := []zap.Field{
				zap.String("msg_type", msg.Type),
				zap.Duration("latency", time.Since(start)),
			}
			if err != nil {
				logger.Warn("command failed", c.connID, append(fields, zap.Error(err))...)
			} else {
				logger.Info("command handled", c.connID, fields...)
			}
			return data, err
		}
	}
}

const maxCommandsPerMinute = 30

// commands that must go through even when a connection is over its budget;
// blocking a leave would keep a spamming client on the roster.
var rateLimitExempt = map[string]struct{}{
	"participant:leave": {},
}

// RateLimitInterceptor enforces a fixed-window per-connection command budget.
func RateLimitInterceptor() Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
			if _, exempt := rateLimitExempt[msg.Type]; !exempt && !c.limiter.allow() {
				return nil, classpoll_errors.ErrRateLimited
			}
			return next(ctx, c, msg)
		}
	}
}

// connRateLimiter is a fixed-window counter local to one connection.
type connRateLimiter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

func newConnRateLimiter() *connRateLimiter {
	return &connRateLimiter{windowStart: time.Now()}
}

func (l *connRateLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.windowStart) >= time.Minute {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= maxCommandsPerMinute {
		return false
	}
	l.count++
	return true
}
