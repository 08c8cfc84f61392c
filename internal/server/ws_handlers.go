package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"classpoll/internal/domain/chat"
	"classpoll/internal/domain/poll"
	"classpoll/internal/services"
	classpoll_errors "classpoll/pkg/errors"
)

// DispatcherDeps are the services the websocket command handlers call into.
type DispatcherDeps struct {
	Hub          *Hub
	Participants *services.ParticipantService
	Polls        *services.PollService
	Votes        *services.VoteService
	State        *services.StateService
	Chat         *services.ChatService
	Presence     *services.PresenceTracker
}

// NewDispatcher builds the command router with the standard interceptor
// chain: recovery outermost, then logging, then the per-connection budget.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := NewWebSocketLogger()
	d := newDispatcher(logger,
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
		RateLimitInterceptor(),
	)
	r := &wsRoutes{deps: deps}

	d.register("participant:register", r.handleRegister)
	d.register("participant:leave", r.handleLeave)
	d.register("participant:kick", r.handleKick)
	d.register("poll:create", r.handlePollCreate)
	d.register("poll:start", r.handlePollStart)
	d.register("poll:end", r.handlePollEnd)
	d.register("vote:submit", r.handleVoteSubmit)
	d.register("vote:check", r.handleVoteCheck)
	d.register("state:request", r.handleStateRequest)
	d.register("state:operator", r.handleStateOperator)
	d.register("chat:send", r.handleChatSend)
	d.register("ping", r.handlePing)

	return d
}

type wsRoutes struct {
	deps DispatcherDeps
}

type registerPayload struct {
	Name         string `json:"name"`
	SessionToken string `json:"session_token"`
}

type kickPayload struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Reason        string    `json:"reason"`
}

type createPollPayload struct {
	Question string `json:"question"`
	Options  []struct {
		Text      string `json:"text"`
		IsCorrect bool   `json:"is_correct"`
	} `json:"options"`
	Duration int `json:"duration"`
}

type pollIDPayload struct {
	PollID uuid.UUID `json:"poll_id"`
}

type votePayload struct {
	PollID   uuid.UUID `json:"poll_id"`
	OptionID uuid.UUID `json:"option_id"`
}

type chatPayload struct {
	SenderName string `json:"sender_name"`
	SenderType string `json:"sender_type"`
	Content    string `json:"content"`
}

func decode[T any](msg *ClientMessage) (T, error) {
	var payload T
	if len(msg.Payload) == 0 {
		return payload, fmt.Errorf("%w: missing payload", classpoll_errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: malformed payload", classpoll_errors.ErrInvalidInput)
	}
	return payload, nil
}

func (r *wsRoutes) boundParticipant(c *Client) (uuid.UUID, error) {
	pid, ok := c.participantID()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: connection is not registered", classpoll_errors.ErrInvalidInput)
	}
	return pid, nil
}

// handleRegister binds the connection to a participant and puts them on the
// roster. Re-registering with the same token recovers the same identity.
func (r *wsRoutes) handleRegister(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	payload, err := decode[registerPayload](msg)
	if err != nil {
		return nil, err
	}

	p, err := r.deps.Participants.Register(ctx, payload.Name, payload.SessionToken)
	if err != nil {
		return nil, err
	}

	r.deps.Hub.BindParticipant(c, p.ID)
	r.deps.Presence.AddConnection(p, c.connID)
	return p, nil
}

// handleLeave is the graceful counterpart of a dropped connection.
func (r *wsRoutes) handleLeave(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	r.deps.Presence.RemoveConnection(c.connID)
	r.deps.Hub.UnbindParticipant(c)
	return gin.H{"left": true}, nil
}

func (r *wsRoutes) handleKick(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	payload, err := decode[kickPayload](msg)
	if err != nil {
		return nil, err
	}
	if err := r.deps.Participants.Kick(ctx, payload.ParticipantID, payload.Reason); err != nil {
		return nil, err
	}
	return gin.H{"participant_id": payload.ParticipantID}, nil
}

func (r *wsRoutes) handlePollCreate(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	payload, err := decode[createPollPayload](msg)
	if err != nil {
		return nil, err
	}

	options := make([]poll.OptionInput, 0, len(payload.Options))
	for _, o := range payload.Options {
		options = append(options, poll.OptionInput{Text: o.Text, IsCorrect: o.IsCorrect})
	}
	return r.deps.Polls.CreatePoll(ctx, payload.Question, options, payload.Duration)
}

func (r *wsRoutes) handlePollStart(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	payload, err := decode[pollIDPayload](msg)
	if err != nil {
		return nil, err
	}
	return r.deps.Polls.StartPoll(ctx, payload.PollID)
}

func (r *wsRoutes) handlePollEnd(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	payload, err := decode[pollIDPayload](msg)
	if err != nil {
		return nil, err
	}
	if err := r.deps.Polls.EndPoll(ctx, payload.PollID); err != nil {
		return nil, err
	}
	return gin.H{"poll_id": payload.PollID}, nil
}

// handleVoteSubmit records the bound participant's vote and returns the
// updated tally.
func (r *wsRoutes) handleVoteSubmit(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	pid, err := r.boundParticipant(c)
	if err != nil {
		return nil, err
	}
	payload, err := decode[votePayload](msg)
	if err != nil {
		return nil, err
	}
	return r.deps.Votes.SubmitVote(ctx, payload.PollID, pid, payload.OptionID)
}

func (r *wsRoutes) handleVoteCheck(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	pid, err := r.boundParticipant(c)
	if err != nil {
		return nil, err
	}
	payload, err := decode[pollIDPayload](msg)
	if err != nil {
		return nil, err
	}

	voted, err := r.deps.Votes.HasVoted(ctx, payload.PollID, pid)
	if err != nil {
		return nil, err
	}
	resp := gin.H{"has_voted": voted}
	if voted {
		if vote, err := r.deps.Votes.GetParticipantVote(ctx, payload.PollID, pid); err == nil {
			resp["option_id"] = vote.OptionID
		}
	}
	return resp, nil
}

// handleStateRequest returns the reconciliation snapshot for the bound
// participant, or the anonymous view for a connection that has not
// registered yet.
func (r *wsRoutes) handleStateRequest(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	pid, ok := c.participantID()
	if !ok {
		return r.deps.State.GetAnonymousView(ctx)
	}
	return r.deps.State.GetParticipantView(ctx, pid)
}

func (r *wsRoutes) handleStateOperator(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	return r.deps.State.GetOperatorView(ctx)
}

func (r *wsRoutes) handleChatSend(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	payload, err := decode[chatPayload](msg)
	if err != nil {
		return nil, err
	}
	return r.deps.Chat.Send(ctx, payload.SenderName, chat.SenderType(payload.SenderType), payload.Content)
}

func (r *wsRoutes) handlePing(ctx context.Context, c *Client, msg *ClientMessage) (any, error) {
	return gin.H{"type": "pong"}, nil
}
