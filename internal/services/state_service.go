package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain/participant"
	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	"classpoll/internal/repository"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"
)

// ParticipantView is the reconciliation snapshot a reconnecting participant
// uses to rebuild its local state in one round trip. Results are included
// whenever a poll is active, so a caller that already voted can render them
// immediately instead of a voting form.
type ParticipantView struct {
	Participant   *participant.Participant `json:"participant"`
	ActivePoll    *poll.Poll               `json:"active_poll"`
	Results       *poll.Tally              `json:"results"`
	RemainingTime int                      `json:"remaining_time"`
	HasVoted      bool                     `json:"has_voted"`
	VotedOptionID *uuid.UUID               `json:"voted_option_id"`
	OnlineCount   int                      `json:"online_count"`
	Participants  []events.RosterEntry     `json:"participants"`
}

// OperatorView is the teacher-side snapshot: the live roster, the active
// poll with its running tally, and the recently completed polls.
type OperatorView struct {
	ActivePoll    *poll.Poll           `json:"active_poll"`
	RemainingTime int                  `json:"remaining_time"`
	Results       *poll.Tally          `json:"results"`
	OnlineCount   int                  `json:"online_count"`
	Participants  []events.RosterEntry `json:"participants"`
	History       []poll.Poll          `json:"history"`
}

// StateService assembles full-session snapshots. Roster data comes from the
// in-memory presence tracker only; the store is never asked who is online.
type StateService struct {
	polls        repository.PollRepository
	votes        repository.VoteRepository
	participants repository.ParticipantRepository
	presence     *PresenceTracker
	timer        *PollTimer
	log          *zap.Logger
}

func NewStateService(polls repository.PollRepository, votes repository.VoteRepository, participants repository.ParticipantRepository, presence *PresenceTracker, timer *PollTimer, l *logger.Logger) *StateService {
	return &StateService{
		polls:        polls,
		votes:        votes,
		participants: participants,
		presence:     presence,
		timer:        timer,
		log:          l.Logger.With(zap.String("component", "state_service")),
	}
}

// GetParticipantView builds the snapshot for one participant, resolved by id.
// An id the store no longer knows (e.g. a kicked participant) degrades to the
// anonymous view rather than failing, so the client can still reconcile.
func (s *StateService) GetParticipantView(ctx context.Context, participantID uuid.UUID) (*ParticipantView, error) {
	p, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, classpoll_errors.ErrNotFound) {
			return s.buildParticipantView(ctx, nil)
		}
		return nil, err
	}
	return s.buildParticipantView(ctx, p)
}

// GetParticipantViewByToken resolves the participant by session token, for
// clients reconnecting before they have re-learned their id. Unknown tokens
// degrade to the anonymous view.
func (s *StateService) GetParticipantViewByToken(ctx context.Context, sessionToken string) (*ParticipantView, error) {
	p, err := s.participants.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, classpoll_errors.ErrNotFound) {
			return s.buildParticipantView(ctx, nil)
		}
		return nil, err
	}
	return s.buildParticipantView(ctx, p)
}

// GetAnonymousView is the snapshot for callers with no resolvable identity,
// e.g. a client reconnecting before it has registered.
func (s *StateService) GetAnonymousView(ctx context.Context) (*ParticipantView, error) {
	return s.buildParticipantView(ctx, nil)
}

func (s *StateService) buildParticipantView(ctx context.Context, p *participant.Participant) (*ParticipantView, error) {
	view := &ParticipantView{
		Participant:  p,
		Participants: s.presence.ListOnline(),
	}
	view.OnlineCount = len(view.Participants)

	active, err := s.polls.GetActivePoll(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return view, nil
	}

	view.ActivePoll = active
	view.RemainingTime = s.timer.RemainingTime()

	results, err := s.votes.GetTally(ctx, active.ID)
	if err != nil {
		s.log.Error("failed to load tally for participant view", zap.String("poll_id", active.ID.String()), zap.Error(err))
	} else {
		view.Results = results
	}

	if p == nil {
		return view, nil
	}

	vote, err := s.votes.GetVoteByParticipant(ctx, active.ID, p.ID)
	if err != nil {
		if errors.Is(err, classpoll_errors.ErrNotFound) {
			return view, nil
		}
		return nil, err
	}
	view.HasVoted = true
	view.VotedOptionID = &vote.OptionID
	return view, nil
}

// GetOperatorView builds the teacher snapshot with the live tally and the
// completed-poll history.
func (s *StateService) GetOperatorView(ctx context.Context) (*OperatorView, error) {
	view := &OperatorView{
		Participants: s.presence.ListOnline(),
	}
	view.OnlineCount = len(view.Participants)

	history, err := s.polls.GetPollHistory(ctx)
	if err != nil {
		s.log.Error("failed to load poll history for operator view", zap.Error(err))
	} else {
		view.History = history
	}

	active, err := s.polls.GetActivePoll(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return view, nil
	}

	view.ActivePoll = active
	view.RemainingTime = s.timer.RemainingTime()

	results, err := s.votes.GetTally(ctx, active.ID)
	if err != nil {
		s.log.Error("failed to load tally for operator view", zap.String("poll_id", active.ID.String()), zap.Error(err))
		return view, nil
	}
	view.Results = results
	return view, nil
}
