package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	"classpoll/internal/repository"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"
)

// VoteService admits votes against the active poll and ends the poll early
// once every online participant has voted.
type VoteService struct {
	polls    repository.PollRepository
	votes    repository.VoteRepository
	presence *PresenceTracker
	timer    *PollTimer
	bc       Broadcaster
	log      *zap.Logger
}

func NewVoteService(polls repository.PollRepository, votes repository.VoteRepository, presence *PresenceTracker, timer *PollTimer, bc Broadcaster, l *logger.Logger) *VoteService {
	return &VoteService{
		polls:    polls,
		votes:    votes,
		presence: presence,
		timer:    timer,
		bc:       bc,
		log:      l.Logger.With(zap.String("component", "vote_service")),
	}
}

// SubmitVote records one vote. Checks run in a fixed order: poll existence,
// poll active, option belongs to poll, then duplicate. The duplicate check is
// advisory; the unique index on (poll, participant) is what actually closes
// the race between two concurrent submissions.
func (s *VoteService) SubmitVote(ctx context.Context, pollID, participantID, optionID uuid.UUID) (*poll.Tally, error) {
	p, err := s.polls.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.Status != poll.StatusActive {
		return nil, classpoll_errors.ErrPollNotActive
	}

	valid := false
	for _, opt := range p.Options {
		if opt.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return nil, classpoll_errors.ErrInvalidOption
	}

	exists, err := s.votes.VoteExists(ctx, pollID, participantID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, classpoll_errors.ErrDuplicateVote
	}

	if err := s.votes.InsertVote(ctx, &poll.Vote{
		PollID:        pollID,
		ParticipantID: participantID,
		OptionID:      optionID,
	}); err != nil {
		return nil, err
	}

	results, err := s.votes.GetTally(ctx, pollID)
	if err != nil {
		return nil, err
	}

	s.log.Info("vote recorded",
		zap.String("poll_id", pollID.String()),
		zap.String("participant_id", participantID.String()))
	s.bc.BroadcastAll(events.EventVoteUpdate, events.VoteUpdatePayload{PollID: pollID, Results: results})

	s.maybeEndEarly(ctx, pollID)
	return results, nil
}

// maybeEndEarly ends the poll once distinct voters cover the online roster.
// An empty roster never triggers it. A final zero tick lands before the end
// notification so clients see the countdown close.
func (s *VoteService) maybeEndEarly(ctx context.Context, pollID uuid.UUID) {
	online := s.presence.OnlineCount()
	if online == 0 {
		return
	}
	voters, err := s.votes.CountVoters(ctx, pollID)
	if err != nil {
		s.log.Error("failed to count voters", zap.String("poll_id", pollID.String()), zap.Error(err))
		return
	}
	if voters < online {
		return
	}

	s.log.Info("all online participants voted, ending poll",
		zap.String("poll_id", pollID.String()),
		zap.Int("voters", voters),
		zap.Int("online", online))
	s.bc.BroadcastAll(events.EventPollTick, events.TickPayload{PollID: pollID, RemainingTime: 0})
	s.timer.EndNow(pollID)
}

func (s *VoteService) HasVoted(ctx context.Context, pollID, participantID uuid.UUID) (bool, error) {
	return s.votes.VoteExists(ctx, pollID, participantID)
}

// GetParticipantVote returns the participant's vote on a poll, or ErrNotFound.
func (s *VoteService) GetParticipantVote(ctx context.Context, pollID, participantID uuid.UUID) (*poll.Vote, error) {
	return s.votes.GetVoteByParticipant(ctx, pollID, participantID)
}
