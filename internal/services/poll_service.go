package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/config"
	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	"classpoll/internal/repository"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"
)

// PollService owns the poll lifecycle: creation, the pending -> active ->
// completed transitions, and result reads.
type PollService struct {
	polls repository.PollRepository
	votes repository.VoteRepository
	timer *PollTimer
	bc    Broadcaster
	cfg   *config.Config
	log   *zap.Logger

	// startMu serializes StartPoll so the no-other-active check and the
	// activation are atomic within this process.
	startMu sync.Mutex
}

func NewPollService(polls repository.PollRepository, votes repository.VoteRepository, timer *PollTimer, bc Broadcaster, cfg *config.Config, l *logger.Logger) *PollService {
	return &PollService{
		polls: polls,
		votes: votes,
		timer: timer,
		bc:    bc,
		cfg:   cfg,
		log:   l.Logger.With(zap.String("component", "poll_service")),
	}
}

// CreatePoll validates and persists a new pending poll. Duration 0 takes the
// configured default; out-of-range durations are rejected rather than clamped.
func (s *PollService) CreatePoll(ctx context.Context, question string, options []poll.OptionInput, duration int) (*poll.Poll, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, classpoll_errors.ErrInvalidInput
	}
	if len(options) < 2 {
		return nil, classpoll_errors.ErrInvalidInput
	}
	for i := range options {
		options[i].Text = strings.TrimSpace(options[i].Text)
		if options[i].Text == "" {
			return nil, classpoll_errors.ErrInvalidInput
		}
	}
	if duration == 0 {
		duration = s.cfg.PollDefaultDuration
	}
	if duration < s.cfg.PollMinDuration || duration > s.cfg.PollMaxDuration {
		return nil, classpoll_errors.ErrInvalidInput
	}

	p, err := s.polls.CreatePollWithOptions(ctx, question, options, duration)
	if err != nil {
		return nil, err
	}

	s.log.Info("poll created", zap.String("poll_id", p.ID.String()), zap.Int("options", len(options)))
	s.bc.BroadcastAll(events.EventPollCreated, p)
	return p, nil
}

// StartPoll activates a pending poll and begins its countdown. Fails when the
// poll has already been started or another poll is currently active.
func (s *PollService) StartPoll(ctx context.Context, id uuid.UUID) (*poll.Poll, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	p, err := s.polls.GetPollByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != poll.StatusPending {
		return nil, classpoll_errors.ErrPollAlreadyStarted
	}

	active, err := s.polls.HasActivePoll(ctx)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, classpoll_errors.ErrActivePollExists
	}

	started, err := s.polls.SetPollStatus(ctx, id, poll.StatusActive)
	if err != nil {
		return nil, err
	}

	s.timer.Start(started)
	s.log.Info("poll started", zap.String("poll_id", id.String()), zap.Int("duration", started.Duration))
	s.bc.BroadcastAll(events.EventPollStarted, events.PollStartedPayload{
		Poll:          started,
		RemainingTime: s.timer.RemainingTime(),
	})
	return started, nil
}

// EndPoll terminates an active poll early. The termination runs through the
// timer's single-flight path, so racing it against natural expiry cannot end
// the poll twice. A poll the timer no longer tracks (e.g. the countdown was
// lost and never restored) is completed directly.
func (s *PollService) EndPoll(ctx context.Context, id uuid.UUID) error {
	p, err := s.polls.GetPollByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != poll.StatusActive {
		return classpoll_errors.ErrPollNotActive
	}

	if s.timer.EndNow(id) {
		return nil
	}

	s.log.Warn("ending poll without a running timer", zap.String("poll_id", id.String()))
	if _, err := s.polls.SetPollStatus(ctx, id, poll.StatusCompleted); err != nil {
		return err
	}
	results, err := s.votes.GetTally(ctx, id)
	if err != nil {
		s.log.Error("failed to load final tally", zap.String("poll_id", id.String()), zap.Error(err))
	}
	s.bc.BroadcastAll(events.EventPollEnded, events.PollEndedPayload{PollID: id, Results: results})
	return nil
}

// GetActivePoll returns the active poll and its remaining seconds, or
// (nil, 0, nil) when no poll is running.
func (s *PollService) GetActivePoll(ctx context.Context) (*poll.Poll, int, error) {
	p, err := s.polls.GetActivePoll(ctx)
	if err != nil || p == nil {
		return nil, 0, err
	}
	return p, s.timer.RemainingTime(), nil
}

func (s *PollService) GetPollByID(ctx context.Context, id uuid.UUID) (*poll.Poll, error) {
	return s.polls.GetPollByID(ctx, id)
}

// GetPollHistory returns completed polls, newest first.
func (s *PollService) GetPollHistory(ctx context.Context) ([]poll.Poll, error) {
	return s.polls.GetPollHistory(ctx)
}

// GetResults returns the tally for any poll that exists, regardless of status.
func (s *PollService) GetResults(ctx context.Context, id uuid.UUID) (*poll.Tally, error) {
	if _, err := s.polls.GetPollByID(ctx, id); err != nil {
		return nil, err
	}
	return s.votes.GetTally(ctx, id)
}
