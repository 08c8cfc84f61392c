package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	classpoll_errors "classpoll/pkg/errors"
)

func TestCreatePoll_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	twoOptions := []poll.OptionInput{{Text: "Yes"}, {Text: "No"}}

	tests := []struct {
		name     string
		question string
		options  []poll.OptionInput
		duration int
		wantErr  error
	}{
		{"empty question", "   ", twoOptions, 60, classpoll_errors.ErrInvalidInput},
		{"single option", "Q?", []poll.OptionInput{{Text: "Only"}}, 60, classpoll_errors.ErrInvalidInput},
		{"blank option text", "Q?", []poll.OptionInput{{Text: "Yes"}, {Text: "  "}}, 60, classpoll_errors.ErrInvalidInput},
		{"below minimum duration", "Q?", twoOptions, 5, classpoll_errors.ErrInvalidInput},
		{"above maximum duration", "Q?", twoOptions, 301, classpoll_errors.ErrInvalidInput},
		{"minimum duration ok", "Q?", twoOptions, 10, nil},
		{"maximum duration ok", "Q?", twoOptions, 300, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.pollSvc.CreatePoll(ctx, tt.question, tt.options, tt.duration)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreatePoll_DefaultDuration(t *testing.T) {
	env := newTestEnv()

	p, err := env.pollSvc.CreatePoll(context.Background(), "Q?", []poll.OptionInput{{Text: "A"}, {Text: "B"}}, 0)
	assert.NoError(t, err)
	assert.Equal(t, 60, p.Duration, "zero duration takes the configured default")
	assert.Equal(t, poll.StatusPending, p.Status)
	assert.Equal(t, 1, env.bc.countOf(events.EventPollCreated))
}

func TestCreatePoll_AssignsDisplayOrder(t *testing.T) {
	env := newTestEnv()

	p, err := env.pollSvc.CreatePoll(context.Background(), "Q?", []poll.OptionInput{
		{Text: "First"}, {Text: "Second"}, {Text: "Third", IsCorrect: true},
	}, 60)
	assert.NoError(t, err)
	assert.Len(t, p.Options, 3)
	for i, opt := range p.Options {
		assert.Equal(t, i, opt.DisplayOrder)
	}
	assert.True(t, p.Options[2].IsCorrect)
}

func TestStartPoll_ActivatesAndBroadcasts(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Q?", 60)

	started, err := env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)
	defer env.timer.Stop()

	assert.Equal(t, poll.StatusActive, started.Status)
	assert.NotNil(t, started.StartedAt)

	payload, ok := env.bc.lastOf(events.EventPollStarted)
	assert.True(t, ok, "poll:started must be broadcast")
	startedPayload := payload.(events.PollStartedPayload)
	assert.Equal(t, p.ID, startedPayload.Poll.ID)
	assert.Greater(t, startedPayload.RemainingTime, 0)

	id, running := env.timer.ActivePollID()
	assert.True(t, running)
	assert.Equal(t, p.ID, id)
}

func TestStartPoll_RejectsSecondActivePoll(t *testing.T) {
	env := newTestEnv()
	first := env.createPoll("First?", 60)
	second := env.createPoll("Second?", 60)

	_, err := env.pollSvc.StartPoll(context.Background(), first.ID)
	assert.NoError(t, err)
	defer env.timer.Stop()

	_, err = env.pollSvc.StartPoll(context.Background(), second.ID)
	assert.ErrorIs(t, err, classpoll_errors.ErrActivePollExists, "only one poll may run at a time")
}

func TestStartPoll_ConcurrentStartsOnlyOneWins(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	candidates := make([]*poll.Poll, 8)
	for i := range candidates {
		candidates[i] = env.createPoll("Race?", 60)
	}

	var wg sync.WaitGroup
	var successes int32
	for _, p := range candidates {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := env.pollSvc.StartPoll(ctx, id); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}(p.ID)
	}
	wg.Wait()
	defer env.timer.Stop()

	assert.Equal(t, int32(1), successes, "exactly one concurrent start may win")
	assert.Equal(t, 1, env.bc.countOf(events.EventPollStarted))

	active, err := env.polls.GetActivePoll(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, active)
}

func TestStartPoll_RejectsRestart(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Q?", 60)

	_, err := env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)

	_, err = env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.ErrorIs(t, err, classpoll_errors.ErrPollAlreadyStarted)

	assert.NoError(t, env.pollSvc.EndPoll(context.Background(), p.ID))
	_, err = env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.ErrorIs(t, err, classpoll_errors.ErrPollAlreadyStarted, "a completed poll cannot restart")
}

func TestStartPoll_UnknownPoll(t *testing.T) {
	env := newTestEnv()

	_, err := env.pollSvc.StartPoll(context.Background(), uuid.New())
	assert.ErrorIs(t, err, classpoll_errors.ErrNotFound)
}

func TestEndPoll_CompletesActivePoll(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Q?", 60)
	_, err := env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)

	assert.NoError(t, env.pollSvc.EndPoll(context.Background(), p.ID))

	stored, err := env.polls.GetPollByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, poll.StatusCompleted, stored.Status)
	assert.Equal(t, 1, env.bc.countOf(events.EventPollEnded))
}

func TestEndPoll_RejectsNonActivePoll(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Q?", 60)

	err := env.pollSvc.EndPoll(context.Background(), p.ID)
	assert.ErrorIs(t, err, classpoll_errors.ErrPollNotActive)

	_, err = env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.NoError(t, env.pollSvc.EndPoll(context.Background(), p.ID))

	err = env.pollSvc.EndPoll(context.Background(), p.ID)
	assert.ErrorIs(t, err, classpoll_errors.ErrPollNotActive, "ending twice is rejected")
}

func TestGetActivePoll_ReturnsRemaining(t *testing.T) {
	env := newTestEnv()

	active, remaining, err := env.pollSvc.GetActivePoll(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, active)
	assert.Equal(t, 0, remaining)

	p := env.createPoll("Q?", 60)
	_, err = env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)
	defer env.timer.Stop()

	active, remaining, err = env.pollSvc.GetActivePoll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)
	assert.InDelta(t, 60, remaining, 2)
}

func TestGetPollHistory_OnlyCompleted(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	done := env.createPoll("Done?", 60)
	_, err := env.pollSvc.StartPoll(ctx, done.ID)
	assert.NoError(t, err)
	assert.NoError(t, env.pollSvc.EndPoll(ctx, done.ID))

	env.createPoll("Still pending?", 60)

	history, err := env.pollSvc.GetPollHistory(ctx)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, done.ID, history[0].ID)
}
