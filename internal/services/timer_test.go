package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
)

func TestTimer_IdleReportsZeroRemaining(t *testing.T) {
	env := newTestEnv()

	assert.Equal(t, 0, env.timer.RemainingTime())
	_, running := env.timer.ActivePollID()
	assert.False(t, running)
}

func TestTimer_StartTracksRemainingFromStartedAt(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Favorite language?", 60)

	startedAt := time.Now().Add(-20 * time.Second)
	env.polls.setActive(p, startedAt)
	env.timer.Start(p)
	defer env.timer.Stop()

	remaining := env.timer.RemainingTime()
	assert.InDelta(t, 40, remaining, 2, "remaining time derives from persisted start, not timer start")

	id, running := env.timer.ActivePollID()
	assert.True(t, running)
	assert.Equal(t, p.ID, id)
}

func TestTimer_NaturalExpiryEndsPollOnce(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Quick one", 10)

	// Nearly expired already, so the test does not wait 10 seconds.
	env.polls.setActive(p, time.Now().Add(-9900*time.Millisecond))
	env.timer.Start(p)

	assert.Eventually(t, func() bool {
		stored, err := env.polls.GetPollByID(context.Background(), p.ID)
		return err == nil && stored.Status == poll.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond, "poll should complete when the countdown expires")

	assert.Equal(t, 1, env.bc.countOf(events.EventPollEnded), "exactly one ended event")
	assert.False(t, env.timer.EndNow(p.ID), "a completed countdown cannot be ended again")
}

func TestTimer_EndNowIsSingleFlight(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Early end", 60)
	_, err := env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)

	assert.True(t, env.timer.EndNow(p.ID))
	assert.False(t, env.timer.EndNow(p.ID), "second EndNow must be a no-op")

	stored, err := env.polls.GetPollByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, poll.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.EndedAt)
	assert.Equal(t, 1, env.bc.countOf(events.EventPollEnded))
}

func TestTimer_EndNowRacingNaturalExpiry(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Down to the wire", 10)

	// The expiry is due within milliseconds while several early
	// terminations fire at the same time.
	env.polls.setActive(p, time.Now().Add(-9990*time.Millisecond))
	env.timer.Start(p)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.timer.EndNow(p.ID)
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		stored, err := env.polls.GetPollByID(context.Background(), p.ID)
		return err == nil && stored.Status == poll.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	// give a late finisher time to fire before counting
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, env.bc.countOf(events.EventPollEnded), "racing finishers must end the poll exactly once")
}

func TestTimer_EndNowIgnoresUntrackedPoll(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Never started", 60)

	assert.False(t, env.timer.EndNow(p.ID))

	stored, err := env.polls.GetPollByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, poll.StatusPending, stored.Status)
}

func TestTimer_RestoreResumesRunningPoll(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Survived a restart", 60)
	env.polls.setActive(p, time.Now().Add(-20*time.Second))

	err := env.timer.Restore(context.Background())
	assert.NoError(t, err)
	defer env.timer.Stop()

	id, running := env.timer.ActivePollID()
	assert.True(t, running, "restore should resume the countdown")
	assert.Equal(t, p.ID, id)
	assert.InDelta(t, 40, env.timer.RemainingTime(), 2, "countdown resumes from the wall clock position")
	assert.Equal(t, 0, env.bc.countOf(events.EventPollEnded))
}

func TestTimer_RestoreCompletesExpiredPoll(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Expired while down", 60)
	env.polls.setActive(p, time.Now().Add(-2*time.Minute))

	err := env.timer.Restore(context.Background())
	assert.NoError(t, err)

	stored, err := env.polls.GetPollByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, poll.StatusCompleted, stored.Status)
	assert.Equal(t, 1, env.bc.countOf(events.EventPollEnded), "terminal notification still goes out")
	assert.Equal(t, 0, env.bc.countOf(events.EventPollTick), "no tick sequence for an already-expired poll")

	_, running := env.timer.ActivePollID()
	assert.False(t, running)
}

func TestTimer_RestoreWithNoActivePoll(t *testing.T) {
	env := newTestEnv()

	assert.NoError(t, env.timer.Restore(context.Background()))
	_, running := env.timer.ActivePollID()
	assert.False(t, running)
}

func TestTimer_StopCancelsWithoutCompleting(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Cancelled", 60)
	_, err := env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)

	env.timer.Stop()

	stored, err := env.polls.GetPollByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, poll.StatusActive, stored.Status, "stop must not complete the poll")
	assert.Equal(t, 0, env.bc.countOf(events.EventPollEnded))
	assert.Equal(t, 0, env.timer.RemainingTime())
}

func TestTimer_OnEndedHookReceivesResults(t *testing.T) {
	env := newTestEnv()
	p := env.createPoll("Hooked", 60)

	var hooked *poll.Tally
	env.timer.SetOnEnded(func(pollID uuid.UUID, results *poll.Tally) {
		hooked = results
	})

	_, err := env.pollSvc.StartPoll(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.True(t, env.timer.EndNow(p.ID))

	assert.NotNil(t, hooked, "hook should run after the end action")
	assert.Equal(t, p.ID, hooked.PollID)
}
