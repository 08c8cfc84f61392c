package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	"classpoll/internal/repository"
	"classpoll/pkg/logger"
)

// timerState exists only while a poll countdown is running in this process.
// It is reconstructed from the store after a restart via Restore.
type timerState struct {
	gen       uint64
	pollID    uuid.UUID
	startedAt time.Time
	duration  time.Duration
	expiry    *time.Timer
	ticker    *time.Ticker
	done      chan struct{}
}

// PollTimer runs the single authoritative countdown for the active poll.
// The end-of-poll action fires at most once per started countdown: both
// natural expiry and early termination funnel through finish, which is
// guarded by the state generation.
type PollTimer struct {
	mu    sync.Mutex
	polls repository.PollRepository
	votes repository.VoteRepository
	bc    Broadcaster
	log   *zap.Logger

	gen     uint64
	state   *timerState
	tick    time.Duration
	onEnded func(pollID uuid.UUID, results *poll.Tally)
}

func NewPollTimer(polls repository.PollRepository, votes repository.VoteRepository, bc Broadcaster, l *logger.Logger) *PollTimer {
	return &PollTimer{
		polls: polls,
		votes: votes,
		bc:    bc,
		log:   l.Logger.With(zap.String("component", "poll_timer")),
		tick:  time.Second,
	}
}

// SetOnEnded registers a hook invoked after the end-of-poll action has
// completed (store transition + final broadcast).
func (t *PollTimer) SetOnEnded(fn func(pollID uuid.UUID, results *poll.Tally)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

// Start begins (or resumes) the countdown for p. Any prior countdown is
// cancelled first. The remaining time is derived from the poll's persisted
// started_at, so resuming after a restart continues from the wall-clock
// position rather than resetting. A poll whose time has already elapsed is
// ended immediately.
func (t *PollTimer) Start(p *poll.Poll) {
	t.mu.Lock()
	t.clearLocked()

	startedAt := time.Now()
	if p.StartedAt != nil {
		startedAt = *p.StartedAt
	}
	t.gen++
	st := &timerState{
		gen:       t.gen,
		pollID:    p.ID,
		startedAt: startedAt,
		duration:  time.Duration(p.Duration) * time.Second,
	}
	t.state = st

	remaining := st.duration - time.Since(startedAt)
	if remaining <= 0 {
		t.mu.Unlock()
		t.finish(st.gen)
		return
	}

	gen := st.gen
	st.expiry = time.AfterFunc(remaining, func() { t.finish(gen) })
	st.ticker = time.NewTicker(t.tick)
	st.done = make(chan struct{})
	go t.tickLoop(st)
	t.mu.Unlock()

	t.log.Info("timer started",
		zap.String("poll_id", p.ID.String()),
		zap.Duration("remaining", remaining))
}

func (t *PollTimer) tickLoop(st *timerState) {
	for {
		select {
		case <-st.done:
			return
		case <-st.ticker.C:
			t.bc.BroadcastAll(events.EventPollTick, events.TickPayload{
				PollID:        st.pollID,
				RemainingTime: remainingSeconds(st.startedAt, st.duration),
			})
		}
	}
}

// Stop cancels the countdown without completing the poll. Ending the poll
// as part of an explicit early stop is the caller's responsibility.
func (t *PollTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
}

// EndNow runs the end-of-poll action for pollID immediately, through the
// same single-flight path as natural expiry. Returns false if the timer is
// not tracking that poll (already ended, or never started here).
func (t *PollTimer) EndNow(pollID uuid.UUID) bool {
	t.mu.Lock()
	if t.state == nil || t.state.pollID != pollID {
		t.mu.Unlock()
		return false
	}
	gen := t.state.gen
	t.mu.Unlock()

	t.finish(gen)
	return true
}

// Restore recovers the countdown from persisted state after a process
// restart. A still-running poll resumes; a poll that expired while the
// process was down is completed immediately, with only the terminal
// notification and no tick sequence.
func (t *PollTimer) Restore(ctx context.Context) error {
	p, err := t.polls.GetActivePoll(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	startedAt := time.Now()
	if p.StartedAt != nil {
		startedAt = *p.StartedAt
	}
	if time.Since(startedAt) < time.Duration(p.Duration)*time.Second {
		t.Start(p)
		t.log.Info("timer restored", zap.String("poll_id", p.ID.String()))
		return nil
	}

	// Expired while down: complete without scheduling anything.
	t.mu.Lock()
	t.clearLocked()
	t.gen++
	t.state = &timerState{gen: t.gen, pollID: p.ID, startedAt: startedAt, duration: time.Duration(p.Duration) * time.Second}
	gen := t.gen
	t.mu.Unlock()

	t.log.Info("expired poll completed on restore", zap.String("poll_id", p.ID.String()))
	t.finish(gen)
	return nil
}

// RemainingTime returns the whole seconds left on the running countdown,
// clamped to [0, duration]; 0 when idle.
func (t *PollTimer) RemainingTime() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return 0
	}
	return remainingSeconds(t.state.startedAt, t.state.duration)
}

// ActivePollID returns the tracked poll id and whether a countdown is running.
func (t *PollTimer) ActivePollID() (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return uuid.Nil, false
	}
	return t.state.pollID, true
}

// finish is the end-of-poll action. The generation check plus clearing the
// state under the lock make it single-flight: whichever of natural expiry,
// early termination, or restore gets here first wins, the rest no-op.
func (t *PollTimer) finish(gen uint64) {
	t.mu.Lock()
	st := t.state
	if st == nil || st.gen != gen {
		t.mu.Unlock()
		return
	}
	t.clearLocked()
	t.mu.Unlock()

	ctx := context.Background()
	if _, err := t.polls.SetPollStatus(ctx, st.pollID, poll.StatusCompleted); err != nil {
		t.log.Error("failed to mark poll completed", zap.String("poll_id", st.pollID.String()), zap.Error(err))
	}

	results, err := t.votes.GetTally(ctx, st.pollID)
	if err != nil {
		t.log.Error("failed to load final tally", zap.String("poll_id", st.pollID.String()), zap.Error(err))
	}

	t.bc.BroadcastAll(events.EventPollEnded, events.PollEndedPayload{PollID: st.pollID, Results: results})
	t.log.Info("poll ended", zap.String("poll_id", st.pollID.String()))

	t.mu.Lock()
	hook := t.onEnded
	t.mu.Unlock()
	if hook != nil {
		hook(st.pollID, results)
	}
}

// clearLocked cancels all scheduled actions for the current state.
// Callers must hold t.mu.
func (t *PollTimer) clearLocked() {
	if t.state == nil {
		return
	}
	if t.state.expiry != nil {
		t.state.expiry.Stop()
	}
	if t.state.ticker != nil {
		t.state.ticker.Stop()
	}
	if t.state.done != nil {
		close(t.state.done)
	}
	t.state = nil
}

func remainingSeconds(startedAt time.Time, duration time.Duration) int {
	elapsed := int(time.Since(startedAt).Seconds())
	total := int(duration.Seconds())
	remaining := total - elapsed
	if remaining < 0 {
		return 0
	}
	if remaining > total {
		return total
	}
	return remaining
}
