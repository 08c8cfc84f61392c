package services_test

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"classpoll/config"
	"classpoll/internal/domain/chat"
	"classpoll/internal/domain/participant"
	"classpoll/internal/domain/poll"
	"classpoll/internal/services"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"
)

// recordedEvent is one captured broadcast.
type recordedEvent struct {
	Event   string
	Payload any
}

type targetedEvent struct {
	ParticipantID uuid.UUID
	Event         string
	Payload       any
}

// fakeBroadcaster records everything the services publish.
type fakeBroadcaster struct {
	mu           sync.Mutex
	broadcasts   []recordedEvent
	targeted     []targetedEvent
	disconnected []uuid.UUID
}

func (b *fakeBroadcaster) BroadcastAll(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, recordedEvent{Event: event, Payload: payload})
}

func (b *fakeBroadcaster) SendToParticipant(participantID uuid.UUID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targeted = append(b.targeted, targetedEvent{ParticipantID: participantID, Event: event, Payload: payload})
}

func (b *fakeBroadcaster) DisconnectParticipant(participantID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, participantID)
}

func (b *fakeBroadcaster) countOf(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.broadcasts {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (b *fakeBroadcaster) lastOf(event string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.broadcasts) - 1; i >= 0; i-- {
		if b.broadcasts[i].Event == event {
			return b.broadcasts[i].Payload, true
		}
	}
	return nil, false
}

// eventNames returns the broadcast order for asserting sequencing.
func (b *fakeBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.broadcasts))
	for _, e := range b.broadcasts {
		names = append(names, e.Event)
	}
	return names
}

// fakePollRepo is an in-memory PollRepository.
type fakePollRepo struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*poll.Poll
}

func newFakePollRepo() *fakePollRepo {
	return &fakePollRepo{polls: make(map[uuid.UUID]*poll.Poll)}
}

func (r *fakePollRepo) CreatePollWithOptions(ctx context.Context, question string, options []poll.OptionInput, duration int) (*poll.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &poll.Poll{
		ID:        uuid.New(),
		Question:  question,
		Duration:  duration,
		Status:    poll.StatusPending,
		CreatedAt: time.Now(),
	}
	for i, o := range options {
		p.Options = append(p.Options, poll.Option{
			ID:           uuid.New(),
			PollID:       p.ID,
			Text:         o.Text,
			IsCorrect:    o.IsCorrect,
			DisplayOrder: i,
		})
	}
	r.polls[p.ID] = p
	return p, nil
}

func (r *fakePollRepo) GetPollByID(ctx context.Context, id uuid.UUID) (*poll.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return nil, classpoll_errors.ErrNotFound
	}
	return p, nil
}

func (r *fakePollRepo) GetActivePoll(ctx context.Context) (*poll.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.polls {
		if p.Status == poll.StatusActive {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePollRepo) GetPollHistory(ctx context.Context) ([]poll.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var completed []poll.Poll
	for _, p := range r.polls {
		if p.Status == poll.StatusCompleted {
			completed = append(completed, *p)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		ti, tj := completed[i].EndedAt, completed[j].EndedAt
		if ti == nil || tj == nil {
			return ti != nil
		}
		return ti.After(*tj)
	})
	return completed, nil
}

func (r *fakePollRepo) HasActivePoll(ctx context.Context) (bool, error) {
	p, err := r.GetActivePoll(ctx)
	return p != nil, err
}

func (r *fakePollRepo) SetPollStatus(ctx context.Context, id uuid.UUID, status poll.Status) (*poll.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return nil, classpoll_errors.ErrNotFound
	}
	now := time.Now()
	p.Status = status
	switch status {
	case poll.StatusActive:
		if p.StartedAt == nil {
			p.StartedAt = &now
		}
	case poll.StatusCompleted:
		p.EndedAt = &now
	}
	return p, nil
}

// setActive seeds an already-running poll, e.g. for restart recovery tests.
func (r *fakePollRepo) setActive(p *poll.Poll, startedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Status = poll.StatusActive
	p.StartedAt = &startedAt
	r.polls[p.ID] = p
}

// fakeVoteRepo is an in-memory VoteRepository aggregating against the poll repo.
type fakeVoteRepo struct {
	mu    sync.Mutex
	polls *fakePollRepo
	votes []poll.Vote
}

func newFakeVoteRepo(polls *fakePollRepo) *fakeVoteRepo {
	return &fakeVoteRepo{polls: polls}
}

func (r *fakeVoteRepo) VoteExists(ctx context.Context, pollID, participantID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.votes {
		if v.PollID == pollID && v.ParticipantID == participantID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeVoteRepo) InsertVote(ctx context.Context, v *poll.Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.votes {
		if existing.PollID == v.PollID && existing.ParticipantID == v.ParticipantID {
			return classpoll_errors.ErrDuplicateVote
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	r.votes = append(r.votes, *v)
	return nil
}

func (r *fakeVoteRepo) GetVoteByParticipant(ctx context.Context, pollID, participantID uuid.UUID) (*poll.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.votes {
		if v.PollID == pollID && v.ParticipantID == participantID {
			vote := v
			return &vote, nil
		}
	}
	return nil, classpoll_errors.ErrNotFound
}

func (r *fakeVoteRepo) GetTally(ctx context.Context, pollID uuid.UUID) (*poll.Tally, error) {
	p, err := r.polls.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[uuid.UUID]int)
	total := 0
	for _, v := range r.votes {
		if v.PollID == pollID {
			counts[v.OptionID]++
			total++
		}
	}

	tally := &poll.Tally{PollID: pollID, Question: p.Question, TotalVotes: total}
	for _, opt := range p.Options {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(counts[opt.ID]) / float64(total) * 100))
		}
		tally.Options = append(tally.Options, poll.OptionResult{
			OptionID:   opt.ID,
			OptionText: opt.Text,
			VoteCount:  counts[opt.ID],
			Percentage: pct,
			IsCorrect:  opt.IsCorrect,
		})
	}
	return tally, nil
}

func (r *fakeVoteRepo) CountVoters(ctx context.Context, pollID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	voters := make(map[uuid.UUID]struct{})
	for _, v := range r.votes {
		if v.PollID == pollID {
			voters[v.ParticipantID] = struct{}{}
		}
	}
	return len(voters), nil
}

// fakeParticipantRepo is an in-memory ParticipantRepository.
type fakeParticipantRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*participant.Participant
	byToken map[string]*participant.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{
		byID:    make(map[uuid.UUID]*participant.Participant),
		byToken: make(map[string]*participant.Participant),
	}
}

func (r *fakeParticipantRepo) FindOrCreate(ctx context.Context, name, sessionToken string) (*participant.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byToken[sessionToken]; ok {
		return p, nil
	}
	p := &participant.Participant{
		ID:           uuid.New(),
		Name:         name,
		SessionToken: sessionToken,
		CreatedAt:    time.Now(),
	}
	r.byID[p.ID] = p
	r.byToken[sessionToken] = p
	return p, nil
}

func (r *fakeParticipantRepo) GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, classpoll_errors.ErrNotFound
	}
	return p, nil
}

func (r *fakeParticipantRepo) GetBySessionToken(ctx context.Context, token string) (*participant.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byToken[token]
	if !ok {
		return nil, classpoll_errors.ErrNotFound
	}
	return p, nil
}

func (r *fakeParticipantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return classpoll_errors.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byToken, p.SessionToken)
	return nil
}

// fakeChatRepo is an in-memory ChatRepository.
type fakeChatRepo struct {
	mu       sync.Mutex
	messages []chat.Message
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{}
}

func (r *fakeChatRepo) Create(ctx context.Context, m *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *fakeChatRepo) List(ctx context.Context, limit, offset int) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= len(r.messages) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.messages) {
		end = len(r.messages)
	}
	out := make([]chat.Message, end-offset)
	copy(out, r.messages[offset:end])
	return out, nil
}

func (r *fakeChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			msg := m
			return &msg, nil
		}
	}
	return nil, classpoll_errors.ErrNotFound
}

func (r *fakeChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.messages {
		if m.ID == id {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return nil
		}
	}
	return classpoll_errors.ErrNotFound
}

func (r *fakeChatRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	return nil
}

// testEnv wires the full service layer over the in-memory fakes.
type testEnv struct {
	bc           *fakeBroadcaster
	polls        *fakePollRepo
	votes        *fakeVoteRepo
	participants *fakeParticipantRepo
	chats        *fakeChatRepo
	presence     *services.PresenceTracker
	timer        *services.PollTimer
	pollSvc      *services.PollService
	voteSvc      *services.VoteService
	stateSvc     *services.StateService
	partSvc      *services.ParticipantService
	chatSvc      *services.ChatService
}

func newTestEnv() *testEnv {
	l := logger.New(logger.DevelopmentMode)
	cfg := &config.Config{
		PollDefaultDuration: 60,
		PollMinDuration:     10,
		PollMaxDuration:     300,
	}

	env := &testEnv{
		bc:           &fakeBroadcaster{},
		polls:        newFakePollRepo(),
		participants: newFakeParticipantRepo(),
		chats:        newFakeChatRepo(),
	}
	env.votes = newFakeVoteRepo(env.polls)
	env.presence = services.NewPresenceTracker(env.bc, l)
	env.timer = services.NewPollTimer(env.polls, env.votes, env.bc, l)
	env.pollSvc = services.NewPollService(env.polls, env.votes, env.timer, env.bc, cfg, l)
	env.voteSvc = services.NewVoteService(env.polls, env.votes, env.presence, env.timer, env.bc, l)
	env.stateSvc = services.NewStateService(env.polls, env.votes, env.participants, env.presence, env.timer, l)
	env.partSvc = services.NewParticipantService(env.participants, env.presence, env.bc, l)
	env.chatSvc = services.NewChatService(env.chats, env.bc, l)
	return env
}

// createPoll is a helper for a standard two-option poll.
func (e *testEnv) createPoll(question string, duration int) *poll.Poll {
	p, err := e.pollSvc.CreatePoll(context.Background(), question, []poll.OptionInput{
		{Text: "Yes", IsCorrect: true},
		{Text: "No"},
	}, duration)
	if err != nil {
		panic(err)
	}
	return p
}

// join registers a participant and puts one connection online.
func (e *testEnv) join(name, token, connID string) *participant.Participant {
	p, err := e.partSvc.Register(context.Background(), name, token)
	if err != nil {
		panic(err)
	}
	e.presence.AddConnection(p, connID)
	return p
}
