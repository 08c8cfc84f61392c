package repository

import (
	"context"

	"github.com/google/uuid"

	"classpoll/internal/domain/chat"
	"classpoll/internal/domain/participant"
	"classpoll/internal/domain/poll"
)

type PollRepository interface {
	// CreatePollWithOptions inserts the poll and its options atomically.
	CreatePollWithOptions(ctx context.Context, question string, options []poll.OptionInput, duration int) (*poll.Poll, error)
	// GetPollByID returns the poll with its options, or ErrNotFound.
	GetPollByID(ctx context.Context, id uuid.UUID) (*poll.Poll, error)
	// GetActivePoll returns the active poll with options, or (nil, nil) when none.
	GetActivePoll(ctx context.Context) (*poll.Poll, error)
	// GetPollHistory returns completed polls, newest first.
	GetPollHistory(ctx context.Context) ([]poll.Poll, error)
	HasActivePoll(ctx context.Context) (bool, error)
	// SetPollStatus transitions status; started_at is set on the transition
	// to active, ended_at on the transition to completed.
	SetPollStatus(ctx context.Context, id uuid.UUID, status poll.Status) (*poll.Poll, error)
}

type VoteRepository interface {
	VoteExists(ctx context.Context, pollID, participantID uuid.UUID) (bool, error)
	// InsertVote appends a vote; a duplicate (poll, participant) pair maps
	// to ErrDuplicateVote.
	InsertVote(ctx context.Context, v *poll.Vote) error
	GetVoteByParticipant(ctx context.Context, pollID, participantID uuid.UUID) (*poll.Vote, error)
	GetTally(ctx context.Context, pollID uuid.UUID) (*poll.Tally, error)
	CountVoters(ctx context.Context, pollID uuid.UUID) (int, error)
}

type ParticipantRepository interface {
	// FindOrCreate is idempotent per session token: registering twice with
	// the same token returns the same participant.
	FindOrCreate(ctx context.Context, name, sessionToken string) (*participant.Participant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error)
	GetBySessionToken(ctx context.Context, token string) (*participant.Participant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ChatRepository interface {
	Create(ctx context.Context, m *chat.Message) error
	List(ctx context.Context, limit, offset int) ([]chat.Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*chat.Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}
