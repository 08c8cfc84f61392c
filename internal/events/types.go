package events

import (
	"time"

	"github.com/google/uuid"

	"classpoll/internal/domain/poll"
)

// Broadcast event names. These are the wire-level event identifiers;
// payload shapes are the structs below.

// Presence events
const (
	EventParticipantOnline  = "presence:user-online"
	EventParticipantOffline = "presence:user-offline"
	EventRosterUpdate       = "presence:participants-update"
	EventParticipantKicked  = "presence:user-kicked"
)

// Poll lifecycle events
const (
	EventPollCreated = "poll:created"
	EventPollStarted = "poll:started"
	EventPollEnded   = "poll:ended"
	EventPollTick    = "poll:tick"
)

// Vote events
const (
	EventVoteUpdate = "vote:update"
)

// Chat events
const (
	EventChatMessage        = "chat:new-message"
	EventChatMessageDeleted = "chat:message-deleted"
	EventChatCleared        = "chat:cleared"
)

// RosterEntry is one online participant in a roster snapshot.
type RosterEntry struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

type ParticipantOnlinePayload struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ParticipantOfflinePayload struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type RosterUpdatePayload struct {
	Count        int           `json:"count"`
	Participants []RosterEntry `json:"participants"`
}

type ParticipantKickedPayload struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Reason        string    `json:"reason"`
}

type PollStartedPayload struct {
	Poll          *poll.Poll `json:"poll"`
	RemainingTime int        `json:"remaining_time"`
}

type PollEndedPayload struct {
	PollID  uuid.UUID   `json:"poll_id"`
	Results *poll.Tally `json:"results"`
}

type TickPayload struct {
	PollID        uuid.UUID `json:"poll_id"`
	RemainingTime int       `json:"remaining_time"`
}

type VoteUpdatePayload struct {
	PollID  uuid.UUID   `json:"poll_id"`
	Results *poll.Tally `json:"results"`
}

type ChatMessageDeletedPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}
