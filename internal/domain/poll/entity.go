package poll

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Poll represents the polls table. Question, options and duration are
// immutable after creation; only status and its timestamps change.
type Poll struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Question  string    `gorm:"not null" json:"question"`
	Duration  int       `gorm:"not null" json:"duration"` // seconds
	Status    Status    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	Options []Option `gorm:"constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

func (p *Poll) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Option represents the options table. Immutable after creation.
type Option struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PollID       uuid.UUID `gorm:"type:uuid;not null;index" json:"poll_id"`
	Text         string    `gorm:"not null" json:"text"`
	IsCorrect    bool      `gorm:"not null;default:false" json:"is_correct"`
	DisplayOrder int       `gorm:"not null" json:"display_order"`
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Vote represents the votes table, append-only. The unique index on
// (poll_id, participant_id) is the durable guard against double voting;
// the service-level existence check is only the fast path.
type Vote struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PollID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_participant" json:"poll_id"`
	OptionID      uuid.UUID `gorm:"type:uuid;not null;index" json:"option_id"`
	ParticipantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_participant" json:"participant_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// OptionInput is the creation payload for a single option.
type OptionInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// OptionResult is one row of an aggregated tally, ordered by display order.
type OptionResult struct {
	OptionID   uuid.UUID `json:"option_id"`
	OptionText string    `json:"option_text"`
	VoteCount  int       `json:"vote_count"`
	Percentage int       `json:"percentage"`
	IsCorrect  bool      `json:"is_correct"`
}

// Tally is the full aggregated result set for one poll.
type Tally struct {
	PollID     uuid.UUID      `json:"poll_id"`
	Question   string         `json:"question"`
	TotalVotes int            `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}
