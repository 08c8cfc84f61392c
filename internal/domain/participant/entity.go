package participant

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant represents the participants table. Liveness is never
// persisted; the in-memory presence tracker is the only authority for
// who is online.
type Participant struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	SessionToken string    `gorm:"not null;uniqueIndex" json:"session_token"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
