package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SenderType string

const (
	SenderTeacher SenderType = "teacher"
	SenderStudent SenderType = "student"
)

const MaxContentLength = 500

// Message represents the messages table.
type Message struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SenderName string     `gorm:"not null" json:"sender_name"`
	SenderType SenderType `gorm:"type:varchar(16);not null" json:"sender_type"`
	Content    string     `gorm:"not null" json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
