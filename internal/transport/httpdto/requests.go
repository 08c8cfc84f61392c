package httpdto

import "github.com/google/uuid"

type RegisterParticipantRequest struct {
	Name         string `json:"name" binding:"required"`
	SessionToken string `json:"session_token" binding:"required"`
}

type KickParticipantRequest struct {
	Reason string `json:"reason"`
}

type PollOptionRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type CreatePollRequest struct {
	Question string              `json:"question" binding:"required"`
	Options  []PollOptionRequest `json:"options" binding:"required"`
	Duration int                 `json:"duration"`
}

type SubmitVoteRequest struct {
	PollID        uuid.UUID `json:"poll_id" binding:"required"`
	ParticipantID uuid.UUID `json:"participant_id" binding:"required"`
	OptionID      uuid.UUID `json:"option_id" binding:"required"`
}

type SendMessageRequest struct {
	SenderName string `json:"sender_name" binding:"required"`
	SenderType string `json:"sender_type" binding:"required"`
	Content    string `json:"content" binding:"required"`
}
