package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain/chat"
	"classpoll/internal/events"
	"classpoll/internal/repository"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"
)

const defaultChatPageSize = 50

// ChatService handles the session-wide message stream.
type ChatService struct {
	messages repository.ChatRepository
	bc       Broadcaster
	log      *zap.Logger
}

func NewChatService(messages repository.ChatRepository, bc Broadcaster, l *logger.Logger) *ChatService {
	return &ChatService{
		messages: messages,
		bc:       bc,
		log:      l.Logger.With(zap.String("component", "chat_service")),
	}
}

// Send validates, persists and broadcasts one message.
func (s *ChatService) Send(ctx context.Context, senderName string, senderType chat.SenderType, content string) (*chat.Message, error) {
	senderName = strings.TrimSpace(senderName)
	content = strings.TrimSpace(content)
	if senderName == "" || content == "" || len(content) > chat.MaxContentLength {
		return nil, classpoll_errors.ErrInvalidInput
	}
	if senderType != chat.SenderTeacher && senderType != chat.SenderStudent {
		return nil, classpoll_errors.ErrInvalidInput
	}

	m := &chat.Message{
		SenderName: senderName,
		SenderType: senderType,
		Content:    content,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	s.bc.BroadcastAll(events.EventChatMessage, m)
	return m, nil
}

// List returns messages oldest first. A non-positive limit takes the default
// page size.
func (s *ChatService) List(ctx context.Context, limit, offset int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = defaultChatPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.List(ctx, limit, offset)
}

// Delete removes one message (teacher moderation) and notifies clients.
func (s *ChatService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.messages.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("chat message deleted", zap.String("message_id", id.String()))
	s.bc.BroadcastAll(events.EventChatMessageDeleted, events.ChatMessageDeletedPayload{MessageID: id})
	return nil
}

// Clear wipes the whole stream.
func (s *ChatService) Clear(ctx context.Context) error {
	if err := s.messages.DeleteAll(ctx); err != nil {
		return err
	}
	s.log.Info("chat cleared")
	s.bc.BroadcastAll(events.EventChatCleared, struct{}{})
	return nil
}
