package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain/participant"
	"classpoll/internal/events"
	"classpoll/internal/repository"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"
)

const maxParticipantNameLength = 50

// ParticipantService handles registration and removal of session members.
// Liveness is not its concern; the presence tracker owns that.
type ParticipantService struct {
	participants repository.ParticipantRepository
	presence     *PresenceTracker
	bc           Broadcaster
	log          *zap.Logger
}

func NewParticipantService(participants repository.ParticipantRepository, presence *PresenceTracker, bc Broadcaster, l *logger.Logger) *ParticipantService {
	return &ParticipantService{
		participants: participants,
		presence:     presence,
		bc:           bc,
		log:          l.Logger.With(zap.String("component", "participant_service")),
	}
}

// Register creates the participant for a session token, or returns the
// existing one. Re-registering with the same token is how a returning client
// recovers its identity.
func (s *ParticipantService) Register(ctx context.Context, name, sessionToken string) (*participant.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxParticipantNameLength {
		return nil, classpoll_errors.ErrInvalidInput
	}
	if strings.TrimSpace(sessionToken) == "" {
		return nil, classpoll_errors.ErrInvalidInput
	}

	p, err := s.participants.FindOrCreate(ctx, name, sessionToken)
	if err != nil {
		return nil, err
	}
	s.log.Info("participant registered", zap.String("participant_id", p.ID.String()), zap.String("name", p.Name))
	return p, nil
}

func (s *ParticipantService) GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	return s.participants.GetByID(ctx, id)
}

func (s *ParticipantService) GetBySessionToken(ctx context.Context, token string) (*participant.Participant, error) {
	return s.participants.GetBySessionToken(ctx, token)
}

// Kick removes a participant from the session. The kicked notice goes out
// first so the client learns why its connections are about to drop, then the
// participant is taken off the roster, deleted, and disconnected.
func (s *ParticipantService) Kick(ctx context.Context, id uuid.UUID, reason string) error {
	p, err := s.participants.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "removed by teacher"
	}

	s.bc.SendToParticipant(id, events.EventParticipantKicked, events.ParticipantKickedPayload{
		ParticipantID: id,
		Reason:        reason,
	})
	s.presence.RemoveParticipant(id)

	if err := s.participants.Delete(ctx, id); err != nil {
		s.log.Error("failed to delete kicked participant", zap.String("participant_id", id.String()), zap.Error(err))
	}
	s.bc.DisconnectParticipant(id)

	s.log.Info("participant kicked", zap.String("participant_id", id.String()), zap.String("name", p.Name), zap.String("reason", reason))
	return nil
}
