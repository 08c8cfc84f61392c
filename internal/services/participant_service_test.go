package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"classpoll/internal/events"
	classpoll_errors "classpoll/pkg/errors"
)

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tests := []struct {
		name    string
		pname   string
		token   string
		wantErr bool
	}{
		{"valid", "Ada", "token-1", false},
		{"empty name", "   ", "token-2", true},
		{"name too long", strings.Repeat("a", 51), "token-3", true},
		{"empty token", "Ada", "  ", true},
		{"name at limit", strings.Repeat("a", 50), "token-4", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.partSvc.Register(ctx, tt.pname, tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, classpoll_errors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegister_IdempotentPerToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, err := env.partSvc.Register(ctx, "Ada", "token-ada")
	assert.NoError(t, err)

	second, err := env.partSvc.Register(ctx, "Ada again", "token-ada")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same token recovers the same identity")

	other, err := env.partSvc.Register(ctx, "Ben", "token-ben")
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestKick_RemovesParticipantEverywhere(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	p := env.join("Ada", "token-ada", "conn-1")
	env.presence.AddConnection(p, "conn-2")

	err := env.partSvc.Kick(ctx, p.ID, "disruptive")
	assert.NoError(t, err)

	// kicked notice goes to the participant before anything else
	assert.Len(t, env.bc.targeted, 1)
	assert.Equal(t, p.ID, env.bc.targeted[0].ParticipantID)
	assert.Equal(t, events.EventParticipantKicked, env.bc.targeted[0].Event)
	kicked := env.bc.targeted[0].Payload.(events.ParticipantKickedPayload)
	assert.Equal(t, "disruptive", kicked.Reason)

	assert.False(t, env.presence.IsOnline(p.ID))

	_, err = env.participants.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, classpoll_errors.ErrNotFound, "kicked participant is deleted")

	assert.Contains(t, env.bc.disconnected, p.ID, "all connections are force-closed")
}

func TestKick_DefaultReason(t *testing.T) {
	env := newTestEnv()

	p := env.join("Ada", "token-ada", "conn-1")
	assert.NoError(t, env.partSvc.Kick(context.Background(), p.ID, ""))

	kicked := env.bc.targeted[0].Payload.(events.ParticipantKickedPayload)
	assert.NotEmpty(t, kicked.Reason)
}

func TestKick_UnknownParticipant(t *testing.T) {
	env := newTestEnv()

	err := env.partSvc.Kick(context.Background(), uuid.New(), "whatever")
	assert.ErrorIs(t, err, classpoll_errors.ErrNotFound)
	assert.Empty(t, env.bc.targeted, "no kicked notice for unknown participants")
}
