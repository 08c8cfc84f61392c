package services

import "github.com/google/uuid"

// Broadcaster is the realtime fan-out channel the services publish through.
// The websocket hub implements it; tests substitute a recording fake.
type Broadcaster interface {
	// BroadcastAll sends an event to every connected client.
	BroadcastAll(event string, payload any)
	// SendToParticipant sends an event to all live connections of one participant.
	SendToParticipant(participantID uuid.UUID, event string, payload any)
	// DisconnectParticipant forcibly closes all of a participant's connections.
	DisconnectParticipant(participantID uuid.UUID)
}
