package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain/participant"
	"classpoll/internal/events"
	"classpoll/pkg/logger"
)

// presenceEntry exists iff the participant has at least one live connection.
type presenceEntry struct {
	id          uuid.UUID
	name        string
	joinedAt    time.Time
	connections map[string]struct{}
}

// PresenceTracker is the single authority for who is online. It is
// process-local and starts empty on every boot; persisted state is never
// consulted for liveness. Supports multiple connections per participant.
type PresenceTracker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*presenceEntry
	byConn  map[string]uuid.UUID
	bc      Broadcaster
	log     *zap.Logger
}

func NewPresenceTracker(bc Broadcaster, l *logger.Logger) *PresenceTracker {
	return &PresenceTracker{
		entries: make(map[uuid.UUID]*presenceEntry),
		byConn:  make(map[string]uuid.UUID),
		bc:      bc,
		log:     l.Logger.With(zap.String("component", "presence")),
	}
}

// AddConnection registers a live connection for a participant. The first
// connection brings the participant online; further connections (extra
// tabs) only refresh the roster.
func (t *PresenceTracker) AddConnection(p *participant.Participant, connID string) {
	t.mu.Lock()
	entry, online := t.entries[p.ID]
	if !online {
		entry = &presenceEntry{
			id:          p.ID,
			name:        p.Name,
			joinedAt:    time.Now(),
			connections: make(map[string]struct{}),
		}
		t.entries[p.ID] = entry
	}
	entry.connections[connID] = struct{}{}
	t.byConn[connID] = p.ID
	tabs := len(entry.connections)
	t.mu.Unlock()

	if !online {
		t.log.Info("participant online", zap.String("participant_id", p.ID.String()), zap.String("name", p.Name))
		t.bc.BroadcastAll(events.EventParticipantOnline, events.ParticipantOnlinePayload{ID: p.ID, Name: p.Name})
	} else {
		t.log.Debug("participant added connection", zap.String("participant_id", p.ID.String()), zap.Int("tabs", tabs))
	}
	t.broadcastRoster()
}

// RemoveConnection drops a connection. Removing the last one takes the
// participant offline. Unknown connections are a no-op.
func (t *PresenceTracker) RemoveConnection(connID string) {
	t.mu.Lock()
	pid, ok := t.byConn[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.byConn, connID)

	entry, ok := t.entries[pid]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(entry.connections, connID)
	offline := len(entry.connections) == 0
	name := entry.name
	if offline {
		delete(t.entries, pid)
	}
	t.mu.Unlock()

	if offline {
		t.log.Info("participant offline", zap.String("participant_id", pid.String()), zap.String("name", name))
		t.bc.BroadcastAll(events.EventParticipantOffline, events.ParticipantOfflinePayload{ID: pid, Name: name})
	}
	t.broadcastRoster()
}

// RemoveParticipant drops a participant and all their connections
// unconditionally (kick). No-op when the participant is not online.
func (t *PresenceTracker) RemoveParticipant(participantID uuid.UUID) {
	t.mu.Lock()
	entry, ok := t.entries[participantID]
	if !ok {
		t.mu.Unlock()
		return
	}
	for connID := range entry.connections {
		delete(t.byConn, connID)
	}
	name := entry.name
	delete(t.entries, participantID)
	t.mu.Unlock()

	t.log.Info("participant removed", zap.String("participant_id", participantID.String()), zap.String("name", name))
	t.bc.BroadcastAll(events.EventParticipantOffline, events.ParticipantOfflinePayload{ID: participantID, Name: name})
	t.broadcastRoster()
}

// ListOnline returns a snapshot of the roster, oldest join first.
func (t *PresenceTracker) ListOnline() []events.RosterEntry {
	t.mu.Lock()
	roster := make([]events.RosterEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		roster = append(roster, events.RosterEntry{
			ID:       entry.id,
			Name:     entry.name,
			JoinedAt: entry.joinedAt,
		})
	}
	t.mu.Unlock()

	sort.Slice(roster, func(i, j int) bool {
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})
	return roster
}

func (t *PresenceTracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *PresenceTracker) IsOnline(participantID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[participantID]
	return ok
}

func (t *PresenceTracker) broadcastRoster() {
	roster := t.ListOnline()
	t.bc.BroadcastAll(events.EventRosterUpdate, events.RosterUpdatePayload{
		Count:        len(roster),
		Participants: roster,
	})
}
