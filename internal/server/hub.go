package server

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"classpoll/internal/services"
)

// eventEnvelope is the outbound frame for server-pushed events.
type eventEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// outboundFrame is a queued broadcast. A nil participantID targets everyone.
type outboundFrame struct {
	participantID *uuid.UUID
	data          []byte
}

// Hub maintains the set of active websocket clients and fans events out to
// them. It implements services.Broadcaster, so the domain services publish
// through it without knowing about connections.
type Hub struct {
	clients       map[string]*Client
	byParticipant map[uuid.UUID]map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *outboundFrame

	presence   *services.PresenceTracker
	dispatcher *Dispatcher
	logger     *WebSocketLogger

	mu        sync.RWMutex
	stopChan  chan struct{}
	isRunning int32
}

// NewHub creates a new Hub. Presence and the dispatcher are attached after
// construction because both depend on the hub as their broadcaster.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		byParticipant: make(map[uuid.UUID]map[string]*Client),
		register:      make(chan *Client, 256),
		unregister:    make(chan *Client, 256),
		broadcast:     make(chan *outboundFrame, 256),
		logger:        NewWebSocketLogger(),
		stopChan:      make(chan struct{}),
	}
}

func (h *Hub) AttachPresence(p *services.PresenceTracker) {
	h.presence = p
}

func (h *Hub) AttachDispatcher(d *Dispatcher) {
	h.dispatcher = d
}

// Run starts the Hub loop.
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case frame := <-h.broadcast:
			h.handleBroadcast(frame)

		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client.connID] = client
	h.mu.Unlock()

	h.logger.Info("client connected", client.connID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	existing, ok := h.clients[client.connID]
	if !ok || existing != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.connID)
	h.detachParticipantLocked(client)
	close(client.send)
	client.conn.Close()
	h.mu.Unlock()

	// Presence is told after the maps are consistent; it broadcasts the
	// offline and roster events itself.
	if h.presence != nil {
		h.presence.RemoveConnection(client.connID)
	}

	h.logger.Info("client disconnected", client.connID)
}

// BindParticipant associates a connection with a registered participant so
// targeted sends and forced disconnects can find it.
func (h *Hub) BindParticipant(client *Client, participantID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachParticipantLocked(client)
	if h.byParticipant[participantID] == nil {
		h.byParticipant[participantID] = make(map[string]*Client)
	}
	h.byParticipant[participantID][client.connID] = client
	client.setParticipantID(participantID)
}

// UnbindParticipant detaches a connection from its participant.
func (h *Hub) UnbindParticipant(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachParticipantLocked(client)
}

func (h *Hub) detachParticipantLocked(client *Client) {
	pid, ok := client.participantID()
	if !ok {
		return
	}
	if conns, found := h.byParticipant[pid]; found {
		delete(conns, client.connID)
		if len(conns) == 0 {
			delete(h.byParticipant, pid)
		}
	}
	client.clearParticipantID()
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(event string, payload any) {
	data, err := json.Marshal(eventEnvelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode broadcast", "", err)
		return
	}
	h.enqueueFrame(&outboundFrame{data: data})
}

// SendToParticipant sends an event to all live connections of one participant.
func (h *Hub) SendToParticipant(participantID uuid.UUID, event string, payload any) {
	data, err := json.Marshal(eventEnvelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode broadcast", "", err)
		return
	}
	h.enqueueFrame(&outboundFrame{participantID: &participantID, data: data})
}

// enqueueFrame hands a frame to the Run loop without ever blocking the
// caller; the loop itself can be mid-callback into presence.
func (h *Hub) enqueueFrame(frame *outboundFrame) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("broadcast buffer full, frame dropped", "")
	}
}

func (h *Hub) handleBroadcast(frame *outboundFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if frame.participantID == nil {
		for _, client := range h.clients {
			h.push(client, frame.data)
		}
		return
	}

	for _, client := range h.byParticipant[*frame.participantID] {
		h.push(client, frame.data)
	}
}

func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("client send buffer full", client.connID)
	}
}

// DisconnectParticipant forcibly closes all of a participant's connections.
// The actual cleanup runs through the normal unregister path as each read
// pump exits.
func (h *Hub) DisconnectParticipant(participantID uuid.UUID) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.byParticipant[participantID]))
	for _, client := range h.byParticipant[participantID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.closeConn()
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop gracefully shuts down the Hub.
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.byParticipant = make(map[uuid.UUID]map[string]*Client)
}
