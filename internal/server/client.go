package server

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// ClientMessage is an inbound command frame. The request id, when present,
// is echoed back on the reply so the client can correlate it.
type ClientMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// commandReply is the outbound reply to one ClientMessage.
type commandReply struct {
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// Client represents a single WebSocket connection. A connection starts
// anonymous; it is bound to a participant once a register command succeeds.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string

	pidMu  sync.Mutex
	pid    uuid.UUID
	pidSet bool

	limiter     *connRateLimiter
	connectedAt time.Time
	// unix nanos; written by the read pump, read by the write pump
	lastActivity atomic.Int64
	closeOnce    sync.Once
	logger       *WebSocketLogger
}

func NewClient(hub *Hub, conn *websocket.Conn, connID string, logger *WebSocketLogger) *Client {
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		connID:      connID,
		limiter:     newConnRateLimiter(),
		connectedAt: time.Now(),
		logger:      logger,
	}
	c.touch()
	return c
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) idleTime() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

func (c *Client) setParticipantID(id uuid.UUID) {
	c.pidMu.Lock()
	defer c.pidMu.Unlock()
	c.pid = id
	c.pidSet = true
}

func (c *Client) clearParticipantID() {
	c.pidMu.Lock()
	defer c.pidMu.Unlock()
	c.pid = uuid.Nil
	c.pidSet = false
}

func (c *Client) participantID() (uuid.UUID, bool) {
	c.pidMu.Lock()
	defer c.pidMu.Unlock()
	return c.pid, c.pidSet
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.connID, err)
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.touch()

		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply(commandReply{Success: false, Error: "malformed message", Code: "INVALID_REQUEST"})
		return
	}
	if c.hub.dispatcher == nil {
		return
	}
	c.hub.dispatcher.Dispatch(c, &msg)
}

// reply queues a command reply on this connection only.
func (c *Client) reply(r commandReply) {
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Error("failed to encode reply", c.connID, err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full", c.connID)
	}
}

// closeConn asks the peer to close and tears the connection down. The read
// pump noticing the closed connection drives the unregister cleanup.
func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeWait)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnected"), deadline)
		c.conn.Close()
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if c.idleTime() > pongWait*2 {
				c.logger.Info("client idle timeout", c.connID)
				return
			}
		}
	}
}
