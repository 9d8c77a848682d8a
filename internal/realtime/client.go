package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/edu-notify-api/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one live websocket connection. Identity is nil for anonymous connections.
type Client struct {
	ID       string
	Identity *domain.Identity

	hub  *Hub
	conn *websocket.Conn
	log  *zap.Logger

	// rooms is guarded by hub.mu.
	rooms map[string]struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(id string, identity *domain.Identity, hub *Hub, conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		hub:      hub,
		conn:     conn,
		log:      log,
		rooms:    make(map[string]struct{}),
		send:     make(chan []byte, sendBuffer),
	}
}

// Authenticated reports whether the connection carries a verified identity.
func (c *Client) Authenticated() bool { return c.Identity != nil }

// enqueue queues payload without blocking. It reports false when the buffer is full or closed.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) reply(event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		return
	}
	if !c.enqueue(payload) {
		c.log.Warn("client send buffer full, dropping reply", zap.String("event", event))
	}
}

// handle processes one inbound frame.
func (c *Client) handle(raw []byte) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.reply(EventError, map[string]string{"message": "malformed message"})
		return
	}
	switch in.Event {
	case eventJoinRoom:
		if err := c.hub.Join(c, in.Room); err != nil {
			c.reply(EventError, map[string]string{"message": err.Error(), "room": in.Room})
			return
		}
		c.reply(EventRoomJoined, map[string]string{"room": in.Room})
	case eventLeaveRoom:
		if err := c.hub.Leave(c, in.Room); err != nil {
			c.reply(EventError, map[string]string{"message": err.Error(), "room": in.Room})
			return
		}
		c.reply(EventRoomLeft, map[string]string{"room": in.Room})
	default:
		c.reply(EventError, map[string]string{"message": "unknown event", "event": in.Event})
	}
}

// readPump reads inbound frames until the connection fails, then unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handle(raw)
	}
}

// writePump writes queued frames and pings until the queue closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.log.Debug("websocket write error", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
