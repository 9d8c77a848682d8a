package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/edu-notify-api/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// userRoomPrefix prefixes the per-user room shared by all of a user's connections.
const userRoomPrefix = "user:"

// relayTimeout bounds a single cross-instance publish.
const relayTimeout = 2 * time.Second

var (
	ErrReservedRoom = errors.New("room is reserved")
	ErrInvalidRoom  = errors.New("room name is invalid")
)

// Relay forwards emits to other hub instances.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
}

// UserRoom returns the room every connection of userID joins.
func UserRoom(userID string) string { return userRoomPrefix + userID }

// Hub tracks live connections and their room membership. Membership is
// process-local; a Relay only shares emits.
type Hub struct {
	instanceID string
	log        *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	users   map[string]map[string]struct{}
	relay   Relay
	closed  bool
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		instanceID: uuid.NewString(),
		log:        log,
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		users:      make(map[string]map[string]struct{}),
	}
}

// InstanceID identifies this hub in relayed envelopes.
func (h *Hub) InstanceID() string { return h.instanceID }

// SetRelay enables cross-instance fan-out. Call before serving connections.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Register adds c to the hub. Authenticated clients join their user room and
// one room per role held at connect time.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("hub is shut down")
	}
	h.clients[c.ID] = c
	if c.Identity == nil {
		return nil
	}
	h.joinLocked(c, UserRoom(c.Identity.UserID))
	for _, r := range c.Identity.Roles {
		if room := r.Room(); room != "" {
			h.joinLocked(c, room)
		}
	}
	conns, ok := h.users[c.Identity.UserID]
	if !ok {
		conns = make(map[string]struct{})
		h.users[c.Identity.UserID] = conns
	}
	conns[c.ID] = struct{}{}
	return nil
}

// Unregister removes c from every room and closes its outbound queue.
// The user entry is dropped with its last connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	if c.Identity != nil {
		if conns, ok := h.users[c.Identity.UserID]; ok {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(h.users, c.Identity.UserID)
			}
		}
	}
	h.mu.Unlock()
	c.closeSend()
}

// Join adds c to a client-chosen room. Per-user and role rooms are managed by the hub.
func (h *Hub) Join(c *Client, room string) error {
	if err := checkRoom(room); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return errors.New("client not registered")
	}
	h.joinLocked(c, room)
	return nil
}

// Leave removes c from a client-chosen room.
func (h *Hub) Leave(c *Client, room string) error {
	if err := checkRoom(room); err != nil {
		return err
	}
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
	return nil
}

func checkRoom(room string) error {
	room = strings.TrimSpace(room)
	if room == "" || len(room) > 128 {
		return ErrInvalidRoom
	}
	if strings.HasPrefix(room, userRoomPrefix) {
		return ErrReservedRoom
	}
	for _, r := range domain.Roles {
		if room == r.Room() {
			return ErrReservedRoom
		}
	}
	return nil
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// EmitToUser delivers to every live connection of userID. Offline users are skipped silently.
func (h *Hub) EmitToUser(userID, event string, data any) int {
	return h.EmitToRoom(UserRoom(userID), event, data)
}

// EmitToRole delivers to every connection that joined with role.
func (h *Hub) EmitToRole(role domain.Role, event string, data any) int {
	room := role.Room()
	if room == "" {
		h.log.Warn("emit to unknown role", zap.String("role", string(role)))
		return 0
	}
	return h.EmitToRoom(room, event, data)
}

func (h *Hub) EmitToAdmins(event string, data any) int {
	return h.EmitToRole(domain.RoleAdmin, event, data)
}

func (h *Hub) EmitToLecturers(event string, data any) int {
	return h.EmitToRole(domain.RoleLecturer, event, data)
}

func (h *Hub) EmitToLearners(event string, data any) int {
	return h.EmitToRole(domain.RoleLearner, event, data)
}

// EmitToAll delivers to every connection, anonymous ones included.
func (h *Hub) EmitToAll(event string, data any) int {
	return h.emit("", event, data)
}

// EmitToRoom delivers to every member of room and returns the local delivery count.
func (h *Hub) EmitToRoom(room, event string, data any) int {
	if room == "" {
		return 0
	}
	return h.emit(room, event, data)
}

func (h *Hub) emit(room, event string, data any) int {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("encode realtime message", zap.String("event", event), zap.Error(err))
		return 0
	}
	n := h.deliverLocal(room, payload)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()
		if err := relay.Publish(ctx, Envelope{Origin: h.instanceID, Room: room, Payload: payload}); err != nil {
			h.log.Warn("relay publish failed", zap.String("room", room), zap.Error(err))
		}
	}
	return n
}

// Deliver hands a relayed envelope to local connections. Envelopes this hub published are ignored.
func (h *Hub) Deliver(env Envelope) int {
	if env.Origin == h.instanceID {
		return 0
	}
	return h.deliverLocal(env.Room, env.Payload)
}

func (h *Hub) deliverLocal(room string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := h.clients
	if room != "" {
		targets = h.rooms[room]
	}
	n := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			n++
			continue
		}
		h.log.Warn("client send buffer full, dropping message", zap.String("conn", c.ID), zap.String("room", room))
	}
	return n
}

// IsUserOnline reports whether userID has a live connection on this instance.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// OnlineUserCount is the number of distinct authenticated users connected to this instance.
func (h *Hub) OnlineUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// ConnectionCount is the number of live connections, anonymous ones included.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and refuses new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.Unregister(c)
	}
	h.log.Info("realtime hub stopped", zap.Int("connections", len(clients)))
}
