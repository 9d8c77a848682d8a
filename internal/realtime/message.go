package realtime

import "encoding/json"

// Server-to-client event names.
const (
	EventConnected   = "connected"
	EventRoomJoined  = "room_joined"
	EventRoomLeft    = "room_left"
	EventError       = "error"
	EventUnreadCount = "unread_count"
)

// Client-to-server event names.
const (
	eventJoinRoom  = "join_room"
	eventLeaveRoom = "leave_room"
)

// Message is the frame written to every websocket client.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type inbound struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: data})
}

// Envelope carries an encoded frame between hub instances. An empty Room means everyone.
type Envelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload"`
}
