package relay

import "encoding/json"

// Wire event names exchanged with clients.
const (
	EventJoinRoom   = "join-room"
	EventSignal     = "webrtc-signal"
	EventRoomJoined = "room-joined"
	EventPeerJoined = "peer-joined"
	EventPeerLeft   = "peer-left"
	EventError      = "error"
)

// Event is the envelope for everything crossing a connection. Data is
// opaque to the relay and forwarded byte for byte.
type Event struct {
	Name  string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	From  string          `json:"from,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Peer  *Peer           `json:"peer,omitempty"`
	Peers []Peer          `json:"peers,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Peer describes a room member to the other members.
type Peer struct {
	ConnID string `json:"connId"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}
