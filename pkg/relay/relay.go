// Package relay groups authenticated connections into named rooms and
// fans signaling payloads out to the other members of a room.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/studysignal/studyroomd/pkg/token"
)

// TokenVerifier admits connections. Implemented by token.Service.
type TokenVerifier interface {
	Verify(raw string) (token.Identity, error)
}

// A Conn identifies one transport session on the relay.
// Nothing may send on Conn.Send after the connection is disconnected,
// as Send will be closed.
type Conn struct {
	ID       string         `json:"id"`
	Identity token.Identity `json:"identity"`
	Send     chan<- Event   `json:"-"`
	rooms    map[string]*room
}

// Relay contains the state of the signaling service.
type Relay struct {
	log       *logrus.Logger
	verifier  TokenVerifier
	startedAt time.Time

	mu           sync.RWMutex // Protects conns and rooms
	conns        map[string]*Conn
	rooms        map[string]*room
	maxConns     int
	maxConnsTime time.Time
	maxRooms     int
	maxRoomsTime time.Time
}

// New creates an empty relay.
func New(log *logrus.Logger, verifier TokenVerifier) *Relay {
	now := time.Now()
	return &Relay{
		log:          log,
		verifier:     verifier,
		startedAt:    now,
		conns:        make(map[string]*Conn),
		rooms:        make(map[string]*room),
		maxConnsTime: now,
		maxRoomsTime: now,
	}
}

// Admit verifies the handshake token and registers c. If verification
// fails, c is never registered and the error wraps ErrUnauthenticated.
func (r *Relay) Admit(c *Conn, rawToken string) error {
	identity, err := r.verifier.Verify(rawToken)
	if err != nil {
		return errors.Wrapf(ErrUnauthenticated, "verify token: %s", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.ID]; ok {
		return ErrConnExists
	}
	c.Identity = identity
	c.rooms = make(map[string]*room)
	r.conns[c.ID] = c
	if len(r.conns) > r.maxConns {
		r.maxConns = len(r.conns)
		r.maxConnsTime = time.Now()
	}

	r.log.WithFields(logrus.Fields{
		"conn": c.ID,
		"user": identity.UserID,
	}).Info("Connection admitted")
	return nil
}

// Join adds the connection to the named room, creating the room if
// absent. Joining a room the connection is already a member of is a
// no-op.
func (r *Relay) Join(connID, roomName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return ErrConnNotFound
	}
	if _, joined := c.rooms[roomName]; joined {
		return nil
	}

	rm, existing := r.rooms[roomName]
	if !existing {
		rm = newRoom(roomName)
		r.rooms[roomName] = rm
		if len(r.rooms) > r.maxRooms {
			r.maxRooms = len(r.rooms)
			r.maxRoomsTime = time.Now()
		}
	}
	rm.join(c)
	c.rooms[roomName] = rm

	r.log.WithFields(logrus.Fields{
		"conn":    c.ID,
		"room":    roomName,
		"members": len(rm.members),
	}).Debug("Joined room")
	return nil
}

// Signal delivers payload to every member of roomName except the
// sender. Senders that have not joined roomName get ErrNotAMember.
func (r *Relay) Signal(connID, roomName string, payload json.RawMessage) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return ErrConnNotFound
	}
	rm, joined := c.rooms[roomName]
	if !joined {
		return ErrNotAMember
	}

	rm.broadcast(Event{
		Name: EventSignal,
		Room: roomName,
		From: c.ID,
		Data: payload,
	}, c.ID)
	return nil
}

// Disconnect removes the connection from every room it belongs to,
// discarding rooms left empty, and closes its send queue. Disconnecting
// an unknown connection is a no-op.
func (r *Relay) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return
	}

	for name, rm := range c.rooms {
		if empty := rm.leave(connID); empty {
			delete(r.rooms, name)
		}
	}
	c.rooms = nil
	delete(r.conns, connID)
	close(c.Send) // Tell the transport that the relay let go.

	r.log.WithFields(logrus.Fields{
		"conn": connID,
	}).Info("Connection disconnected")
}

// Stats contains statistics about a running relay.
type Stats struct {
	Uptime     time.Duration `json:"uptime"`
	NumRooms   int           `json:"num_rooms"`
	MaxRooms   int           `json:"max_rooms"`
	MaxRoomsAt time.Time     `json:"max_rooms_at"`
	NumConns   int           `json:"num_conns"`
	MaxConns   int           `json:"max_conns"`
	MaxConnsAt time.Time     `json:"max_conns_at"`
}

// Stats gets stats about the running relay.
func (r *Relay) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Uptime:     time.Since(r.startedAt),
		NumRooms:   len(r.rooms),
		MaxRooms:   r.maxRooms,
		MaxRoomsAt: r.maxRoomsTime,
		NumConns:   len(r.conns),
		MaxConns:   r.maxConns,
		MaxConnsAt: r.maxConnsTime,
	}
}
