package relay

// A room relays signaling between the connections that joined it.
// Rooms are created on first join and discarded when the last member
// leaves; callers hold the relay lock.
type room struct {
	name    string
	members map[string]*Conn
}

func newRoom(name string) *room {
	return &room{
		name: name,
		// A new room is being made because at least one connection wants to join it.
		members: make(map[string]*Conn, 1),
	}
}

// broadcast delivers ev to all members whose ID is not in excludeIDs.
// Sends never block; a member with a full queue misses the event.
func (rm *room) broadcast(ev Event, excludeIDs ...string) {
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	for id, m := range rm.members {
		if _, skip := excluded[id]; skip {
			continue
		}
		select {
		case m.Send <- ev:
		default:
		}
	}
}

// join adds c, sending the other members a peer-joined event and the
// joiner a room-joined event listing who is already here.
func (rm *room) join(c *Conn) {
	peer := rm.peerFor(c)
	rm.broadcast(Event{
		Name: EventPeerJoined,
		Room: rm.name,
		Peer: &peer,
	})

	select {
	case c.Send <- Event{
		Name:  EventRoomJoined,
		Room:  rm.name,
		Peers: rm.peerList(),
	}:
	default:
	}
	rm.members[c.ID] = c
}

// leave removes the member, notifies the rest, and reports whether the
// room is now empty.
func (rm *room) leave(id string) (empty bool) {
	m, ok := rm.members[id]
	if !ok {
		return len(rm.members) == 0
	}
	delete(rm.members, id)

	peer := rm.peerFor(m)
	rm.broadcast(Event{
		Name: EventPeerLeft,
		Room: rm.name,
		Peer: &peer,
	})
	return len(rm.members) == 0
}

func (rm *room) peerList() []Peer {
	peers := make([]Peer, 0, len(rm.members))
	for _, m := range rm.members {
		peers = append(peers, rm.peerFor(m))
	}
	return peers
}

func (rm *room) peerFor(c *Conn) Peer {
	return Peer{
		ConnID: c.ID,
		UserID: c.Identity.UserID,
		Name:   c.Identity.Name,
	}
}
