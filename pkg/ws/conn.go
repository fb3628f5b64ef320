package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/studysignal/studyroomd/pkg/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendQueueSize  = 256
)

// conn pumps events between one WebSocket and the relay.
type conn struct {
	log   *logrus.Entry
	relay *relay.Relay
	id    string
	ws    *websocket.Conn
	send  chan relay.Event
}

// readPump decodes inbound events and dispatches them to the relay.
// When the transport closes, for any reason, the connection is
// disconnected from the relay; that closes the send queue and stops
// writePump.
func (c *conn) readPump() {
	defer func() {
		c.relay.Disconnect(c.id)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev relay.Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithField("error", err).Debug("Read error")
			}
			return
		}
		c.dispatch(ev)
	}
}

func (c *conn) dispatch(ev relay.Event) {
	switch ev.Name {
	case relay.EventJoinRoom:
		if ev.Room == "" {
			c.sendError("room name required")
			return
		}
		if err := c.relay.Join(c.id, ev.Room); err != nil {
			c.sendError("join failed")
			c.log.WithFields(logrus.Fields{
				"room":  ev.Room,
				"error": err,
			}).Warn("Join failed")
		}

	case relay.EventSignal:
		if ev.Room == "" {
			c.sendError("room name required")
			return
		}
		if err := c.relay.Signal(c.id, ev.Room, ev.Data); err != nil {
			if errors.Is(err, relay.ErrNotAMember) {
				c.sendError("join the room before signaling")
				return
			}
			c.log.WithFields(logrus.Fields{
				"room":  ev.Room,
				"error": err,
			}).Warn("Signal failed")
		}

	default:
		c.sendError("unknown event")
	}
}

// sendError reports a client mistake without tearing down the
// connection. Only called from readPump, so the queue cannot have been
// closed underneath us.
func (c *conn) sendError(msg string) {
	select {
	case c.send <- relay.Event{Name: relay.EventError, Error: msg}:
	default:
	}
}

// writePump encodes queued events to the WebSocket and keeps the
// connection alive with pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				c.log.WithField("error", err).Debug("Write error")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
