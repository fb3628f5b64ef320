// Package ws connects WebSocket clients to the signaling relay.
package ws

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/studysignal/studyroomd/pkg/relay"
)

// Handler upgrades HTTP requests and admits the resulting connections.
type Handler struct {
	log      *logrus.Logger
	relay    *relay.Relay
	upgrader websocket.Upgrader
}

func NewHandler(log *logrus.Logger, r *relay.Relay, allowedOrigins []string) *Handler {
	policy := newOriginPolicy(allowedOrigins)
	h := &Handler{log: log, relay: r}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			if policy.check(req) {
				return true
			}
			log.WithField("origin", req.Header.Get("Origin")).Warn("Blocked connection from disallowed origin")
			return false
		},
	}
	return h
}

// ServeHTTP verifies the handshake token, and only then upgrades. A bad
// token gets 401 and no connection is ever created.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	send := make(chan relay.Event, sendQueueSize)
	rc := &relay.Conn{ID: uuid.NewString(), Send: send}

	if err := h.relay.Admit(rc, handshakeToken(r)); err != nil {
		h.log.WithFields(logrus.Fields{
			"remote": r.RemoteAddr,
			"error":  err,
		}).Info("Connection refused")
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.relay.Disconnect(rc.ID)
		h.log.WithField("error", err).Error("WebSocket upgrade failed")
		return
	}

	c := &conn{
		log:   h.log.WithField("conn", rc.ID),
		relay: h.relay,
		id:    rc.ID,
		ws:    wsConn,
		send:  send,
	}
	go c.writePump()
	go c.readPump()
}

// handshakeToken extracts the bearer token from the Authorization
// header, falling back to the token query parameter for browser
// WebSocket clients that cannot set headers.
func handshakeToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
