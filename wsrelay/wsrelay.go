// Package wsrelay is a narrow, optional streaming transport for watching
// a chat-response edge's messages arrive live, outside the scheduler's
// core event loop entirely (spec.md's embedded-server/streaming transport
// is a Non-goal for the runtime itself; this is an external adapter a
// caller can wire in if it wants one, not something run.Runner depends
// on). Grounded on the shape a cannoli-desktop-style live UI would need:
// one hub broadcasting every accepted connection the same JSON event.
package wsrelay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// Event is one broadcastable unit: a chat message delivered by a
// chat-response edge, or a node/edge/group status transition (the same
// shape visualize.SpanEvent observes, kept separate here so this package
// has no dependency on visualize).
type Event struct {
	Kind    string `json:"kind"` // "message" or "status"
	ID      string `json:"id"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Hub accepts websocket clients and broadcasts every Event to all of them.
// A client whose write fails is dropped. Writes go to clients one at a
// time, so a slow client delays the ones after it.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// Accept upgrades r to a websocket connection and registers it for
// broadcasts until the client disconnects or a write to it fails. The
// connection outlives the handler: its read loop does not use r.Context(),
// which net/http cancels when the handler returns.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
		}
	}()

	return nil
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")
}

// Broadcast sends ev to every currently-connected client as JSON.
func (h *Hub) Broadcast(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			h.drop(c)
		}
	}
	return nil
}

// ClientCount returns the number of currently-connected clients, mostly
// useful for tests and health checks.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
