// Package sync fans mutations out to a user's live connections over
// websockets. The originating connection never receives its own change
// back; everyone else sharing the workspace does.
package sync

import (
	"log/slog"
	gosync "sync"

	"github.com/alexanderramin/gridboard/internal/protocol"
)

// Hub tracks live connections grouped by user. Broadcasts address one
// user's group, optionally narrowed to connections viewing one grid.
type Hub struct {
	logger *slog.Logger

	mu    gosync.Mutex
	users map[string]map[*Conn]bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, users: make(map[string]map[*Conn]bool)}
}

// Register adds a connection to its user's group.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.users[c.UserID]
	if !ok {
		group = make(map[*Conn]bool)
		h.users[c.UserID] = group
	}
	group[c] = true
	connectionsActive.Inc()
}

// Unregister removes a connection; empty groups are dropped.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.users[c.UserID]
	if !ok || !group[c] {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.users, c.UserID)
	}
	connectionsActive.Dec()
}

// Broadcast sends the envelope to every connection of the user except
// the originator. A non-empty gridID narrows delivery to connections
// currently viewing that grid (or none yet).
func (h *Hub) Broadcast(userID, gridID string, env protocol.Envelope, originID string) {
	env.Origin = originID

	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		if c.ID == originID {
			continue
		}
		if gridID != "" {
			if g := c.Grid(); g != "" && g != gridID {
				continue
			}
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.Send(env)
		broadcastsSent.Inc()
	}
}
