// Package notify pushes domain events to the owning user's open WebSocket
// connections.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"fintrack/internal/events"
	"fintrack/internal/logger"
	"fintrack/internal/metrics"
)

// Hub tracks connections per user. It implements events.Publisher.
type Hub struct {
	mu            sync.RWMutex
	clients       map[string]map[*Client]struct{}
	allowedOrigin string
}

// NewHub creates a hub. allowedOrigin restricts browser upgrades; empty or
// "*" accepts any origin.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		clients:       make(map[string]map[*Client]struct{}),
		allowedOrigin: allowedOrigin,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.WSConnections.Inc()
}

// unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	metrics.WSConnections.Dec()
}

// Publish sends e to every connection of e.UserID. A client whose buffer is
// full is disconnected instead of blocking the publisher.
func (h *Hub) Publish(_ context.Context, e events.Event) {
	// Cache bookkeeping events are not for clients.
	if e.Type == events.TransactionsChanged {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		logger.Named("notify").Errorw("Failed to encode event", "type", e.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[e.UserID] {
		select {
		case c.send <- payload:
		default:
			logger.Named("notify").Warnw("Dropping slow client", "user_id", c.userID)
			h.removeLocked(c)
		}
	}
}

// ConnectionCount returns how many connections userID has open.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}
