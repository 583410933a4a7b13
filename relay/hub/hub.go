// Package hub routes envelopes to the connections of the relay.
package hub

import (
	"sync"

	"telecall/types/message"
)

// QueueSize is the number of envelopes buffered per connection.
const QueueSize = 64

// Hub maps connection ids to their subscriptions.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// New creates a new hub.
func New() *Hub {
	return &Hub{
		subs: make(map[string]*Subscription),
	}
}

// Register creates the subscription of connectionID, replacing and closing
// a previous one.
func (h *Hub) Register(connectionID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.subs[connectionID]; ok {
		old.Close()
	}
	sub := NewSubscription(QueueSize)
	h.subs[connectionID] = sub
	return sub
}

// Unregister closes and removes the subscription of connectionID.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[connectionID]; ok {
		sub.Close()
		delete(h.subs, connectionID)
	}
}

// Send delivers env to connectionID. Envelopes sent to one connection keep
// their order. It reports false when the connection is unknown or closed.
func (h *Hub) Send(connectionID string, env message.Envelope) bool {
	h.mu.RLock()
	sub, ok := h.subs[connectionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return sub.Send(env)
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
