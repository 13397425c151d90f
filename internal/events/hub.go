// Package events carries product lifecycle notifications between the
// registry core and its collaborators (websocket feed, cache invalidation,
// chain tailer). Delivery is best-effort: slow subscribers drop events
// rather than block a transition.
package events

import (
	"sync"
	"time"
)

// Type names a lifecycle notification.
type Type string

const (
	TypeProductCreated   Type = "product.created"
	TypeProductVerified  Type = "product.verified"
	TypeProductFinalized Type = "product.finalized"
)

// Event is a single lifecycle notification.
type Event struct {
	Type       Type      `json:"type"`
	ProductID  uint64    `json:"product_id"`
	Status     string    `json:"status"`
	Owner      string    `json:"owner,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher accepts lifecycle events.
type Publisher interface {
	Publish(ev Event)
}

// subscriberBuffer bounds each subscriber channel.
const subscriberBuffer = 64

// Hub fans events out to subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns its channel together
// with an unsubscribe function. The channel is closed on unsubscribe.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber that has buffer room.
func (h *Hub) Publish(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Discard is a Publisher that drops all events.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(Event) {}
