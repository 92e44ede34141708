package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Event is a single broadcast state change.
//
// ID is derived from the type and a millisecond timestamp, so two events of
// the same type inside one millisecond share an id. Consumers must order by
// arrival, never by id.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

const subscriberBuffer = 256

// Hub is an in-memory pub/sub with a bounded history ring.
//
// Publish never blocks on a slow consumer: a subscriber whose channel is
// full is dropped from the registry and its channel closed. Publisher
// liveness wins over delivery completeness; a dropped subscriber must
// re-subscribe.
type Hub struct {
	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]chan Event
	nextSubID int
}

// NewHub creates a hub with history capacity for late readers.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 500
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish appends the event to history and offers it to every subscriber.
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	now := time.Now().UTC()
	ev := Event{
		ID:   fmt.Sprintf("%s_%d", eventType, now.UnixMilli()),
		Type: eventType,
		At:   now,
		Data: payload,
	}

	h.mu.Lock()
	h.pushLocked(ev)
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Full queue: treat the subscriber as dead.
			delete(h.subs, id)
			close(ch)
		}
	}
	h.mu.Unlock()
}

// Subscribe registers a new bounded queue. The cancel func deregisters it;
// calling cancel after the hub already dropped the subscriber is a no-op.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// Recent returns the last n buffered events, oldest-first.
func (h *Hub) Recent(n int) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, 0, n)
	for i := h.size - n; i < h.size; i++ {
		out = append(out, h.ring[(h.start+i)%len(h.ring)])
	}
	return out
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = ev
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
