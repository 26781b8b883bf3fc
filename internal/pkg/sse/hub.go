package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Event is one server-sent event addressed to the subscribers of Key.
type Event struct {
	Key   string
	Event string
	Data  interface{}
}

// WriteTo encodes e in the text/event-stream format.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s event: %w", e.Event, err)
	}
	n, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Event, data)
	return int64(n), err
}

// Hub fans events out to SSE subscribers grouped by key. A slow subscriber
// loses events rather than blocking the publisher.
type Hub struct {
	mu          sync.RWMutex
	buffer      int
	subscribers map[string]map[chan Event]struct{}
	dropped     uint64
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		buffer:      buffer,
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a subscriber for key and returns its event channel and
// a cleanup function. Cleanup closes the channel and may be called more than once.
func (h *Hub) Subscribe(key string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.subscribers[key] == nil {
		h.subscribers[key] = make(map[chan Event]struct{})
	}
	h.subscribers[key][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subscribers[key][ch]; !ok {
				return
			}
			delete(h.subscribers[key], ch)
			close(ch)
			if len(h.subscribers[key]) == 0 {
				delete(h.subscribers, key)
			}
		})
	}

	return ch, cleanup
}

// Publish sends event to every subscriber of event.Key.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers[event.Key] {
		select {
		case ch <- event:
		default:
			h.dropped++
		}
	}
}

// SubscriberCount returns the number of active subscribers for key
func (h *Hub) SubscriberCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[key])
}

// Dropped returns how many events were discarded because a subscriber was full.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(h.subscribers, key)
	}
}
