package tap

import (
	"sync"
	"sync/atomic"
)

// subscriber is one websocket client. send is closed when the hub drops it.
type subscriber struct {
	send chan []byte
}

// Hub fans events out to subscribers. A subscriber whose buffer is full
// misses the event rather than blocking the dispatch chain.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	buffer  int
	max     int
	closed  bool
	dropped atomic.Int64
}

// NewHub creates a hub with per-subscriber buffer size buffer, accepting at
// most maxSubs subscribers (0 means unlimited).
func NewHub(buffer, maxSubs int) *Hub {
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
		max:    maxSubs,
	}
}

// subscribe registers a new subscriber. It returns false when the hub is
// closed or full.
func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || (h.max > 0 && len(h.subs) >= h.max) {
		return nil, false
	}
	s := &subscriber{send: make(chan []byte, h.buffer)}
	h.subs[s] = struct{}{}
	return s, true
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// Publish queues data for every subscriber.
func (h *Hub) Publish(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events were not delivered to a slow subscriber.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}
