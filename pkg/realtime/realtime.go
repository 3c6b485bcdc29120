// Package realtime fans out search state events to in-process listeners such
// as websocket sessions. Delivery is best effort: a listener whose buffer is
// full misses the event, the publisher never blocks.
package realtime

import (
	"sync"
	"time"
)

// Event kinds published by the search orchestrator.
const (
	KindLoading = "loading"
	KindResults = "results"
	KindFilters = "filters"
	KindDone    = "done"
	KindError   = "error"
	KindReset   = "reset"
	KindZoom    = "zoom"
)

// StateEvent describes one orchestrator state change. Session scopes the
// event so a shared hub can serve many orchestrators.
type StateEvent struct {
	Kind         string    `json:"kind"`
	Session      string    `json:"session,omitempty"`
	Generation   uint64    `json:"generation"`
	EntityType   string    `json:"entity_type,omitempty"`
	Filter       string    `json:"filter,omitempty"`
	Page         int       `json:"page,omitempty"`
	Sort         string    `json:"sort,omitempty"`
	IsLoading    bool      `json:"is_loading"`
	ResultsCount int       `json:"results_count,omitempty"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// Hub is a concurrency-safe in-memory fan-out dispatcher. Each listener
// receives events on its own buffered channel.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]listener
	nextID    uint64
	bufSize   int
}

type listener struct {
	session string
	ch      chan StateEvent
}

// NewHub creates a hub with the given per-listener buffer (32 when <= 0).
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]listener),
		bufSize:   bufSize,
	}
}

// Register adds a listener. A non-empty session restricts delivery to events
// of that session. Callers must Unregister the returned id.
func (h *Hub) Register(session string) (uint64, <-chan StateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan StateEvent, h.bufSize)
	h.listeners[id] = listener{session: session, ch: ch}
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(l.ch)
	}
}

// Publish delivers ev to every matching listener and reports how many
// listeners received it.
func (h *Hub) Publish(ev StateEvent) int {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, l := range h.listeners {
		if l.session != "" && l.session != ev.Session {
			continue
		}
		select {
		case l.ch <- ev:
			delivered++
		default:
			// slow listener
		}
	}
	return delivered
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
