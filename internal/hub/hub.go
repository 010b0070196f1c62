// Package hub fans daemon state changes out to local subscribers.
// It is transport-agnostic: subscribers register, receive events through a
// non-blocking Send, and the core publishes without ever waiting on them.
package hub

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies what changed.
type Kind string

const (
	KindAddress    Kind = "address"
	KindHistory    Kind = "history"
	KindRestarting Kind = "restarting"
	KindStopping   Kind = "stopping"
)

// kinds is the replay order used when a subscriber registers.
var kinds = []Kind{KindAddress, KindHistory, KindRestarting, KindStopping}

// Event is a state change delivered to subscribers.
type Event struct {
	ID      string    `cbor:"id"`
	Kind    Kind      `cbor:"kind"`
	Time    time.Time `cbor:"time"`
	Address string    `cbor:"address,omitempty"`
	Entries []string  `cbor:"entries,omitempty"`
	Reason  string    `cbor:"reason,omitempty"`
}

// Subscriber is anything that can receive events from the hub.
type Subscriber interface {
	ID() string
	// Send delivers an event. Must be non-blocking.
	Send(Event)
}

// closer is implemented by subscribers that want to learn the hub shut down.
type closer interface {
	Close()
}

// Hub routes events to all registered subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	latest map[Kind]Event
	closed bool
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{
		subs:   make(map[string]Subscriber),
		latest: make(map[Kind]Event),
	}
}

// Register adds s and immediately delivers the latest event of every kind
// seen so far, so a late subscriber starts from the current state.
// Registering on a closed hub closes s straight away.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		if c, ok := s.(closer); ok {
			c.Close()
		}
		return
	}
	h.subs[s.ID()] = s
	var replay []Event
	for _, k := range kinds {
		if ev, ok := h.latest[k]; ok {
			replay = append(replay, ev)
		}
	}
	total := len(h.subs)
	h.mu.Unlock()

	slog.Debug("subscriber registered", "subscriber", s.ID(), "total", total)

	for _, ev := range replay {
		s.Send(ev)
	}
}

// Unregister removes s. It does not close it.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.ID())
	total := len(h.subs)
	h.mu.Unlock()

	slog.Debug("subscriber unregistered", "subscriber", s.ID(), "total", total)
}

// Publish stamps ev with an ID and time if missing, records it as the latest
// of its kind and fans it out. Publishing on a closed hub is a no-op.
func (h *Hub) Publish(ev Event) Event {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Entries != nil {
		ev.Entries = slices.Clone(ev.Entries)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ev
	}
	h.latest[ev.Kind] = ev
	targets := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.Send(ev)
	}
	return ev
}

// Len returns the number of registered subscribers. The daemon reports
// it as the number of attached viewers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscriber, closing those that support it. Further
// publishes are ignored. Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		if c, ok := s.(closer); ok {
			c.Close()
		}
	}
}
