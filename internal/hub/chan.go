package hub

import (
	"log/slog"
	"sync"
)

// Chan is a Subscriber backed by a buffered channel. Events that do not fit
// are dropped; the consumer re-syncs from the next one since every history
// event carries the full list.
type Chan struct {
	id   string
	ch   chan Event
	once sync.Once
	mu   sync.Mutex
	done bool
}

// NewChan returns a channel subscriber with the given buffer size.
func NewChan(id string, buffer int) *Chan {
	return &Chan{id: id, ch: make(chan Event, buffer)}
}

func (c *Chan) ID() string { return c.id }

// C returns the receive side. It is closed by Close.
func (c *Chan) C() <-chan Event { return c.ch }

func (c *Chan) Send(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	select {
	case c.ch <- ev:
	default:
		slog.Warn("subscriber channel full, dropping event", "subscriber", c.id, "kind", ev.Kind)
	}
}

// Close closes C. Later sends are discarded.
func (c *Chan) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.done = true
		close(c.ch)
		c.mu.Unlock()
	})
}
