package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Chan) Event {
	t.Helper()
	select {
	case ev, ok := <-c.C():
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishFansOut(t *testing.T) {
	h := New()
	a, b := NewChan("a", 4), NewChan("b", 4)
	h.Register(a)
	h.Register(b)

	ev := h.Publish(Event{Kind: KindAddress, Address: "10.0.0.5"})
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.Time.IsZero())

	assert.Equal(t, ev, recv(t, a))
	assert.Equal(t, ev, recv(t, b))
}

func TestRegisterReplaysLatestPerKind(t *testing.T) {
	h := New()
	h.Publish(Event{Kind: KindHistory, Entries: []string{"old"}})
	h.Publish(Event{Kind: KindHistory, Entries: []string{"new", "old"}})
	h.Publish(Event{Kind: KindAddress, Address: "10.0.0.9"})

	c := NewChan("late", 4)
	h.Register(c)

	first := recv(t, c)
	second := recv(t, c)
	assert.Equal(t, KindAddress, first.Kind)
	assert.Equal(t, KindHistory, second.Kind)
	assert.Equal(t, []string{"new", "old"}, second.Entries)
	assert.Empty(t, c.C())
}

func TestPublishCopiesEntries(t *testing.T) {
	h := New()
	entries := []string{"a", "b"}
	h.Publish(Event{Kind: KindHistory, Entries: entries})
	entries[0] = "mutated"

	c := NewChan("late", 1)
	h.Register(c)
	assert.Equal(t, []string{"a", "b"}, recv(t, c).Entries)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h := New()
	c := NewChan("c", 4)
	h.Register(c)
	h.Unregister(c)
	h.Publish(Event{Kind: KindAddress})

	assert.Empty(t, c.C())
	assert.Equal(t, 0, h.Len())
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	h := New()
	c := NewChan("slow", 1)
	h.Register(c)

	done := make(chan struct{})
	go func() {
		for range 10 {
			h.Publish(Event{Kind: KindHistory})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, c.C(), 1)
}

func TestCloseClosesSubscribers(t *testing.T) {
	h := New()
	c := NewChan("c", 1)
	h.Register(c)
	h.Close()
	h.Close()

	_, ok := <-c.C()
	assert.False(t, ok)

	h.Publish(Event{Kind: KindAddress})
	late := NewChan("late", 1)
	h.Register(late)
	_, ok = <-late.C()
	assert.False(t, ok, "register after close should close the subscriber")
}

func TestConcurrentPublishAndClose(t *testing.T) {
	h := New()
	c := NewChan("c", 64)
	h.Register(c)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				h.Publish(Event{Kind: KindHistory})
			}
		}()
	}
	h.Close()
	wg.Wait()
}
