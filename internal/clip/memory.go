package clip

import (
	"context"
	"sync"
)

// Memory is an in-process clipboard. It backs --clipboard=memory on hosts
// where the daemon should relay text without touching a desktop session.
type Memory struct {
	mu       sync.Mutex
	text     string
	watchers []chan string
}

// NewMemory returns an empty Memory device.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	m.text = text
	watchers := m.watchers
	m.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- text:
		default:
		}
	}
	return nil
}

func (m *Memory) Changes(ctx context.Context) <-chan string {
	ch := make(chan string, 1)
	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, w := range m.watchers {
			if w == ch {
				m.watchers = append(m.watchers[:i:i], m.watchers[i+1:]...)
				break
			}
		}
	}()
	return ch
}

func (m *Memory) Close() {}
