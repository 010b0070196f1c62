// Package tracker mirrors copies made on the daemon's host into the
// history, so the phone sees them too. It is off unless --track-local is
// given.
package tracker

import (
	"context"
	"log/slog"

	"go.klb.dev/clipbridge/internal/logging"
)

// Source delivers the clipboard text each time it changes.
type Source interface {
	Name() string
	Changes(ctx context.Context) <-chan string
}

// Recorder is implemented by history.Store.
type Recorder interface {
	Add(text string) bool
}

// Tracker owns the watch loop.
type Tracker struct {
	src      Source
	rec      Recorder
	stopping func() bool
}

// New returns a Tracker. stopping may be nil.
func New(src Source, rec Recorder, stopping func() bool) *Tracker {
	if stopping == nil {
		stopping = func() bool { return false }
	}
	return &Tracker{src: src, rec: rec, stopping: stopping}
}

// Run records every change until ctx is done, the source closes its
// channel or the stop flag is raised. Blocks; call in a goroutine.
func (t *Tracker) Run(ctx context.Context) {
	ch := t.src.Changes(ctx)
	if ch == nil {
		slog.Warn("clipboard change notification unavailable, not tracking host copies", "device", t.src.Name())
		return
	}
	slog.Info("tracking host clipboard", "device", t.src.Name())

	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-ch:
			if !ok || t.stopping() {
				return
			}
			if t.rec.Add(text) {
				slog.Debug("host copy recorded", "bytes", len(text), "fingerprint", logging.Fingerprint(text))
			}
		}
	}
}
