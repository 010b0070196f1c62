//go:build linux || darwin || windows

package clip

import (
	"context"
	"log/slog"

	"golang.design/x/clipboard"
)

type systemDevice struct{}

// newSystem initialises the platform clipboard, or returns a headless
// device when no display is available (a server without X11/Wayland, or
// a CGO_ENABLED=0 build). Init happens here rather than in init() so CLI
// sub-commands that never touch the clipboard don't log warnings.
func newSystem() Device {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return &headlessDevice{}
	}
	return &systemDevice{}
}

func (d *systemDevice) Name() string { return "system clipboard" }

func (d *systemDevice) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (d *systemDevice) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (d *systemDevice) Changes(ctx context.Context) <-chan string {
	raw := clipboard.Watch(ctx, clipboard.FmtText)
	out := make(chan string, 1)
	go func() {
		defer close(out)
		for b := range raw {
			select {
			case out <- string(b):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (d *systemDevice) Close() {}
