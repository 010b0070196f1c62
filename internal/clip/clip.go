// Package clip abstracts the host clipboard as a text slot. Build
// constraints select the implementation:
//
//	clip_system.go   Linux, macOS, Windows via golang.design/x/clipboard
//	clip_other.go    everything else, always headless
//
// The memory device is available everywhere and backs --clipboard=memory.
package clip

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects a Device implementation.
type Kind string

const (
	KindSystem Kind = "system"
	KindMemory Kind = "memory"
)

// ErrUnavailable is returned by every operation of the headless device.
var ErrUnavailable = errors.New("clipboard unavailable")

// DeviceError reports a failed clipboard read or write.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("clipboard %s: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// Device is the interface all clipboard implementations satisfy.
type Device interface {
	// Name returns a human-readable name for the device.
	Name() string

	// ReadText returns the current text content. An empty clipboard is
	// "", nil.
	ReadText() (string, error)

	// WriteText replaces the clipboard content.
	WriteText(text string) error

	// Changes delivers the new text each time the clipboard changes,
	// until ctx is done. Devices without change notification return a
	// channel that never fires.
	Changes(ctx context.Context) <-chan string

	// Close releases any resources held by the device.
	Close()
}

// New returns the device for kind. Unknown kinds fall back to the system
// clipboard.
func New(kind Kind) Device {
	if kind == KindMemory {
		return NewMemory()
	}
	return newSystem()
}
