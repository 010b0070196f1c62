// Package ipc locates and opens the daemon's local control socket, used
// by the CLI and the terminal UI to talk to a running "clipbridge serve".
//
// Socket path, first match wins:
//
//	$CLIPBRIDGE_SOCKET
//	$XDG_RUNTIME_DIR/clipbridge.sock   (Linux)
//	$TMPDIR/clipbridge.sock
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const socketName = "clipbridge.sock"

// SocketPath returns the control socket path.
func SocketPath() string {
	if s := os.Getenv("CLIPBRIDGE_SOCKET"); s != "" {
		return s
	}
	return filepath.Join(socketDir(), socketName)
}

// IsRunning reports whether something is accepting connections at path.
// It does a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// ErrInUse is returned by Listen when another daemon owns the socket.
var ErrInUse = errors.New("control socket in use")

// Listen opens the socket at path. A stale socket file left by a crashed
// run is removed; a live one is reported as ErrInUse.
func Listen(path string) (net.Listener, error) {
	if IsRunning(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrInUse)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("restricting socket permissions: %w", err)
	}
	return ln, nil
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("no clipbridge daemon at %s: %w", path, err)
	}
	return conn, nil
}
