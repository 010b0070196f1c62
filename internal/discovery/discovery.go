// Package discovery advertises the clipboard endpoint over multicast DNS
// service discovery and finds other advertisers on the local network.
package discovery

import (
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
)

const (
	// InstancePrefix is what clients look for in instance names.
	InstancePrefix = "ClipboardSyncServer"
	ServiceType    = "_http._tcp"
	Domain         = "local."
	Path           = "/clipboard"
)

// RegistrationError reports a failed advertisement.
type RegistrationError struct {
	Addr netip.AddrPort
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("advertise %s: %v", e.Addr, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Registration is a live advertisement.
type Registration interface {
	Shutdown() error
}

// Registrar publishes one advertisement bound to ip.
type Registrar interface {
	Register(ip netip.Addr, port int) (Registration, error)
}

// Lifecycle holds at most one Registration at a time.
type Lifecycle struct {
	registrar Registrar

	mu      sync.Mutex
	current Registration
	addr    netip.AddrPort
}

// NewLifecycle returns a Lifecycle with nothing registered.
func NewLifecycle(r Registrar) *Lifecycle {
	return &Lifecycle{registrar: r}
}

// Register advertises ip:port, replacing any existing advertisement.
func (l *Lifecycle) Register(ip netip.Addr, port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.unregisterLocked()

	ap := netip.AddrPortFrom(ip, uint16(port))
	reg, err := l.registrar.Register(ip, port)
	if err != nil {
		return &RegistrationError{Addr: ap, Err: err}
	}
	l.current = reg
	l.addr = ap
	slog.Info("service advertised", "addr", ap, "type", ServiceType)
	return nil
}

// Unregister withdraws the advertisement. Calling it with nothing
// registered is a no-op; shutdown errors are logged and dropped.
func (l *Lifecycle) Unregister() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unregisterLocked()
}

func (l *Lifecycle) unregisterLocked() {
	if l.current == nil {
		return
	}
	if err := l.current.Shutdown(); err != nil {
		slog.Warn("withdrawing advertisement", "addr", l.addr, "err", err)
	} else {
		slog.Info("service withdrawn", "addr", l.addr)
	}
	l.current = nil
	l.addr = netip.AddrPort{}
}

// Registered reports the advertised address, if any.
func (l *Lifecycle) Registered() (netip.AddrPort, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr, l.current != nil
}
