// Package lifecycle owns the process-wide restart flag and the two ways
// the daemon leaves a running state: re-exec after an address change, and
// a manual quit.
package lifecycle

import (
	"net/netip"
	"sync/atomic"
)

// State is shared by every component that needs to know whether the daemon
// is on its way out. The restart flag is claimed once and never released.
type State struct {
	restarting atomic.Bool
	stopping   atomic.Bool
	addr       atomic.Pointer[netip.Addr]
}

// TryBeginRestart claims the restart flag. Exactly one caller ever
// gets true.
func (s *State) TryBeginRestart() bool {
	return s.restarting.CompareAndSwap(false, true)
}

// Restarting reports whether a restart or quit has been claimed.
func (s *State) Restarting() bool { return s.restarting.Load() }

// RequestStop sets the cooperative stop flag polled by background loops.
func (s *State) RequestStop() { s.stopping.Store(true) }

// Stopping reports whether RequestStop was called.
func (s *State) Stopping() bool { return s.stopping.Load() }

// SetAddress records the currently advertised address.
func (s *State) SetAddress(a netip.Addr) { s.addr.Store(&a) }

// Address returns the advertised address, or the zero Addr before the
// first routable sample.
func (s *State) Address() netip.Addr {
	if p := s.addr.Load(); p != nil {
		return *p
	}
	return netip.Addr{}
}
