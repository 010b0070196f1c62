// Package netwatch follows the host's routable IPv4 address and asks for a
// restart when it changes. Probe failures read as loopback and never count
// as a change, so a flapping link cannot trigger a restart on its own.
package netwatch

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"go.klb.dev/clipbridge/internal/clock"
	"go.klb.dev/clipbridge/internal/lifecycle"
)

const (
	Interval = 1 * time.Second
	Debounce = 3 * time.Second
)

// Phase is the monitor's position in its state machine.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseStable
	PhaseChanging
	PhaseRestarting
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseStable:
		return "stable"
	case PhaseChanging:
		return "changing"
	case PhaseRestarting:
		return "restarting"
	}
	return "unknown"
}

// Decision is what a single observation calls for.
type Decision int

const (
	DecisionNone Decision = iota
	// DecisionInitialized: first routable address seen.
	DecisionInitialized
	// DecisionChanged: routable address differs from the last known one.
	DecisionChanged
)

// Restarter is implemented by lifecycle.Controller.
type Restarter interface {
	Restart(ctx context.Context, cause lifecycle.Cause) (bool, error)
}

// Config wires a Monitor. Zero durations take Interval and Debounce.
type Config struct {
	Prober    Prober
	Clock     clock.Clock
	Interval  time.Duration
	Debounce  time.Duration
	Restarter Restarter
	// Stopping is polled every cycle; Run returns once it reports true.
	Stopping func() bool
	// OnInitialized runs once with the first routable address.
	OnInitialized func(addr netip.Addr)
}

// Monitor is driven from a single goroutine. It is not safe for
// concurrent use.
type Monitor struct {
	cfg       Config
	phase     Phase
	lastKnown netip.Addr
	pending   netip.Addr
}

// New returns a Monitor in PhaseUninitialized.
func New(cfg Config) *Monitor {
	if cfg.Prober == nil {
		cfg.Prober = UDPProber{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Interval == 0 {
		cfg.Interval = Interval
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = Debounce
	}
	if cfg.Stopping == nil {
		cfg.Stopping = func() bool { return false }
	}
	return &Monitor{cfg: cfg}
}

// Phase returns the current phase.
func (m *Monitor) Phase() Phase { return m.phase }

// LastKnown returns the last routable address, zero until initialized.
func (m *Monitor) LastKnown() netip.Addr { return m.lastKnown }

// Observe feeds one sample through the state machine.
func (m *Monitor) Observe(addr netip.Addr) Decision {
	switch m.phase {
	case PhaseUninitialized:
		if !routable(addr) {
			return DecisionNone
		}
		m.lastKnown = addr
		m.phase = PhaseStable
		return DecisionInitialized

	case PhaseStable:
		if !routable(addr) || addr == m.lastKnown {
			return DecisionNone
		}
		m.pending = addr
		m.phase = PhaseChanging
		return DecisionChanged
	}
	return DecisionNone
}

// resolve settles PhaseChanging once the restart attempt is known.
// A refused restart adopts the new address so it is not re-reported
// every cycle.
func (m *Monitor) resolve(claimed bool) {
	if m.phase != PhaseChanging {
		return
	}
	if claimed {
		m.phase = PhaseRestarting
		return
	}
	m.lastKnown = m.pending
	m.phase = PhaseStable
}

// Step samples once and acts on the result. It reports true when a
// restart was claimed and the monitor must stop.
func (m *Monitor) Step(ctx context.Context) bool {
	addr := Sample(ctx, m.cfg.Prober)

	switch m.Observe(addr) {
	case DecisionInitialized:
		slog.Info("routable address found", "addr", addr)
		if m.cfg.OnInitialized != nil {
			m.cfg.OnInitialized(addr)
		}

	case DecisionChanged:
		from := m.lastKnown
		slog.Warn("routable address changed", "from", from, "to", addr)
		claimed, err := m.cfg.Restarter.Restart(ctx, lifecycle.Cause{
			Reason: "address changed",
			From:   from,
			To:     addr,
		})
		if err != nil {
			slog.Error("restart failed", "err", err)
		}
		if !claimed {
			slog.Info("restart already claimed elsewhere, staying up", "addr", addr)
		}
		m.resolve(claimed)
		return claimed
	}
	return false
}

// Run samples every Interval, pausing Debounce after each sample, until
// ctx is done, the stop flag is raised or a restart is claimed.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Debug("address monitor started", "interval", m.cfg.Interval, "debounce", m.cfg.Debounce)
	for {
		if m.cfg.Stopping() {
			return nil
		}
		if !m.wait(ctx, m.cfg.Interval) {
			return ctx.Err()
		}
		if m.cfg.Stopping() {
			return nil
		}
		if m.Step(ctx) {
			return nil
		}
		if !m.wait(ctx, m.cfg.Debounce) {
			return ctx.Err()
		}
	}
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-m.cfg.Clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func routable(a netip.Addr) bool {
	return a.IsValid() && !a.IsLoopback() && !a.IsUnspecified()
}
