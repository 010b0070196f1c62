package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
)

// DefaultTarget is dialed to learn which local address the kernel would
// route public traffic from. No packet is sent.
const DefaultTarget = "8.8.8.8:80"

// Loopback is reported whenever the routable address cannot be determined.
var Loopback = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// ProbeError reports a failed address probe.
type ProbeError struct {
	Target string
	Err    error
}

func (e *ProbeError) Error() string { return fmt.Sprintf("probe %s: %v", e.Target, e.Err) }
func (e *ProbeError) Unwrap() error { return e.Err }

// Prober finds the host's current routable IPv4 address.
type Prober interface {
	Probe(ctx context.Context) (netip.Addr, error)
}

// UDPProber connects a UDP socket to Target and reads back the local end.
type UDPProber struct {
	Target string
}

func (p UDPProber) Probe(ctx context.Context) (netip.Addr, error) {
	target := p.Target
	if target == "" {
		target = DefaultTarget
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", target)
	if err != nil {
		return netip.Addr{}, &ProbeError{Target: target, Err: err}
	}
	defer conn.Close()

	ap, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return netip.Addr{}, &ProbeError{Target: target, Err: err}
	}
	return ap.Addr().Unmap(), nil
}

// Sample probes once and collapses every failure to Loopback.
func Sample(ctx context.Context, p Prober) netip.Addr {
	addr, err := p.Probe(ctx)
	if err != nil || !addr.IsValid() {
		if err != nil {
			slog.Debug("address probe failed", "err", err)
		}
		return Loopback
	}
	return addr
}
