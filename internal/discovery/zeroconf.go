package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// ZeroconfRegistrar publishes through grandcat/zeroconf.
type ZeroconfRegistrar struct {
	// Name is appended to InstancePrefix. Defaults to the hostname.
	Name string
	// Description goes into the desc TXT record.
	Description string
}

func (z ZeroconfRegistrar) instance() string {
	name := z.Name
	if name == "" {
		name = hostname()
	}
	return InstancePrefix + "-" + name
}

func (z ZeroconfRegistrar) Register(ip netip.Addr, port int) (Registration, error) {
	desc := z.Description
	if desc == "" {
		desc = "clipboard sync"
	}
	text := []string{"desc=" + desc, "path=" + Path}

	var ifaces []net.Interface
	if iface := interfaceFor(ip); iface != nil {
		ifaces = []net.Interface{*iface}
	}

	srv, err := zeroconf.RegisterProxy(
		z.instance(),
		ServiceType,
		Domain,
		port,
		hostname()+"."+Domain,
		[]string{ip.String()},
		text,
		ifaces,
	)
	if err != nil {
		return nil, err
	}
	return zeroconfRegistration{srv}, nil
}

type zeroconfRegistration struct {
	srv *zeroconf.Server
}

func (r zeroconfRegistration) Shutdown() error {
	r.srv.Shutdown()
	return nil
}

// interfaceFor returns the interface carrying ip, or nil to let zeroconf
// use every multicast interface.
func interfaceFor(ip netip.Addr) *net.Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if got, ok := netip.AddrFromSlice(ipnet.IP); ok && got.Unmap() == ip {
				return &iface
			}
		}
	}
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "clipbridge"
	}
	// mDNS host labels must not carry a domain.
	h, _, _ = strings.Cut(h, ".")
	return h
}

// Service is an advertised clipboard endpoint found by Browse.
type Service struct {
	Instance string
	Host     string
	Addr     netip.AddrPort
	Text     []string
}

// URL returns the endpoint's base URL.
func (s Service) URL() string { return "http://" + s.Addr.String() }

// Browse listens for advertisements for up to timeout and returns the
// ones whose instance name carries InstancePrefix, sorted by instance.
func Browse(ctx context.Context, timeout time.Duration) ([]Service, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	seen := make(map[string]bool)
	var out []Service
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return sortServices(out), nil
			}
			if s, ok := fromEntry(e); ok && !seen[s.Instance] {
				seen[s.Instance] = true
				out = append(out, s)
			}
		case <-ctx.Done():
			return sortServices(out), nil
		}
	}
}

func fromEntry(e *zeroconf.ServiceEntry) (Service, bool) {
	if e == nil || !strings.Contains(e.Instance, InstancePrefix) || len(e.AddrIPv4) == 0 {
		return Service{}, false
	}
	ip, ok := netip.AddrFromSlice(e.AddrIPv4[0])
	if !ok {
		return Service{}, false
	}
	return Service{
		Instance: e.Instance,
		Host:     e.HostName,
		Addr:     netip.AddrPortFrom(ip.Unmap(), uint16(e.Port)),
		Text:     e.Text,
	}, true
}

func sortServices(s []Service) []Service {
	slices.SortFunc(s, func(a, b Service) int { return strings.Compare(a.Instance, b.Instance) })
	return s
}
