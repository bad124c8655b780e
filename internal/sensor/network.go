package sensor

import (
	"context"
	"net"
	"strings"
	"time"
)

// probeTimeout bounds every individual network probe. Probes are cheap and
// frequent; anything slower than this counts as down.
const probeTimeout = 2 * time.Second

// NetworkProbe checks raw IP reachability and DNS resolution as two distinct
// findings: a host can reach the internet by address while its resolver is
// broken, and the operator needs to know which one failed.
type NetworkProbe struct {
	targets  []string // "host:port" TCP endpoints, at least two
	dnsNames []string // names to resolve, e.g. "debian.org"

	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	lookupHost  func(ctx context.Context, host string) ([]string, error)
}

// NewNetworkProbe returns a probe over the given TCP endpoints and DNS names.
func NewNetworkProbe(targets, dnsNames []string) *NetworkProbe {
	var dialer net.Dialer
	var resolver net.Resolver
	return &NetworkProbe{
		targets:     targets,
		dnsNames:    dnsNames,
		dialContext: dialer.DialContext,
		lookupHost:  resolver.LookupHost,
	}
}

// Reachability probes every configured endpoint and reports failure only if
// all of them are unreachable; a single dead endpoint is the endpoint's
// problem, not ours. Value is 0 when connectivity is up, 1 when it is down.
func (p *NetworkProbe) Reachability(ctx context.Context) Reading {
	r := Reading{Kind: KindNetwork, Unit: "status", Timestamp: time.Now()}
	if len(p.targets) == 0 {
		r.Unavailable = true
		return r
	}

	var failed []string
	for _, target := range p.targets {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		conn, err := p.dialContext(probeCtx, "tcp", target)
		cancel()
		if err != nil {
			failed = append(failed, target)
			continue
		}
		_ = conn.Close()
	}

	if len(failed) == len(p.targets) {
		r.Value = 1
		r.Detail = "all endpoints unreachable: " + strings.Join(failed, ", ")
	} else if len(failed) > 0 {
		r.Detail = "degraded, unreachable: " + strings.Join(failed, ", ")
	}
	return r
}

// Resolution checks that the configured names resolve. Value is 0 when all
// lookups succeed, 1 when any fails; DNS is all-or-nothing from the
// operator's point of view since a flaky resolver breaks every service.
func (p *NetworkProbe) Resolution(ctx context.Context) Reading {
	r := Reading{Kind: KindDNS, Unit: "status", Timestamp: time.Now()}
	if len(p.dnsNames) == 0 {
		r.Unavailable = true
		return r
	}

	var failed []string
	for _, name := range p.dnsNames {
		lookupCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := p.lookupHost(lookupCtx, name)
		cancel()
		if err != nil {
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		r.Value = 1
		r.Detail = "failed lookups: " + strings.Join(failed, ", ")
	}
	return r
}
