// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package resolve resolves a symbolic DC hostname to an IP address. Most
// sessions record a literal IP and never touch this package; it exists for
// the production convenience of pointing a DC entry at a hostname (a
// split-horizon proxy, a load balancer) instead.
package resolve

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// Resolver queries a DNS server directly via miekg/dns rather than going
// through the OS resolver, so a DC hostname lookup doesn't depend on
// whatever's in nsswitch.conf.
type Resolver struct {
	client *dns.Client
	server string
}

// NewResolver builds a Resolver that queries server (host:port, e.g.
// "1.1.1.1:53"). If server is empty, the system's configured resolvers
// (/etc/resolv.conf) are used.
func NewResolver(server string) (*Resolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil || len(conf.Servers) == 0 {
			return nil, fmt.Errorf("resolve: no server given and system resolvers unavailable: %v", err)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return &Resolver{client: new(dns.Client), server: server}, nil
}

// ResolveHost returns host unchanged (as a single-element slice) if it's
// already a literal IP, else performs an A-record lookup.
func (r *Resolver) ResolveHost(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)

	in, _, err := r.client.Exchange(m, r.server)
	if err != nil {
		return nil, fmt.Errorf("resolve: query %s: %w", host, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("resolve: %s: dns rcode %d", host, in.Rcode)
	}

	var ips []net.IP
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve: %s: no A records", host)
	}
	return ips, nil
}
