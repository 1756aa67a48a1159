// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package config holds connection configuration: the data-center endpoint
// table, environment/framing/device settings, and .env-based overrides.
package config

import "fmt"

// Environment partitions the DC endpoint table; a session file's recorded
// host must belong to the environment the runtime claims.
const (
	EnvironmentTest = "test"
	EnvironmentProd = "prod"
)

// DCEndpoint is one data-center's connection point.
type DCEndpoint struct {
	DCID        int32
	Environment string
	Host        string
	Port        int
}

// defaultDCEndpoints is the well-known public data-center table: three test
// DCs and five production DCs, all on port 443. Overridable per-entry via
// .env (see env.go) for operators who need to point at a proxy or a pinned
// IP.
var defaultDCEndpoints = []DCEndpoint{
	{DCID: 1, Environment: EnvironmentProd, Host: "149.154.175.50", Port: 443},
	{DCID: 2, Environment: EnvironmentProd, Host: "149.154.167.51", Port: 443},
	{DCID: 3, Environment: EnvironmentProd, Host: "149.154.175.100", Port: 443},
	{DCID: 4, Environment: EnvironmentProd, Host: "149.154.167.91", Port: 443},
	{DCID: 5, Environment: EnvironmentProd, Host: "91.108.56.149", Port: 443},
	{DCID: 1, Environment: EnvironmentTest, Host: "149.154.175.10", Port: 443},
	{DCID: 2, Environment: EnvironmentTest, Host: "149.154.167.40", Port: 443},
	{DCID: 3, Environment: EnvironmentTest, Host: "149.154.175.117", Port: 443},
}

// DCTable holds the resolved endpoint set, starting from the embedded
// defaults and mutable via Override for .env/flag-driven entries.
type DCTable struct {
	endpoints []DCEndpoint
}

// NewDCTable returns a table seeded with the embedded defaults.
func NewDCTable() *DCTable {
	t := &DCTable{endpoints: make([]DCEndpoint, len(defaultDCEndpoints))}
	copy(t.endpoints, defaultDCEndpoints)
	return t
}

// Override replaces (or adds, if absent) the endpoint for a given dc_id and
// environment.
func (t *DCTable) Override(e DCEndpoint) {
	for i := range t.endpoints {
		if t.endpoints[i].DCID == e.DCID && t.endpoints[i].Environment == e.Environment {
			t.endpoints[i] = e
			return
		}
	}
	t.endpoints = append(t.endpoints, e)
}

// Lookup returns the endpoint for a dc_id/environment pair.
func (t *DCTable) Lookup(dcID int32, environment string) (DCEndpoint, bool) {
	for _, e := range t.endpoints {
		if e.DCID == dcID && e.Environment == environment {
			return e, true
		}
	}
	return DCEndpoint{}, false
}

// EnvironmentOf reports which environment a host belongs to, if any, so a
// loaded session's recorded host can be checked against the runtime's
// claimed environment.
func (t *DCTable) EnvironmentOf(host string) (string, bool) {
	for _, e := range t.endpoints {
		if e.Host == host {
			return e.Environment, true
		}
	}
	return "", false
}

// CheckEnvironmentMatch returns a fatal configuration error if host is a
// known endpoint belonging to a different environment than claimed. An
// unrecognized host (e.g. a resolved symbolic name, or an operator-pinned
// proxy) is not an error here -- only a known cross-environment mismatch is.
func (t *DCTable) CheckEnvironmentMatch(host, claimedEnvironment string) error {
	env, found := t.EnvironmentOf(host)
	if !found {
		return nil
	}
	if env != claimedEnvironment {
		return fmt.Errorf("config: session host %s belongs to %q, runtime claims %q", host, env, claimedEnvironment)
	}
	return nil
}
