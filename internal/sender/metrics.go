// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package sender

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Sender's counters and gauges. They are registered
// against a caller-supplied registerer (newMetrics never touches the
// global default registerer) so an application embedding multiple senders,
// or none at all, stays in control of what gets exported.
type metrics struct {
	inflight         prometheus.Gauge
	floodWaits       prometheus.Counter
	retries          prometheus.Counter
	containerUnwraps prometheus.Counter
}

// newMetrics constructs and registers the Sender's metrics against reg. A
// nil reg is valid: the metrics are still created and updated, just never
// exported, which is what tests and callers that don't care about
// observability want.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mtproto_rpc_inflight",
			Help: "Number of RPC calls currently awaiting a result.",
		}),
		floodWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtproto_rpc_flood_waits_total",
			Help: "Number of FLOOD_WAIT/SLOWMODE_WAIT/FLOOD_PREMIUM_WAIT responses handled by sleeping and resending.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtproto_rpc_retries_total",
			Help: "Number of calls resent under a fresh msg_id (bad_server_salt or a resynchronizable bad_msg_notification).",
		}),
		containerUnwraps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtproto_container_unwraps_total",
			Help: "Number of msg_container frames unwrapped by the receive loop.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.inflight, m.floodWaits, m.retries, m.containerUnwraps)
	}
	return m
}
