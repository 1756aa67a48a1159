// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package updates

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Engine's counters, registered against a caller-supplied
// (possibly nil) *prometheus.Registry, same discipline as internal/sender's
// metrics.
type metrics struct {
	gaps prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		gaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtproto_updates_gaps_total",
			Help: "Number of pts/qts/channel-pts gaps detected; each triggers a getDifference/getChannelDifference resync.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.gaps)
	}
	return m
}
