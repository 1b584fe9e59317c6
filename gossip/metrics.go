package gossip

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// RoundsTotal is the total number of initiated gossip cycles,
	// labelled by cycle ('push' or 'pull').
	RoundsTotal *prometheus.CounterVec

	// PeersContacted is the total number of per-peer exchanges initiated,
	// labelled by cycle.
	PeersContacted *prometheus.CounterVec

	// PeerFailures is the total number of per-peer exchanges that failed
	// or timed out, labelled by cycle.
	PeerFailures *prometheus.CounterVec

	// EntriesOutbound is the total number of entries sent to peers.
	EntriesOutbound prometheus.Counter

	// EntriesInbound is the total number of entries received from peers.
	EntriesInbound prometheus.Counter

	// ConnectionsInbound is the total number of accepted gossip
	// connections.
	ConnectionsInbound prometheus.Counter

	// MalformedInbound is the total number of inbound messages dropped as
	// malformed.
	MalformedInbound prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		RoundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "gossip",
				Name:      "rounds_total",
				Help:      "Total number of initiated gossip cycles",
			},
			[]string{"cycle"},
		),
		PeersContacted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "gossip",
				Name:      "peers_contacted_total",
				Help:      "Total number of per-peer exchanges initiated",
			},
			[]string{"cycle"},
		),
		PeerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "gossip",
				Name:      "peer_failures_total",
				Help:      "Total number of failed per-peer exchanges",
			},
			[]string{"cycle"},
		),
		EntriesOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "gossip",
				Name:      "entries_outbound_total",
				Help:      "Total number of entries sent to peers",
			},
		),
		EntriesInbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "gossip",
				Name:      "entries_inbound_total",
				Help:      "Total number of entries received from peers",
			},
		),
		ConnectionsInbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "gossip",
				Name:      "connections_inbound_total",
				Help:      "Total number of accepted gossip connections",
			},
		),
		MalformedInbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "gossip",
				Name:      "malformed_inbound_total",
				Help:      "Total number of inbound messages dropped as malformed",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.RoundsTotal,
		m.PeersContacted,
		m.PeerFailures,
		m.EntriesOutbound,
		m.EntriesInbound,
		m.ConnectionsInbound,
		m.MalformedInbound,
	)
}
