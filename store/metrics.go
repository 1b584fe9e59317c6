package store

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Entries is the number of entries in the store.
	Entries prometheus.Gauge

	// MergeTotal is the total number of reconciled entries, labelled by
	// result ('applied' or 'discarded').
	MergeTotal *prometheus.CounterVec

	// ExpiredTotal is the total number of entries removed by the expiry
	// sweeper.
	ExpiredTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "converge",
				Subsystem: "store",
				Name:      "entries",
				Help:      "Number of entries in the store",
			},
		),
		MergeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "store",
				Name:      "merge_total",
				Help:      "Total number of reconciled entries by result",
			},
			[]string{"result"},
		),
		ExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "converge",
				Subsystem: "store",
				Name:      "expired_total",
				Help:      "Total number of expired entries removed",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Entries,
		m.MergeTotal,
		m.ExpiredTotal,
	)
}
