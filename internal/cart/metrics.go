package cart

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Mutations *prometheus.CounterVec
	Checkouts *prometheus.CounterVec
	Sessions  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_mutations_total",
				Help: "Committed cart mutations by operation",
			},
			[]string{"op"},
		),
		Checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_checkouts_total",
				Help: "Checkout attempts by result",
			},
			[]string{"result"},
		),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cart_sessions",
				Help: "Carts currently held in memory",
			},
		),
	}

	reg.MustRegister(m.Mutations, m.Checkouts, m.Sessions)
	return m
}

func (m *Metrics) observe(ch Change) {
	m.Mutations.WithLabelValues(string(ch.Op)).Inc()
}

func (m *Metrics) checkout(result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
}
