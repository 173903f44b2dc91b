package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	operations    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	loading       prometheus.Gauge
	dropped       prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_operations_total",
			Help: "Wallet operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_ledger_transitions_total",
			Help: "Ledger transitions applied, by transition.",
		}, []string{"transition"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_chain_notifications_total",
			Help: "Incoming transfer notifications by result.",
		}, []string{"result"}),
		loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walletd_loading",
			Help: "1 while a wallet lifecycle operation is running.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletd_events_dropped_total",
			Help: "Events not delivered to subscribers with a full buffer.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.transitions, m.notifications, m.loading, m.dropped)
	}
	return m
}

func (m *Metrics) operation(kind Kind, phase Phase) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(kind), string(phase)).Inc()
}

func (m *Metrics) transition(name string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) notification(applied bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if applied {
		result = "applied"
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) setLoading(on bool) {
	if m == nil {
		return
	}
	if on {
		m.loading.Set(1)
	} else {
		m.loading.Set(0)
	}
}

func (m *Metrics) eventDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
