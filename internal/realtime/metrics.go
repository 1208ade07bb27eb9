package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks shared connections. A nil *Metrics records nothing.
type Metrics struct {
	Connections   *prometheus.GaugeVec
	Subscribers   *prometheus.GaugeVec
	DialFailures  *prometheus.CounterVec
	DroppedEvents *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docgen_realtime_connections",
			Help: "Open shared connections by namespace",
		}, []string{"namespace"}),
		Subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docgen_realtime_subscribers",
			Help: "Handles attached to shared connections by namespace",
		}, []string{"namespace"}),
		DialFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_realtime_dial_failures_total",
			Help: "Failed or short-circuited dials by namespace",
		}, []string{"namespace"}),
		DroppedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_realtime_dropped_events_total",
			Help: "Events dropped because a subscriber buffer was full",
		}, []string{"namespace"}),
	}
}

func (m *Metrics) setConnected(ns Namespace, open bool) {
	if m == nil {
		return
	}
	if open {
		m.Connections.WithLabelValues(string(ns)).Set(1)
		return
	}
	m.Connections.WithLabelValues(string(ns)).Set(0)
}

func (m *Metrics) setSubscribers(ns Namespace, n int) {
	if m == nil {
		return
	}
	m.Subscribers.WithLabelValues(string(ns)).Set(float64(n))
}

func (m *Metrics) incDialFailure(ns Namespace) {
	if m == nil {
		return
	}
	m.DialFailures.WithLabelValues(string(ns)).Inc()
}

func (m *Metrics) incDropped(ns Namespace) {
	if m == nil {
		return
	}
	m.DroppedEvents.WithLabelValues(string(ns)).Inc()
}
