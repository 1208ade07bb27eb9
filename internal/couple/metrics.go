package couple

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for couple validation. A nil *Metrics records nothing.
type Metrics struct {
	Starts  *prometheus.CounterVec
	Events  *prometheus.CounterVec
	Tracked prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Starts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_couple_validation_starts_total",
			Help: "Couple validation start calls by result (acknowledged, failed)",
		}, []string{"result"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_couple_validation_events_total",
			Help: "Couple validation events applied, by event name",
		}, []string{"event"}),
		Tracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docgen_couple_validation_tracked",
			Help: "Couples with validation state held in memory",
		}),
	}
}

func (m *Metrics) incStart(result string) {
	if m == nil {
		return
	}
	m.Starts.WithLabelValues(result).Inc()
}

func (m *Metrics) incEvent(name string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(name).Inc()
}

func (m *Metrics) setTracked(n int) {
	if m == nil {
		return
	}
	m.Tracked.Set(float64(n))
}
