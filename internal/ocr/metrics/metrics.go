package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the submission and reconciliation paths.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Uploads          *prometheus.CounterVec
	UploadDuration   prometheus.Histogram
	UploadsInFlight  prometheus.Gauge
	StatusUpdates    *prometheus.CounterVec
	StatusQueries    *prometheus.CounterVec
	TransientErrors  *prometheus.CounterVec
	Reprocessed      prometheus.Counter
	PullOnlyConsumer prometheus.Gauge
}

// New registers all OCR metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_ocr_uploads_total",
			Help: "Document uploads by outcome (success, cached, failed, reprocessed)",
		}, []string{"outcome"}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgen_ocr_upload_duration_seconds",
			Help:    "Duration of upload calls to the OCR service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		UploadsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docgen_ocr_uploads_in_flight",
			Help: "Descriptors currently being submitted",
		}),
		StatusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_ocr_status_updates_total",
			Help: "Inbound status updates by delivery path and merge outcome",
		}, []string{"source", "outcome"}),
		StatusQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_ocr_status_queries_total",
			Help: "Pull-path status queries by result (ok, transient, failed)",
		}, []string{"result"}),
		TransientErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docgen_ocr_transient_errors_total",
			Help: "Transient network errors absorbed by the reconciler",
		}, []string{"op"}),
		Reprocessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docgen_ocr_reprocess_requested_total",
			Help: "Remote ids sent for batch reprocessing",
		}),
		PullOnlyConsumer: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docgen_ocr_pull_only_consumers",
			Help: "Reconciler consumers running without the push path",
		}),
	}
}

// ObserveUpload records an upload call's outcome and duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveUpload(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	m.UploadDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementUploadsInFlight() {
	if m == nil {
		return
	}
	m.UploadsInFlight.Inc()
}

func (m *Metrics) DecrementUploadsInFlight() {
	if m == nil {
		return
	}
	m.UploadsInFlight.Dec()
}

// IncrementStatusUpdate records a merged inbound update.
func (m *Metrics) IncrementStatusUpdate(source, outcome string) {
	if m == nil {
		return
	}
	m.StatusUpdates.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncrementStatusQuery(result string) {
	if m == nil {
		return
	}
	m.StatusQueries.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementTransientError(op string) {
	if m == nil {
		return
	}
	m.TransientErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) AddReprocessed(n int) {
	if m == nil {
		return
	}
	m.Reprocessed.Add(float64(n))
}

// SetPullOnly tracks consumers that degraded to pull-only operation.
func (m *Metrics) SetPullOnly(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.PullOnlyConsumer.Inc()
		return
	}
	m.PullOnlyConsumer.Dec()
}
