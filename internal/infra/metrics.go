package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors exported by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	uploads        *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadBytes    *prometheus.CounterVec
	parts          *prometheus.CounterVec
	ingestions     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Subsystem: "objectstore",
			Name:      "uploads_total",
			Help:      "Object store uploads by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "campaign",
			Subsystem: "objectstore",
			Name:      "upload_duration_seconds",
			Help:      "Wall time of object store uploads.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"strategy"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Subsystem: "objectstore",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes acknowledged by the object store.",
		}, []string{"strategy"}),
		parts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Subsystem: "objectstore",
			Name:      "multipart_parts_total",
			Help:      "Multipart part uploads by outcome.",
		}, []string{"outcome"}),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Campaign ingestion requests by final stage and outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.uploads, m.uploadDuration, m.uploadBytes, m.parts, m.ingestions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveUpload records one finished upload.
func (m *Metrics) ObserveUpload(strategy, outcome string, bytes int64, d time.Duration) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(strategy, outcome).Inc()
	m.uploadDuration.WithLabelValues(strategy).Observe(d.Seconds())
	if outcome == "ok" {
		m.uploadBytes.WithLabelValues(strategy).Add(float64(bytes))
	}
}

// ObservePart records one multipart part upload.
func (m *Metrics) ObservePart(outcome string) {
	if m == nil {
		return
	}
	m.parts.WithLabelValues(outcome).Inc()
}

// ObserveIngestion records the outcome of one ingestion request.
func (m *Metrics) ObserveIngestion(outcome string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(outcome).Inc()
}
