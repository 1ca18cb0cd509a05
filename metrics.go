package office2png

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "office2png"

// metrics holds the pool and pipeline collectors. A nil *metrics is valid
// and records nothing, which is the default when no Registerer is given.
type metrics struct {
	workers   *prometheus.GaugeVec
	respawns  prometheus.Counter
	crashes   prometheus.Counter
	documents *prometheus.CounterVec
	pages     prometheus.Counter
	duration  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "workers",
			Help:      "Number of pool workers by state.",
		}, []string{"state"}),
		respawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "worker_respawns_total",
			Help:      "Workers replaced after a crash or recycle.",
		}),
		crashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "worker_crashes_total",
			Help:      "Workers released with a crash outcome.",
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "documents_total",
			Help:      "Documents processed, by terminal stage.",
		}, []string{"result"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_rendered_total",
			Help:      "PNG pages written.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
	}

	reg.MustRegister(m.workers, m.respawns, m.crashes, m.documents, m.pages, m.duration)
	return m
}

func (m *metrics) setWorkers(h PoolHealth) {
	if m == nil {
		return
	}
	m.workers.WithLabelValues(WorkerIdle.String()).Set(float64(h.Idle))
	m.workers.WithLabelValues(WorkerBusy.String()).Set(float64(h.Busy))
	m.workers.WithLabelValues(WorkerCrashed.String()).Set(float64(h.Crashed))
	m.workers.WithLabelValues(WorkerTerminating.String()).Set(float64(h.Terminating))
}

func (m *metrics) incRespawns() {
	if m != nil {
		m.respawns.Inc()
	}
}

func (m *metrics) incCrashes() {
	if m != nil {
		m.crashes.Inc()
	}
}

func (m *metrics) incDocuments(result Stage) {
	if m != nil {
		m.documents.WithLabelValues(result.String()).Inc()
	}
}

func (m *metrics) incPages() {
	if m != nil {
		m.pages.Inc()
	}
}

func (m *metrics) observeStage(stage Stage, seconds float64) {
	if m != nil {
		m.duration.WithLabelValues(stage.String()).Observe(seconds)
	}
}
