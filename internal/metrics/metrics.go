// Package metrics exposes Prometheus collectors for the upload and analysis
// lifecycle. All recording methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	assetTransitions *prometheus.CounterVec
	jobTransitions   *prometheus.CounterVec
	admissionDenied  *prometheus.CounterVec
	claimConflicts   prometheus.Counter
	reaperFailed     prometheus.Counter
	reaperDeleted    prometheus.Counter
	jobDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vqcc"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.assetTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_transitions_total",
			Help:      "Asset status transitions by target status",
		},
		[]string{"to"},
	)
	m.jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Analysis job status transitions by target status",
		},
		[]string{"to"},
	)
	m.admissionDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_admission_denied_total",
			Help:      "Upload initiations rejected by admission control",
		},
		[]string{"reason"},
	)
	m.claimConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_claim_conflicts_total",
		Help:      "Claims that lost because the job was no longer queued",
	})
	m.reaperFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaper_assets_failed_total",
		Help:      "Stuck uploads forced to FAILED by the reaper",
	})
	m.reaperDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaper_objects_deleted_total",
		Help:      "Storage objects removed by the reaper",
	})
	m.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_job_duration_seconds",
			Help:      "Time a worker spent on one job, by outcome",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(
		m.assetTransitions,
		m.jobTransitions,
		m.admissionDenied,
		m.claimConflicts,
		m.reaperFailed,
		m.reaperDeleted,
		m.jobDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AssetTransition(to string) {
	if m == nil {
		return
	}
	m.assetTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) JobTransition(to string) {
	if m == nil {
		return
	}
	m.jobTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) AdmissionDenied(reason string) {
	if m == nil {
		return
	}
	m.admissionDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) ClaimConflict() {
	if m == nil {
		return
	}
	m.claimConflicts.Inc()
}

func (m *Metrics) ReaperSwept(failed, deleted int) {
	if m == nil {
		return
	}
	m.reaperFailed.Add(float64(failed))
	m.reaperDeleted.Add(float64(deleted))
}

func (m *Metrics) JobProcessed(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
