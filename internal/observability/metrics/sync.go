package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncMetrics records refresh, upload and delete outcomes of the synchronizer.
type SyncMetrics struct {
	registry *prometheus.Registry
	service  string

	refreshTotal        *prometheus.CounterVec
	refreshDuration     *prometheus.HistogramVec
	collectionSize      prometheus.Gauge
	uploadTotal         *prometheus.CounterVec
	deleteTotal         *prometheus.CounterVec
	statusChangesTotal  prometheus.Counter
	backendRetriesTotal *prometheus.CounterVec
}

// NewSyncMetrics registers into registry, or into a private one when nil.
func NewSyncMetrics(service string, registry *prometheus.Registry) *SyncMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	constLabels := prometheus.Labels{"service": service}

	refreshTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docsync",
			Subsystem:   "sync",
			Name:        "refresh_total",
			Help:        "Total collection refreshes by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	refreshDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "docsync",
			Subsystem:   "sync",
			Name:        "refresh_duration_seconds",
			Help:        "Collection refresh duration in seconds by result.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	collectionSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docsync",
			Subsystem:   "sync",
			Name:        "collection_documents",
			Help:        "Number of documents in the last applied collection.",
			ConstLabels: constLabels,
		},
	)
	uploadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docsync",
			Subsystem:   "upload",
			Name:        "total",
			Help:        "Total uploads by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	deleteTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docsync",
			Subsystem:   "delete",
			Name:        "total",
			Help:        "Total deletes by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	statusChangesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "docsync",
			Subsystem:   "sync",
			Name:        "status_changes_total",
			Help:        "Total document status changes observed between refreshes.",
			ConstLabels: constLabels,
		},
	)
	backendRetriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docsync",
			Subsystem:   "backend",
			Name:        "retries_total",
			Help:        "Total retried outbound calls by operation.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	registry.MustRegister(refreshTotal, refreshDuration, collectionSize, uploadTotal, deleteTotal, statusChangesTotal, backendRetriesTotal)

	return &SyncMetrics{
		registry:            registry,
		service:             service,
		refreshTotal:        refreshTotal,
		refreshDuration:     refreshDuration,
		collectionSize:      collectionSize,
		uploadTotal:         uploadTotal,
		deleteTotal:         deleteTotal,
		statusChangesTotal:  statusChangesTotal,
		backendRetriesTotal: backendRetriesTotal,
	}
}

func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SyncMetrics) ObserveRefresh(result string, duration time.Duration, size int) {
	m.refreshTotal.WithLabelValues(result).Inc()
	m.refreshDuration.WithLabelValues(result).Observe(duration.Seconds())
	if result == "success" {
		m.collectionSize.Set(float64(size))
	}
}

func (m *SyncMetrics) ObserveUpload(result string) {
	m.uploadTotal.WithLabelValues(result).Inc()
}

func (m *SyncMetrics) ObserveDelete(result string) {
	m.deleteTotal.WithLabelValues(result).Inc()
}

func (m *SyncMetrics) ObserveStatusChanges(n int) {
	if n <= 0 {
		return
	}
	m.statusChangesTotal.Add(float64(n))
}

// ObserveRetry plugs into resilience.WithRetryHook.
func (m *SyncMetrics) ObserveRetry(operation string) {
	if operation == "" {
		operation = "unknown"
	}
	m.backendRetriesTotal.WithLabelValues(operation).Inc()
}
