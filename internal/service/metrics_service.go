package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Enrollment outcome labels.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeConflict = "conflict"
	outcomeFailed   = "failed"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	enrollmentOutcomes *prometheus.CounterVec
	enrollmentDuration *prometheus.HistogramVec
	conflictRetries    *prometheus.CounterVec
	counterDrift       *prometheus.GaugeVec
	reconcileTotal     *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	enrollmentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_actions_total",
		Help: "Enroll and drop actions by outcome and reason code",
	}, []string{"action", "outcome", "reason"})

	enrollmentDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "enrollment_action_duration_seconds",
		Help:    "Duration of enroll and drop actions including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	conflictRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_conflict_retries_total",
		Help: "Transactions retried after an integrity conflict",
	}, []string{"action"})

	counterDrift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "offering_counter_drift",
		Help: "Difference between the cached enrollment counter and the ledger at last reconciliation",
	}, []string{"offering_id"})

	reconcileTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offering_reconciliations_total",
		Help: "Counter reconciliations by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		enrollmentOutcomes, enrollmentDuration, conflictRetries, counterDrift, reconcileTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		enrollmentOutcomes: enrollmentOutcomes,
		enrollmentDuration: enrollmentDuration,
		conflictRetries:    conflictRetries,
		counterDrift:       counterDrift,
		reconcileTotal:     reconcileTotal,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveEnrollmentAction counts one enroll or drop outcome. reason is empty for accepted actions.
func (m *MetricsService) ObserveEnrollmentAction(action, outcome, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.enrollmentOutcomes.WithLabelValues(action, outcome, reason).Inc()
	m.enrollmentDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// IncConflictRetry counts a transaction retried after a conflict.
func (m *MetricsService) IncConflictRetry(action string) {
	if m == nil {
		return
	}
	m.conflictRetries.WithLabelValues(action).Inc()
}

// ObserveCounterDrift publishes the drift found for an offering.
func (m *MetricsService) ObserveCounterDrift(offeringID string, drift int, repaired bool) {
	if m == nil {
		return
	}
	m.counterDrift.WithLabelValues(offeringID).Set(float64(drift))
	result := "clean"
	if repaired {
		result = "repaired"
	}
	m.reconcileTotal.WithLabelValues(result).Inc()
}

// IncReconcileFailure counts a reconciliation that could not complete.
func (m *MetricsService) IncReconcileFailure() {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues("failed").Inc()
}
