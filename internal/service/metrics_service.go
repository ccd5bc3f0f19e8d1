package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and coverage lifecycle metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	accepts         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	offers          *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	ledgerAmount    prometheus.Counter
}

// NewMetricsService registers the collectors.
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	accepts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_accepts_total",
		Help: "Accept attempts by outcome",
	}, []string{"outcome"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_transitions_total",
		Help: "Opening status transitions",
	}, []string{"from", "to", "reason"})

	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_offers_total",
		Help: "Offers made to candidates",
	}, []string{"mode"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_notifications_total",
		Help: "Offer notifications by result",
	}, []string{"result"})

	ledgerAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coverage_ledger_amount_total",
		Help: "Sum of amounts recorded in the earnings ledger",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		accepts, transitions, offers, notifications, ledgerAmount, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		accepts:         accepts,
		transitions:     transitions,
		offers:          offers,
		notifications:   notifications,
		ledgerAmount:    ledgerAmount,
	}
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

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAccept counts an accept attempt. Outcome is one of won, conflict, ineligible or error.
func (m *MetricsService) RecordAccept(outcome string) {
	if m == nil {
		return
	}
	m.accepts.WithLabelValues(outcome).Inc()
}

// RecordTransition counts an applied opening transition.
func (m *MetricsService) RecordTransition(from, to, reason string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, reason).Inc()
}

// RecordOffers counts offers made in one dispatch.
func (m *MetricsService) RecordOffers(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.offers.WithLabelValues(mode).Add(float64(n))
}

// RecordNotification counts a notification delivery attempt.
func (m *MetricsService) RecordNotification(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.notifications.WithLabelValues("delivered").Inc()
		return
	}
	m.notifications.WithLabelValues("failed").Inc()
}

// RecordLedgerAmount adds a recorded ledger amount.
func (m *MetricsService) RecordLedgerAmount(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.ledgerAmount.Add(amount)
}
