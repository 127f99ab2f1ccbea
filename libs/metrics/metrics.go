package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// Every method is safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	bookings        *prometheus.CounterVec
	slots           *prometheus.HistogramVec
	storageDuration *prometheus.HistogramVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "http_request_duration_seconds",
		Help:        "Duration of HTTP requests in seconds",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests",
		ConstLabels: constLabels,
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "availability_cache_latency_seconds",
		Help:        "Latency of availability cache lookups",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "availability_cache_hits_total",
		Help:        "Availability lookups served from cache",
		ConstLabels: constLabels,
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "availability_cache_misses_total",
		Help:        "Availability lookups computed from storage",
		ConstLabels: constLabels,
	})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "booking_transitions_total",
		Help:        "Booking state machine transitions by state and error kind",
		ConstLabels: constLabels,
	}, []string{"state", "kind"})

	slots := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "availability_slots_generated",
		Help:        "Slots generated per availability query",
		Buckets:     []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		ConstLabels: constLabels,
	}, []string{"available"})

	storageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "storage_operation_duration_seconds",
		Help:        "Duration of storage operations",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"operation"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "goroutines_total",
		Help:        "Total number of goroutines",
		ConstLabels: constLabels,
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheHits, cacheMisses,
		bookings, slots, storageDuration, goroutines,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		bookings:        bookings,
		slots:           slots,
		storageDuration: storageDuration,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest matches httpx.Observer.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, label).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, path, label).Inc()
}

func (m *Metrics) RecordCacheOperation(hit bool, d time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(d.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveBookingTransition counts a state reached by a booking attempt. kind is
// empty except for rejections.
func (m *Metrics) ObserveBookingTransition(state, kind string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(state, kind).Inc()
}

func (m *Metrics) ObserveSlots(total, available int) {
	if m == nil {
		return
	}
	m.slots.WithLabelValues("false").Observe(float64(total - available))
	m.slots.WithLabelValues("true").Observe(float64(available))
}

func (m *Metrics) ObserveStorage(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.storageDuration.WithLabelValues(operation).Observe(d.Seconds())
}
