// Package metrics exposes Prometheus metrics for the syntax engine, its
// caches, the request dispatcher, the event bus and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

const namespace = "rice_syntax"

// Metrics holds all application metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	Requests         *prometheus.CounterVec   // labels: fn, code
	RequestDuration  *prometheus.HistogramVec // labels: fn
	RequestsInFlight prometheus.Gauge

	// Tree cache metrics
	TreeCacheHits      *prometheus.CounterVec // labels: language
	TreeCacheMisses    *prometheus.CounterVec // labels: language
	TreeCacheEvictions *prometheus.CounterVec // labels: language
	TreeCacheEntries   *prometheus.GaugeVec   // labels: language

	// Query metrics
	QueriesCompiled *prometheus.CounterVec // labels: language

	// Structure cache metrics
	StructureCacheHits   *prometheus.CounterVec // labels: backend
	StructureCacheMisses *prometheus.CounterVec // labels: backend

	// Bus metrics
	BusCalls   *prometheus.CounterVec   // labels: op, topic
	BusLatency *prometheus.HistogramVec // labels: op, topic
	BusErrors  *prometheus.CounterVec   // labels: op, topic, code

	// HTTP metrics
	HTTPRequests         *prometheus.CounterVec   // labels: method, path, code
	HTTPDuration         *prometheus.HistogramVec // labels: method, path
	HTTPRequestsInFlight prometheus.Gauge
	HTTPRequestSize      *prometheus.HistogramVec // labels: method, path

	startTime time.Time
}

// New creates a metrics instance with every metric registered, plus the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of engine requests by function and result code",
		}, []string{"fn", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Engine request duration in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"fn"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of engine requests being handled",
		}),

		TreeCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree_cache",
			Name:      "hits_total",
			Help:      "Parse tree cache hits",
		}, []string{"language"}),
		TreeCacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree_cache",
			Name:      "misses_total",
			Help:      "Parse tree cache misses",
		}, []string{"language"}),
		TreeCacheEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree_cache",
			Name:      "evictions_total",
			Help:      "Parse trees evicted from the cache",
		}, []string{"language"}),
		TreeCacheEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tree_cache",
			Name:      "entries",
			Help:      "Parse trees currently cached",
		}, []string{"language"}),

		QueriesCompiled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_compiled_total",
			Help:      "Tree-sitter queries compiled",
		}, []string{"language"}),

		StructureCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structure_cache",
			Name:      "hits_total",
			Help:      "Structure cache hits",
		}, []string{"backend"}),
		StructureCacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structure_cache",
			Name:      "misses_total",
			Help:      "Structure cache misses",
		}, []string{"backend"}),

		BusCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "calls_total",
			Help:      "Bus publishes and request round trips",
		}, []string{"op", "topic"}),
		BusLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "call_duration_seconds",
			Help:      "Bus call latency; requests include the reply",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		}, []string{"op", "topic"}),
		BusErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "errors_total",
			Help:      "Failed bus calls by error code",
		}, []string{"op", "topic", "code"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests being served",
		}),
		HTTPRequestSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "Approximate HTTP request size in bytes, headers included",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"method", "path"}),

		startTime: time.Now(),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// TreeCacheHit implements ast.CacheMetrics.
func (m *Metrics) TreeCacheHit(lang string) { m.TreeCacheHits.WithLabelValues(lang).Inc() }

// TreeCacheMiss implements ast.CacheMetrics.
func (m *Metrics) TreeCacheMiss(lang string) { m.TreeCacheMisses.WithLabelValues(lang).Inc() }

// TreeCacheEvict implements ast.CacheMetrics.
func (m *Metrics) TreeCacheEvict(lang string) { m.TreeCacheEvictions.WithLabelValues(lang).Inc() }

// TreeCacheSize implements ast.CacheMetrics.
func (m *Metrics) TreeCacheSize(lang string, size int) {
	m.TreeCacheEntries.WithLabelValues(lang).Set(float64(size))
}

// QueryCompiled implements ast.QueryMetrics.
func (m *Metrics) QueryCompiled(lang string) { m.QueriesCompiled.WithLabelValues(lang).Inc() }

// RecordStructureLookup counts a structure cache lookup.
func (m *Metrics) RecordStructureLookup(backend string, hit bool) {
	if hit {
		m.StructureCacheHits.WithLabelValues(backend).Inc()
		return
	}
	m.StructureCacheMisses.WithLabelValues(backend).Inc()
}

// RequestStarted marks an engine request as in flight.
func (m *Metrics) RequestStarted() { m.RequestsInFlight.Inc() }

// RecordRequest records a finished engine request. code is empty on success.
func (m *Metrics) RecordRequest(fn, code string, d time.Duration) {
	m.RequestsInFlight.Dec()
	if code == "" {
		code = "OK"
	}
	m.Requests.WithLabelValues(fn, code).Inc()
	m.RequestDuration.WithLabelValues(fn).Observe(d.Seconds())
}

// RecordBusCall implements bus.MetricsRecorder.
func (m *Metrics) RecordBusCall(op, topic string, d time.Duration, err error) {
	m.BusCalls.WithLabelValues(op, topic).Inc()
	m.BusLatency.WithLabelValues(op, topic).Observe(d.Seconds())
	if err != nil {
		m.BusErrors.WithLabelValues(op, topic, apperrors.CodeOf(err)).Inc()
	}
}
