package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	overviewCompute *prometheus.HistogramVec
	taskRuns        *prometheus.CounterVec
	taskDuration    prometheus.Observer
	taskEnqueue     *prometheus.CounterVec
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
		Help:    "Latency for cache lookups",
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

	overviewCompute := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "overview_compute_duration_seconds",
		Help:    "Time spent building a yearly overview",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	taskRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overview_task_runs_total",
		Help: "Background overview recompute runs by outcome",
	}, []string{"outcome"})

	taskDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "overview_task_duration_seconds",
		Help:    "Duration of background overview recompute runs",
		Buckets: prometheus.DefBuckets,
	})

	taskEnqueue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overview_task_enqueue_total",
		Help: "Attempts to schedule an overview recompute",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		overviewCompute, taskRuns, taskDuration, taskEnqueue, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		overviewCompute: overviewCompute,
		taskRuns:        taskRuns,
		taskDuration:    taskDuration,
		taskEnqueue:     taskEnqueue,
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
	labelStatus := strconv.Itoa(status)
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

// ObserveOverviewCompute records how long an overview took; source is "request" or "task".
func (m *MetricsService) ObserveOverviewCompute(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.overviewCompute.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveTaskRun records one background recompute attempt.
func (m *MetricsService) ObserveTaskRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(outcome).Inc()
	m.taskDuration.Observe(duration.Seconds())
}

// RecordTaskEnqueue counts scheduling attempts; result is "accepted" or "rejected".
func (m *MetricsService) RecordTaskEnqueue(result string) {
	if m == nil {
		return
	}
	m.taskEnqueue.WithLabelValues(result).Inc()
}
