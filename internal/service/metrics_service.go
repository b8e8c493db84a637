package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the request workflows.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestsOpened  *prometheus.CounterVec
	decisionsTotal  *prometheus.CounterVec
	sideEffectLag   prometheus.Histogram
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

	requestsOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_requests_opened_total",
		Help: "Vacation and permission requests created",
	}, []string{"kind"})

	decisionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_request_decisions_total",
		Help: "Workflow decisions by kind and outcome",
	}, []string{"kind", "outcome"})

	sideEffectLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "side_effect_delivery_seconds",
		Help:    "Delay between enqueue and delivery of audit/notification jobs",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, requestsOpened, decisionsTotal, sideEffectLag, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		requestsOpened:  requestsOpened,
		decisionsTotal:  decisionsTotal,
		sideEffectLag:   sideEffectLag,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// CountRequestOpened tallies a created request. kind is "vacation" or
// "permission".
func (m *MetricsService) CountRequestOpened(kind string) {
	if m == nil {
		return
	}
	m.requestsOpened.WithLabelValues(kind).Inc()
}

// CountDecision tallies a workflow outcome.
func (m *MetricsService) CountDecision(kind, outcome string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveSideEffectLag records queue-to-delivery delay of one side effect.
func (m *MetricsService) ObserveSideEffectLag(lag time.Duration) {
	if m == nil {
		return
	}
	m.sideEffectLag.Observe(lag.Seconds())
}
