package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sis-directory-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the allocation core. All observer methods are nil-safe so
// metrics stay optional in tests.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	allocationsTotal    *prometheus.CounterVec
	allocationConflicts prometheus.Counter
	backfillUpdated     prometheus.Gauge
	backfillRuns        prometheus.Counter
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

	allocationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "code_allocations_total",
		Help: "Sequence numbers reserved, by role",
	}, []string{"role"})

	allocationConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "code_allocation_conflicts_total",
		Help: "Storage-level uniqueness violations during code writes",
	})

	backfillUpdated := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backfill_codes_updated",
		Help: "Codes rewritten by the most recent reconciliation run",
	})

	backfillRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backfill_runs_total",
		Help: "Completed reconciliation runs",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, allocationsTotal, allocationConflicts, backfillUpdated, backfillRuns, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		allocationsTotal:    allocationsTotal,
		allocationConflicts: allocationConflicts,
		backfillUpdated:     backfillUpdated,
		backfillRuns:        backfillRuns,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// AddAllocations counts reserved sequence numbers.
func (s *MetricsService) AddAllocations(role models.Role, n int) {
	if s == nil {
		return
	}
	s.allocationsTotal.WithLabelValues(string(role)).Add(float64(n))
}

// IncAllocationConflict counts a uniqueness violation on a code write.
func (s *MetricsService) IncAllocationConflict() {
	if s == nil {
		return
	}
	s.allocationConflicts.Inc()
}

// ObserveBackfill records the outcome of a reconciliation run.
func (s *MetricsService) ObserveBackfill(updated int64) {
	if s == nil {
		return
	}
	s.backfillUpdated.Set(float64(updated))
	s.backfillRuns.Inc()
}
