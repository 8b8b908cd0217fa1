package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the gate, its jobs and the HTTP layer.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	checkIns        *prometheus.CounterVec
	resetRuns       *prometheus.CounterVec
	resetDeleted    *prometheus.CounterVec
	rosterRuns      *prometheus.CounterVec
	rosterRecords   *prometheus.CounterVec
	rosterDuration  prometheus.Histogram

	cacheHitCount  uint64
	cacheMissCount uint64
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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meal_window_cache_hit_ratio",
		Help: "Ratio of meal window cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meal_window_cache_hits_total",
		Help: "Total meal window cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meal_window_cache_misses_total",
		Help: "Total meal window cache misses",
	})

	checkIns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meal_checkins_total",
		Help: "Check-in attempts by outcome and meal type",
	}, []string{"status", "meal_type"})

	resetRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meal_reset_runs_total",
		Help: "Ledger reset runs by meal type and result",
	}, []string{"meal_type", "result"})

	resetDeleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meal_reset_deleted_records_total",
		Help: "Attendance records removed by ledger resets",
	}, []string{"meal_type"})

	rosterRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_sync_runs_total",
		Help: "Roster synchronisation runs by result",
	}, []string{"result"})

	rosterRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_sync_records_total",
		Help: "Roster records touched by synchronisation",
	}, []string{"action"})

	rosterDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roster_sync_duration_seconds",
		Help:    "Duration of roster synchronisation runs",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHitRatio, cacheHits, cacheMisses,
		checkIns, resetRuns, resetDeleted, rosterRuns, rosterRecords, rosterDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		checkIns:        checkIns,
		resetRuns:       resetRuns,
		resetDeleted:    resetDeleted,
		rosterRuns:      rosterRuns,
		rosterRecords:   rosterRecords,
		rosterDuration:  rosterDuration,
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

// Registry returns the underlying registry.
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordCheckIn counts one admission attempt.
func (m *MetricsService) RecordCheckIn(status models.CheckInStatus, mealType models.MealType) {
	if m == nil {
		return
	}
	meal := string(mealType)
	if meal == "" {
		meal = "none"
	}
	m.checkIns.WithLabelValues(string(status), meal).Inc()
}

// RecordReset counts one reset run. An empty meal type is a full wipe.
func (m *MetricsService) RecordReset(mealType models.MealType, deleted int64, err error) {
	if m == nil {
		return
	}
	meal := string(mealType)
	if meal == "" {
		meal = "all"
	}
	if err != nil {
		m.resetRuns.WithLabelValues(meal, "error").Inc()
		return
	}
	m.resetRuns.WithLabelValues(meal, "ok").Inc()
	m.resetDeleted.WithLabelValues(meal).Add(float64(deleted))
}

// RecordRosterSync counts one roster run and the rows it touched.
func (m *MetricsService) RecordRosterSync(report *dto.RosterSyncReport, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case report != nil && len(report.Failures) > 0:
		result = "partial"
	}
	m.rosterRuns.WithLabelValues(result).Inc()
	if report == nil {
		return
	}
	m.rosterRecords.WithLabelValues("upserted").Add(float64(report.Upserted))
	m.rosterRecords.WithLabelValues("deleted").Add(float64(report.Deleted))
	m.rosterRecords.WithLabelValues("failed").Add(float64(len(report.Failures)))
	if !report.FinishedAt.IsZero() {
		m.rosterDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
}
