// Package observability exposes Prometheus metrics for the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for HTTP traffic and engine runs.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	engineRuns      *prometheus.CounterVec
	enginePeriods   prometheus.Histogram
	searchTrials    prometheus.Histogram
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trancheflow_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trancheflow_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	engineRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trancheflow_engine_runs_total",
		Help: "Amortization engine runs by outcome.",
	}, []string{"outcome"})
	enginePeriods := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trancheflow_engine_periods",
		Help:    "Periods emitted per engine run.",
		Buckets: []float64{12, 36, 60, 120, 216, 360, 600},
	})
	searchTrials := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trancheflow_search_trials",
		Help:    "Engine trials per target-payment search.",
		Buckets: []float64{4, 8, 12, 16, 20, 24},
	})
	registry.MustRegister(requests, duration, engineRuns, enginePeriods, searchTrials)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		engineRuns:      engineRuns,
		enginePeriods:   enginePeriods,
		searchTrials:    searchTrials,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveRun records one engine run. Implements loan.Metrics.
func (m *Metrics) ObserveRun(periods int, retired bool) {
	if m == nil {
		return
	}
	outcome := "retired"
	if !retired {
		outcome = "residual"
	}
	m.engineRuns.WithLabelValues(outcome).Inc()
	m.enginePeriods.Observe(float64(periods))
}

// ObserveSearch records one target-payment search. Implements loan.Metrics.
func (m *Metrics) ObserveSearch(trials int) {
	if m == nil {
		return
	}
	m.searchTrials.Observe(float64(trials))
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
