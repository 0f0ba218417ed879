// Package metrics holds the Prometheus instrumentation for scans and the
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raysh454/clarity/internal/model"
)

// Metrics groups every collector clarity exports.
type Metrics struct {
	scanTotal    *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	scanFailures *prometheus.CounterVec
	httpRequests *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var (
	defaultInstance *Metrics
	defaultOnce     sync.Once
)

// Default returns the process-wide instance registered on the default
// Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInstance = New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return defaultInstance
}

// New creates the collectors and registers them on reg. Tests pass a fresh
// prometheus.NewRegistry() for both arguments.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		scanTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clarity",
				Name:      "scan_total",
				Help:      "Total scans by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "clarity",
				Name:      "scan_duration_seconds",
				Help:      "Wall time of a scan from validation to scored result",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
			},
			[]string{"strategy"},
		),
		scanFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clarity",
				Name:      "scan_failures_total",
				Help:      "Failed scans by error kind",
			},
			[]string{"kind"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clarity",
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(m.scanTotal, m.scanDuration, m.scanFailures, m.httpRequests)
	return m
}

// ScanFinished records one finished scan. An empty kind means success.
func (m *Metrics) ScanFinished(strategy model.StrategyKind, kind model.ErrorKind, elapsed time.Duration) {
	outcome := "success"
	if kind != "" {
		outcome = "failure"
		m.scanFailures.WithLabelValues(string(kind)).Inc()
	}
	m.scanTotal.WithLabelValues(string(strategy), outcome).Inc()
	m.scanDuration.WithLabelValues(string(strategy)).Observe(elapsed.Seconds())
}

// Handler serves the gathered metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests by their chi route pattern. Unmatched routes
// are reported as "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
