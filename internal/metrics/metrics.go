// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and the instruments the server records.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	loansBorrowed   prometheus.Counter
	loansReturned   prometheus.Counter
	borrowConflicts prometheus.Counter
}

// New creates a Metrics with all instruments registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openshelf",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "openshelf",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loansBorrowed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openshelf",
			Subsystem: "loans",
			Name:      "borrowed_total",
			Help:      "Total successful borrow operations.",
		}),
		loansReturned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openshelf",
			Subsystem: "loans",
			Name:      "returned_total",
			Help:      "Total successful return operations.",
		}),
		borrowConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openshelf",
			Subsystem: "loans",
			Name:      "borrow_conflicts_total",
			Help:      "Borrow attempts rejected because the book was on loan.",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.loansBorrowed,
		m.loansReturned,
		m.borrowConflicts,
	)

	return m
}

// LoanBorrowed records a successful borrow.
func (m *Metrics) LoanBorrowed() { m.loansBorrowed.Inc() }

// LoanReturned records a successful return.
func (m *Metrics) LoanReturned() { m.loansReturned.Inc() }

// BorrowConflict records a borrow rejected on availability.
func (m *Metrics) BorrowConflict() { m.borrowConflicts.Inc() }

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments requests with count and latency.
// The route label uses the chi route pattern, not the raw path, so
// /api/books/42 and /api/books/7 share a label value.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
