// Package observability exposes the Prometheus instrumentation shared by the
// HTTP server and the domain services.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/go-chi/chi/v5"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_http_requests_total",
		Help: "HTTP requests by method, route pattern and status class.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// SalesSettled counts completed settlements by payment method, covering
	// both direct order payments and signed-bill collections.
	SalesSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_settled_total",
		Help: "Settled sales by payment method.",
	}, []string{"method"})

	// SalesAmount accumulates settled revenue by payment method.
	SalesAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_amount_total",
		Help: "Settled revenue by payment method.",
	}, []string{"method"})

	// BillsSigned counts orders converted into customer debts.
	BillsSigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_bills_signed_total",
		Help: "Orders signed to customer accounts.",
	})

	// DaysClosed counts successful day closures by reconciliation status.
	DaysClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_days_closed_total",
		Help: "Day closures by reconciliation status.",
	}, []string{"status"})

	// PrintJobs counts print deliveries by document type and outcome.
	PrintJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_print_jobs_total",
		Help: "Print deliveries by document type and outcome.",
	}, []string{"document", "outcome"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latencies against the chi route
// pattern rather than the raw path, keeping the label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
