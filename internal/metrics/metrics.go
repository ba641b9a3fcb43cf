// Package metrics exposes Prometheus collectors for the HTTP API and for
// posting outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crosspost"

const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeInvalid   = "invalid"
	OutcomeCancelled = "cancelled"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 5, 30, 120},
		},
		[]string{"method", "route"},
	)

	postsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Posting attempts per website by final outcome.",
		},
		[]string{"website", "outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_retries_total",
			Help:      "Posts retried after a transient website error.",
		},
		[]string{"website"},
	)

	postDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "post_duration_seconds",
			Help:      "Time spent posting to a website, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"website"},
	)

	statusChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_checks_total",
			Help:      "Login status checks by website and result.",
		},
		[]string{"website", "result"},
	)
)

func ObservePost(website, outcome string, d time.Duration) {
	postsTotal.WithLabelValues(website, outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeFailed {
		postDuration.WithLabelValues(website).Observe(d.Seconds())
	}
}

func ObserveRetry(website string) {
	retriesTotal.WithLabelValues(website).Inc()
}

// ObserveStatusCheck records a status check; result is a login status or "error".
func ObserveStatusCheck(website, result string) {
	statusChecks.WithLabelValues(website, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
