package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mirror the teacher's shared/prometheus pattern of exposing
// counters/histograms via promauto and serving them on /metrics with
// promhttp.Handler.
var (
	putsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feoblog_puts_total",
		Help: "Total item/attachment PUT requests by admission outcome.",
	}, []string{"resource", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feoblog_http_request_duration_seconds",
		Help:    "HTTP handler latency by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status_class"})
)

var metricsHandler = promhttp.Handler().ServeHTTP

// metricsMiddleware records per-request latency, labeled by the status
// class (2xx/3xx/4xx/5xx) of the response.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(routeLabel(r), statusClass(rec.status)).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// statusRecorder captures the status code written by a handler so
// metricsMiddleware can label the observed request duration.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
