package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// API/HTTP subsystem metrics
var (
	// HTTPRequestDuration tracks HTTP request latency
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal tracks total HTTP requests by route, method, status
	HTTPRequestsTotal *prometheus.CounterVec
)

// initAPIMetrics initializes all API subsystem metrics
func initAPIMetrics() {
	HTTPRequestDuration = NewDurationHistogramVec(
		"api_request_duration_seconds",
		"HTTP request duration in seconds.",
		APIBuckets,
		[]string{"route", "method", "status"},
	)

	HTTPRequestsTotal = NewCounterVec(
		"api_requests_total",
		"Total HTTP requests processed by the fsguard API.",
		[]string{"route", "method", "status"},
	)
}

// registerAPIMetrics registers all API metrics with Prometheus
func registerAPIMetrics() {
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// RecordHTTPRequest records one served request. route is the matched
// route pattern, never the raw URL.
func RecordHTTPRequest(route, method string, status int, d time.Duration) {
	Init()
	code := strconv.Itoa(status)
	HTTPRequestDuration.WithLabelValues(route, method, code).Observe(d.Seconds())
	HTTPRequestsTotal.WithLabelValues(route, method, code).Inc()
}
