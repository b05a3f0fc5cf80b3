package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "fsguard"

// Histogram buckets, in seconds
var (
	// DurationBuckets spans 1ms to 1min for guarded operations
	DurationBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 60}

	// ScanBuckets spans 10ms to 10min for duplicate scans
	ScanBuckets = []float64{0.01, 0.1, 1, 5, 30, 60, 300, 600}

	// APIBuckets spans 5ms to 10s for HTTP requests
	APIBuckets = []float64{0.005, 0.05, 0.1, 0.5, 1, 5, 10}
)

func histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: Namespace, Name: name, Help: help, Buckets: buckets}
}

func counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help}
}

func gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: Namespace, Name: name, Help: help}
}

// NewDurationHistogram creates a histogram of durations in seconds
func NewDurationHistogram(name, help string, buckets []float64) prometheus.Histogram {
	return prometheus.NewHistogram(histogramOpts(name, help, buckets))
}

// NewDurationHistogramVec creates a labeled duration histogram
func NewDurationHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(histogramOpts(name, help, buckets), labels)
}

// NewBytesCounter creates a counter of bytes. name must end in _bytes_total.
func NewBytesCounter(name, help string) prometheus.Counter {
	return NewCounter(name, help)
}

func NewCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(counterOpts(name, help))
}

func NewCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(counterOpts(name, help), labels)
}

func NewGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(gaugeOpts(name, help))
}

func NewGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(gaugeOpts(name, help), labels)
}
