package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Directory cleanup metrics
var (
	// DirectoriesRemovedTotal tracks empty directories removed by cleanup walks
	DirectoriesRemovedTotal prometheus.Counter

	// CleanupStopsTotal counts where cleanup walks stopped, by reason
	CleanupStopsTotal *prometheus.CounterVec
)

func initCleanupMetrics() {
	DirectoriesRemovedTotal = NewCounter(
		"cleanup_directories_removed_total",
		"Total empty directories removed by cleanup.",
	)

	CleanupStopsTotal = NewCounterVec(
		"cleanup_stops_total",
		"Total cleanup walks stopped, by reason.",
		[]string{"reason"},
	)
}

func registerCleanupMetrics() {
	prometheus.MustRegister(DirectoriesRemovedTotal)
	prometheus.MustRegister(CleanupStopsTotal)
}

// RecordDirectoryRemoved counts one removed empty directory
func RecordDirectoryRemoved() {
	Init()
	DirectoriesRemovedTotal.Inc()
}

// RecordCleanupSkip counts a cleanup walk stopping for reason
func RecordCleanupSkip(reason string) {
	Init()
	CleanupStopsTotal.WithLabelValues(reason).Inc()
}
