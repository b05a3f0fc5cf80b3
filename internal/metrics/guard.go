package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes used as the "outcome" label
const (
	OutcomeSuccess  = "success"
	OutcomePreview  = "preview"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Guarded operation metrics
var (
	// OperationsTotal counts guarded operations by operation and outcome
	OperationsTotal *prometheus.CounterVec

	// OperationDuration tracks how long guarded operations take
	OperationDuration *prometheus.HistogramVec

	// RejectionsTotal counts policy and guard rejections by reason
	RejectionsTotal *prometheus.CounterVec

	// FilesDeletedTotal tracks total files deleted
	FilesDeletedTotal prometheus.Counter

	// BytesFreedTotal tracks total bytes freed by deletions
	BytesFreedTotal prometheus.Counter

	// FilesMovedTotal tracks files relocated by move and organize
	FilesMovedTotal prometheus.Counter
)

func initGuardMetrics() {
	OperationsTotal = NewCounterVec(
		"operations_total",
		"Total guarded operations by operation and outcome.",
		[]string{"operation", "outcome"},
	)

	OperationDuration = NewDurationHistogramVec(
		"operation_duration_seconds",
		"Duration of guarded operations in seconds.",
		DurationBuckets,
		[]string{"operation"},
	)

	RejectionsTotal = NewCounterVec(
		"rejections_total",
		"Total rejected operations by reason.",
		[]string{"reason"},
	)

	FilesDeletedTotal = NewCounter(
		"files_deleted_total",
		"Total number of files deleted.",
	)

	BytesFreedTotal = NewBytesCounter(
		"bytes_freed_total",
		"Total bytes freed by deletions.",
	)

	FilesMovedTotal = NewCounter(
		"files_moved_total",
		"Total number of files moved.",
	)
}

func registerGuardMetrics() {
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(RejectionsTotal)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(FilesMovedTotal)
}

// RecordOperation counts one guarded operation and observes its duration
func RecordOperation(operation, outcome string, d time.Duration) {
	Init()
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordRejection counts a rejection by reason
func RecordRejection(reason string) {
	Init()
	RejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordDeletion counts deleted files and the bytes they occupied
func RecordDeletion(files int, bytes int64) {
	Init()
	FilesDeletedTotal.Add(float64(files))
	if bytes > 0 {
		BytesFreedTotal.Add(float64(bytes))
	}
}

// RecordMove counts moved files
func RecordMove(files int) {
	Init()
	FilesMovedTotal.Add(float64(files))
}
