package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Duplicate scan metrics
var (
	// ScanDuration tracks how long duplicate scans take
	ScanDuration prometheus.Histogram

	// FilesHashedTotal tracks files read and digested
	FilesHashedTotal prometheus.Counter

	// ScanSkippedTotal tracks unreadable entries skipped by scans
	ScanSkippedTotal prometheus.Counter

	// DuplicateGroups records the group count of the last scan
	DuplicateGroups prometheus.Gauge

	// ScanLastRunTimestamp records Unix timestamp of the last scan
	ScanLastRunTimestamp prometheus.Gauge
)

func initScanMetrics() {
	ScanDuration = NewDurationHistogram(
		"scan_duration_seconds",
		"Duration of duplicate scans in seconds.",
		ScanBuckets,
	)

	FilesHashedTotal = NewCounter(
		"scan_files_hashed_total",
		"Total files hashed by duplicate scans.",
	)

	ScanSkippedTotal = NewCounter(
		"scan_skipped_total",
		"Total entries skipped by duplicate scans.",
	)

	DuplicateGroups = NewGauge(
		"scan_duplicate_groups",
		"Duplicate groups found by the last scan.",
	)

	ScanLastRunTimestamp = NewGauge(
		"scan_last_run_timestamp",
		"Unix timestamp of the last duplicate scan.",
	)
}

func registerScanMetrics() {
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(FilesHashedTotal)
	prometheus.MustRegister(ScanSkippedTotal)
	prometheus.MustRegister(DuplicateGroups)
	prometheus.MustRegister(ScanLastRunTimestamp)
}

// RecordScan records the result of one duplicate scan
func RecordScan(d time.Duration, hashed, skipped, groups int) {
	Init()
	ScanDuration.Observe(d.Seconds())
	FilesHashedTotal.Add(float64(hashed))
	ScanSkippedTotal.Add(float64(skipped))
	DuplicateGroups.Set(float64(groups))
	ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
}
