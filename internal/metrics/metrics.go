package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Core synchronization primitives
	initOnce    sync.Once
	serverMutex sync.Mutex
	currentSrv  *http.Server

	// Global health checker instance
	globalHealthChecker *HealthChecker
	healthMutex         sync.RWMutex
)

// Process-wide metrics
var (
	// ErrorsTotal counts operational errors across all components
	ErrorsTotal prometheus.Counter

	// ConfigReloadsTotal counts config reloads by result
	ConfigReloadsTotal *prometheus.CounterVec
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initGuardMetrics()
		initCleanupMetrics()
		initScanMetrics()
		initAPIMetrics()
		initHealthMetrics()

		ErrorsTotal = NewCounter(
			"errors_total",
			"Total operational errors.",
		)
		ConfigReloadsTotal = NewCounterVec(
			"config_reloads_total",
			"Total config reloads by result.",
			[]string{"result"},
		)

		registerGuardMetrics()
		registerCleanupMetrics()
		registerScanMetrics()
		registerAPIMetrics()
		registerHealthMetrics()
		prometheus.MustRegister(ErrorsTotal)
		prometheus.MustRegister(ConfigReloadsTotal)

		// Pre-create label sets so they appear in /metrics before first use
		ConfigReloadsTotal.WithLabelValues("success")
		ConfigReloadsTotal.WithLabelValues("failure")
	})
}

// RecordError counts one operational error
func RecordError() {
	Init()
	ErrorsTotal.Inc()
}

// RecordConfigReload counts a config reload
func RecordConfigReload(err error) {
	Init()
	if err != nil {
		ConfigReloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	ConfigReloadsTotal.WithLabelValues("success").Inc()
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// HealthHandler reports the global health checker state as JSON. With no
// checker configured it reports ok.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	healthMutex.RLock()
	hc := globalHealthChecker
	healthMutex.RUnlock()

	status := http.StatusOK
	body := map[string]any{"status": "ok", "healthy": true}
	if hc != nil {
		body["components"] = hc.GetHealth()
		body["uptime_seconds"] = hc.GetUptime()
		if !hc.IsHealthy() {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["healthy"] = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// StartServer starts the metrics HTTP server on the specified address
// Exposes /metrics (Prometheus) and /health
func StartServer(addr string, logger zerolog.Logger) error {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Info().Str("addr", currentSrv.Addr).Msg("metrics server already running")
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler)

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	currentSrv = srv

	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
			RecordError()
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger zerolog.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	healthMutex.Lock()
	if globalHealthChecker != nil {
		globalHealthChecker.Stop()
		globalHealthChecker = nil
	}
	healthMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
		RecordError()
	}
	currentSrv = nil
}

// SetHealthChecker sets the global health checker instance
func SetHealthChecker(hc *HealthChecker) {
	healthMutex.Lock()
	defer healthMutex.Unlock()
	globalHealthChecker = hc
}

// GetHealthChecker returns the global health checker instance
func GetHealthChecker() *HealthChecker {
	healthMutex.RLock()
	defer healthMutex.RUnlock()
	return globalHealthChecker
}
