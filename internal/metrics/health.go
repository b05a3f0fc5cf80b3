package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ComponentHealth is the state of one registered check
type ComponentHealth struct {
	Name         string
	CheckFunc    func() error
	Healthy      bool
	LastCheck    time.Time
	FailureCount int
	Timeout      time.Duration
}

// HealthChecker runs registered component checks on an interval
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	started       bool
}

// Health metrics
var (
	ServiceStartTime    prometheus.Gauge
	ComponentHealthy    *prometheus.GaugeVec
	HealthCheckFailures *prometheus.GaugeVec
	HealthCheckTimeouts prometheus.Counter
)

var errHealthCheckTimeout = errors.New("health check timeout")

func initHealthMetrics() {
	ServiceStartTime = NewGauge(
		"start_timestamp_seconds",
		"Unix timestamp when the process started.",
	)

	ComponentHealthy = NewGaugeVec(
		"component_healthy",
		"Component health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	HealthCheckFailures = NewGaugeVec(
		"health_check_failures_consecutive",
		"Consecutive health check failures per component.",
		[]string{"component"},
	)

	HealthCheckTimeouts = NewCounter(
		"health_check_timeouts_total",
		"Total number of health check timeouts.",
	)
}

func registerHealthMetrics() {
	prometheus.MustRegister(ServiceStartTime)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(HealthCheckFailures)
	prometheus.MustRegister(HealthCheckTimeouts)
}

// NewHealthChecker creates a new health checker with specified check interval
func NewHealthChecker(interval time.Duration) *HealthChecker {
	Init()
	hc := &HealthChecker{
		startTime:     time.Now(),
		components:    make(map[string]*ComponentHealth),
		checkInterval: interval,
		stopCh:        make(chan struct{}),
	}
	ServiceStartTime.Set(float64(hc.startTime.Unix()))
	return hc
}

// RegisterComponent adds a component health check
// checkFunc returns nil on success; timeout 0 means no timeout
func (hc *HealthChecker) RegisterComponent(name string, checkFunc func() error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:      name,
		CheckFunc: checkFunc,
		Healthy:   true,
		Timeout:   timeout,
	}

	ComponentHealthy.WithLabelValues(name).Set(1)
	HealthCheckFailures.WithLabelValues(name).Set(0)
}

// Start begins periodic health checking
// Must be called after registering all components
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = true
	hc.mu.Unlock()

	hc.wg.Add(1)
	go hc.loop()
}

// Stop halts health checking and waits for completion
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = false
	hc.mu.Unlock()

	close(hc.stopCh)
	hc.wg.Wait()
}

func (hc *HealthChecker) loop() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.RunChecks()

	for {
		select {
		case <-ticker.C:
			hc.RunChecks()
		case <-hc.stopCh:
			return
		}
	}
}

// RunChecks executes every registered check once
func (hc *HealthChecker) RunChecks() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	for name, comp := range hc.components {
		var err error
		if comp.Timeout > 0 {
			err = runWithTimeout(comp.CheckFunc, comp.Timeout)
		} else {
			err = comp.CheckFunc()
		}

		comp.LastCheck = time.Now()
		if err != nil {
			comp.Healthy = false
			comp.FailureCount++
			ComponentHealthy.WithLabelValues(name).Set(0)
			HealthCheckFailures.WithLabelValues(name).Set(float64(comp.FailureCount))
			ErrorsTotal.Inc()
			continue
		}
		comp.Healthy = true
		comp.FailureCount = 0
		ComponentHealthy.WithLabelValues(name).Set(1)
		HealthCheckFailures.WithLabelValues(name).Set(0)
	}
}

func runWithTimeout(fn func() error, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		HealthCheckTimeouts.Inc()
		return errHealthCheckTimeout
	}
}

// GetHealth returns current health status of all components
func (hc *HealthChecker) GetHealth() map[string]bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	health := make(map[string]bool, len(hc.components))
	for name, comp := range hc.components {
		health[name] = comp.Healthy
	}
	return health
}

// IsHealthy returns true if all components are healthy
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	for _, comp := range hc.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}

// GetUptime returns uptime in seconds
func (hc *HealthChecker) GetUptime() float64 {
	return time.Since(hc.startTime).Seconds()
}
