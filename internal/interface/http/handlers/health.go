// Package handlers contains HTTP handler interfaces and implementations.
package handlers

import (
	"context"
	"strings"
	"sync"
	"time"
)

// checkTimeout bounds each individual probe. A probe that cannot answer
// in five seconds is reported unhealthy rather than holding the whole
// /health response hostage.
const checkTimeout = 5 * time.Second

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	// Check performs a health check and returns the status.
	Check(ctx context.Context) HealthStatus

	// AddCheck adds a named health check function.
	AddCheck(name string, check HealthCheckFunc)

	// RemoveCheck removes a named health check.
	RemoveCheck(name string)
}

// HealthCheckFunc probes a single dependency. A nil return means the
// dependency answered.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the aggregated response served on /health and /ready.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one named probe.
type CheckResult struct {
	Healthy     bool      `json:"healthy"`
	Message     string    `json:"message,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	LastChecked time.Time `json:"last_checked,omitempty"`
}

// CompositeHealthChecker fans out to every registered probe and folds
// the results into one HealthStatus. Probes run concurrently so one
// slow dependency does not serialize the rest.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	probes    map[string]HealthCheckFunc
	startedAt time.Time
	version   string
}

// NewCompositeHealthChecker creates a checker with no probes registered.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		probes:    make(map[string]HealthCheckFunc),
		startedAt: time.Now(),
		version:   version,
	}
}

// AddCheck registers a probe under name, replacing any previous one.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	c.probes[name] = check
	c.mu.Unlock()
}

// RemoveCheck unregisters a probe.
func (c *CompositeHealthChecker) RemoveCheck(name string) {
	c.mu.Lock()
	delete(c.probes, name)
	c.mu.Unlock()
}

// Check runs every probe and aggregates the outcome. Any failing probe
// marks the whole service unhealthy and not ready.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	probes := make(map[string]HealthCheckFunc, len(c.probes))
	for name, probe := range c.probes {
		probes[name] = probe
	}
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(probes)),
		Uptime:    time.Since(c.startedAt).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	if len(probes) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		failing []string
	)

	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe HealthCheckFunc) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			started := time.Now()
			err := probe(probeCtx)

			result := CheckResult{
				Healthy:     err == nil,
				Message:     "OK",
				Duration:    time.Since(started).Round(time.Millisecond).String(),
				LastChecked: time.Now().UTC(),
			}
			if err != nil {
				result.Message = err.Error()
			}

			resMu.Lock()
			status.Checks[name] = result
			if err != nil {
				failing = append(failing, name)
			}
			resMu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	if len(failing) > 0 {
		status.Healthy = false
		status.Ready = false
		status.Message = "Some checks failed: " + strings.Join(failing, ", ")
		return status
	}
	status.Message = "All checks passed"
	return status
}

// Pinger is anything that can answer a connectivity ping. Both the
// Postgres connection and the Redis cache satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewDatabaseCheck probes the primary Postgres connection. A failure
// here must flip readiness: without the store nothing can be served.
func NewDatabaseCheck(db Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}

// NewCacheCheck probes the stats cache. The cache is best effort for
// reads, so register this only where cache loss should surface in
// health output.
func NewCacheCheck(cache Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		return cache.Ping(ctx)
	}
}
