// Package health runs registered component checks (feed snapshot, query
// cache, Postgres) in parallel and serves the liveness and readiness probes.
// A degraded component, such as a cache that fell back to its local layer,
// keeps the service ready; only a down component fails readiness. Each check
// gets its own deadline so a hung Redis or Postgres ping cannot stall the
// probe.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check is a function that probes a single dependency and returns its status.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// DefaultCheckTimeout bounds a single component check.
const DefaultCheckTimeout = 2 * time.Second

// Checker manages registered health checks and runs them concurrently.
type Checker struct {
	checks  map[string]Check
	timeout time.Duration
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: DefaultCheckTimeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all registered checks concurrently and returns an aggregated
// Report. The overall status is the worst status among all components.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()
	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch Check) {
			defer wg.Done()
			result := c.runCheck(ctx, n, ch)
			mu.Lock()
			report.Components[n] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	for _, comp := range report.Components {
		switch comp.Status {
		case StatusDown:
			report.Status = StatusDown
			return report
		case StatusDegraded:
			report.Status = StatusDegraded
		}
	}
	return report
}

// runCheck runs one check under the per-check deadline. A check that
// reports up after its deadline passed is downgraded to degraded.
func (c *Checker) runCheck(ctx context.Context, name string, check Check) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result := check(checkCtx)
	elapsed := time.Since(start)
	result.Latency = elapsed.Round(time.Millisecond).String()

	if checkCtx.Err() != nil && ctx.Err() == nil && result.Status == StatusUp {
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("check exceeded %v", c.timeout)
	}
	if result.Status != StatusUp {
		c.logger.Warn("component unhealthy",
			"name", name,
			"status", result.Status,
			"message", result.Message,
			"latency_ms", elapsed.Milliseconds(),
		)
	}
	return result
}

// LiveHandler returns an HTTP handler for Kubernetes liveness probes.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
		})
	}
}

// ReadyHandler returns an HTTP handler for Kubernetes readiness probes.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status != StatusDown {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
