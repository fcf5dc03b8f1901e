package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/reliability"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string
	Description string
	Check       func(ctx context.Context) HealthCheckResult
	Timeout     time.Duration
	Critical    bool // If true, failure affects overall system health
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMs int64          `json:"duration_ms"`
}

// Report is the body served by the health endpoint.
type Report struct {
	Status    HealthStatus                 `json:"status"`
	Service   string                       `json:"service"`
	Timestamp time.Time                    `json:"timestamp"`
	Uptime    string                       `json:"uptime"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// HealthChecker manages and executes health checks
type HealthChecker struct {
	checks  map[string]*HealthCheck
	mutex   sync.RWMutex
	started time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]*HealthCheck),
		started: time.Now(),
	}
}

// RegisterCheck registers a new health check
func (hc *HealthChecker) RegisterCheck(check *HealthCheck) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()

	if check.Timeout == 0 {
		check.Timeout = 5 * time.Second
	}
	hc.checks[check.Name] = check

	logger.Debug("Health check registered",
		"name", check.Name,
		"critical", check.Critical,
		"timeout", check.Timeout.String())
}

// Names lists the registered checks in order.
func (hc *HealthChecker) Names() []string {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteCheck executes a single health check
func (hc *HealthChecker) ExecuteCheck(ctx context.Context, name string) (*HealthCheckResult, error) {
	hc.mutex.RLock()
	check, exists := hc.checks[name]
	hc.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("health check %s not found", name)
	}
	result := hc.executeCheck(ctx, check)
	return &result, nil
}

// ExecuteAllChecks runs every registered check concurrently.
func (hc *HealthChecker) ExecuteAllChecks(ctx context.Context) map[string]HealthCheckResult {
	hc.mutex.RLock()
	checks := make([]*HealthCheck, 0, len(hc.checks))
	for _, check := range hc.checks {
		checks = append(checks, check)
	}
	hc.mutex.RUnlock()

	results := make(map[string]HealthCheckResult, len(checks))
	var wg sync.WaitGroup
	var resultMutex sync.Mutex

	for _, check := range checks {
		wg.Add(1)
		go func(check *HealthCheck) {
			defer wg.Done()
			result := hc.executeCheck(ctx, check)

			resultMutex.Lock()
			results[check.Name] = result
			resultMutex.Unlock()
		}(check)
	}

	wg.Wait()
	return results
}

// executeCheck runs check under its timeout. A check that does not return
// before the timeout is reported unhealthy.
func (hc *HealthChecker) executeCheck(ctx context.Context, check *HealthCheck) HealthCheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan HealthCheckResult, 1)
	go func() { done <- check.Check(checkCtx) }()

	var result HealthCheckResult
	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = HealthCheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("health check timed out after %s", check.Timeout),
		}
	}
	result.Timestamp = start.UTC()
	result.DurationMs = time.Since(start).Milliseconds()

	logger.DebugCtx(ctx, "Health check executed",
		"name", check.Name,
		"status", string(result.Status),
		"duration_ms", result.DurationMs,
		"message", result.Message,
		"stage", logger.LogStages.HealthCheck)
	return result
}

// GetOverallHealth is unhealthy when a critical check fails, degraded when
// any other check is not healthy, healthy otherwise.
func (hc *HealthChecker) GetOverallHealth(ctx context.Context) (HealthStatus, map[string]HealthCheckResult) {
	results := hc.ExecuteAllChecks(ctx)

	overallStatus := StatusHealthy
	criticalFailures := 0
	totalFailures := 0

	hc.mutex.RLock()
	defer hc.mutex.RUnlock()

	for name, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			totalFailures++
			if check := hc.checks[name]; check != nil && check.Critical {
				criticalFailures++
			}
		case StatusDegraded:
			totalFailures++
		}
	}

	if criticalFailures > 0 {
		overallStatus = StatusUnhealthy
	} else if totalFailures > 0 {
		overallStatus = StatusDegraded
	}

	if overallStatus != StatusHealthy {
		logger.WarnCtx(ctx, "Health assessment not healthy",
			"overall_status", string(overallStatus),
			"total_checks", len(results),
			"total_failures", totalFailures,
			"critical_failures", criticalFailures,
			"stage", logger.LogStages.HealthCheck)
	}
	return overallStatus, results
}

// Report runs every check and builds the endpoint body.
func (hc *HealthChecker) Report(ctx context.Context) Report {
	status, results := hc.GetOverallHealth(ctx)
	return Report{
		Status:    status,
		Service:   utils.ServiceName,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(hc.started).Round(time.Second).String(),
		Checks:    results,
	}
}

// StatusCode maps a status to the HTTP code served for it. Only unhealthy
// maps to 503 so load balancers keep a degraded instance in rotation.
func StatusCode(status HealthStatus) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// HealthHandler serves the full report, or one check when ?check= is set.
func HealthHandler(hc *HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if checkName := r.URL.Query().Get("check"); checkName != "" {
			result, err := hc.ExecuteCheck(ctx, checkName)
			if err != nil {
				writeJSONResponse(ctx, w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeJSONResponse(ctx, w, StatusCode(result.Status), result)
			return
		}

		report := hc.Report(ctx)
		writeJSONResponse(ctx, w, StatusCode(report.Status), report)
	}
}

func writeJSONResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", utils.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.ErrorCtx(ctx, "Failed to write health response", "error", err)
	}
}

// CircuitBreakerCheck is unhealthy while cb is open. It is not critical: an
// open breaker already answers callers with 503 on its own.
func CircuitBreakerCheck(cb *reliability.CircuitBreaker) *HealthCheck {
	return &HealthCheck{
		Name:        "upstream_circuit",
		Description: "Circuit breaker guarding the provider API",
		Timeout:     time.Second,
		Check: func(context.Context) HealthCheckResult {
			stats := cb.Stats()
			switch cb.State() {
			case reliability.StateOpen:
				return HealthCheckResult{Status: StatusUnhealthy, Message: "circuit breaker is open", Details: stats}
			case reliability.StateHalfOpen:
				return HealthCheckResult{Status: StatusDegraded, Message: "circuit breaker is probing", Details: stats}
			default:
				return HealthCheckResult{Status: StatusHealthy, Message: "circuit breaker is closed", Details: stats}
			}
		},
	}
}

// CatalogCheck reports the model lists and fails when nothing is listed.
func CatalogCheck(catalog *config.Catalog) *HealthCheck {
	return &HealthCheck{
		Name:        "model_catalog",
		Description: "Model catalog",
		Critical:    true,
		Timeout:     time.Second,
		Check: func(context.Context) HealthCheckResult {
			snapshot := catalog.Snapshot()
			listed := len(catalog.Listed())
			details := map[string]any{
				"listed_models":      listed,
				"chat_models":        len(snapshot.ChatModels),
				"vision_models":      len(snapshot.VisionModels),
				"image_models":       len(snapshot.ImageModels),
				"permit_subset_only": catalog.SubsetOnly(),
			}
			if listed == 0 {
				return HealthCheckResult{Status: StatusUnhealthy, Message: "no models are listed", Details: details}
			}
			return HealthCheckResult{Status: StatusHealthy, Message: "model catalog loaded", Details: details}
		},
	}
}

// Pinger is implemented by database.Connection.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// DatabaseCheck pings the usage ledger. Losing the ledger degrades the
// gateway but does not stop it serving.
func DatabaseCheck(db Pinger) *HealthCheck {
	return &HealthCheck{
		Name:        "usage_ledger",
		Description: "MongoDB usage ledger",
		Timeout:     2 * time.Second,
		Check: func(ctx context.Context) HealthCheckResult {
			if err := db.HealthCheck(ctx); err != nil {
				return HealthCheckResult{Status: StatusUnhealthy, Message: err.Error()}
			}
			return HealthCheckResult{Status: StatusHealthy, Message: "connected"}
		},
	}
}
