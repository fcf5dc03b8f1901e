package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/reliability"
)

type pinger struct{ err error }

func (p pinger) HealthCheck(context.Context) error { return p.err }

func staticCheck(name string, status HealthStatus, critical bool) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: critical,
		Check: func(context.Context) HealthCheckResult {
			return HealthCheckResult{Status: status, Message: string(status)}
		},
	}
}

func TestOverallHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks []*HealthCheck
		want   HealthStatus
	}{
		{"all healthy", []*HealthCheck{staticCheck("a", StatusHealthy, true), staticCheck("b", StatusHealthy, false)}, StatusHealthy},
		{"non-critical failure", []*HealthCheck{staticCheck("a", StatusHealthy, true), staticCheck("b", StatusUnhealthy, false)}, StatusDegraded},
		{"degraded check", []*HealthCheck{staticCheck("a", StatusDegraded, false)}, StatusDegraded},
		{"critical failure", []*HealthCheck{staticCheck("a", StatusUnhealthy, true), staticCheck("b", StatusDegraded, false)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for _, c := range tt.checks {
				hc.RegisterCheck(c)
			}
			status, results := hc.GetOverallHealth(context.Background())
			assert.Equal(t, tt.want, status)
			assert.Len(t, results, len(tt.checks))
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck(&HealthCheck{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Check: func(ctx context.Context) HealthCheckResult {
			time.Sleep(time.Second)
			return HealthCheckResult{Status: StatusHealthy}
		},
	})
	result, err := hc.ExecuteCheck(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "timed out")

	_, err = hc.ExecuteCheck(context.Background(), "missing")
	assert.Error(t, err)
}

func TestCircuitBreakerCheck(t *testing.T) {
	cfg := reliability.DefaultCircuitBreakerConfig("onemin")
	cfg.FailureThreshold = 1
	cb := reliability.NewCircuitBreaker(cfg)
	check := CircuitBreakerCheck(cb)

	assert.Equal(t, StatusHealthy, check.Check(context.Background()).Status)
	cb.RecordFailure()
	result := check.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "OPEN", result.Details["state"])
}

func TestCatalogAndDatabaseChecks(t *testing.T) {
	catalog, err := config.NewCatalog(config.CatalogConfig{})
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, CatalogCheck(catalog).Check(context.Background()).Status)

	assert.Equal(t, StatusHealthy, DatabaseCheck(pinger{}).Check(context.Background()).Status)
	down := DatabaseCheck(pinger{err: errors.New("ping failed")}).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, down.Status)
	assert.Equal(t, "ping failed", down.Message)
}

func TestHealthHandler(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck(staticCheck("app", StatusHealthy, true))
	hc.RegisterCheck(DatabaseCheck(pinger{err: errors.New("down")}))

	rr := httptest.NewRecorder()
	HealthHandler(hc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUnhealthy, report.Checks["usage_ledger"].Status)

	rr = httptest.NewRecorder()
	HealthHandler(hc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health?check=usage_ledger", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	HealthHandler(hc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health?check=nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck(staticCheck("app", StatusUnhealthy, true))

	rr := httptest.NewRecorder()
	HealthHandler(hc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
