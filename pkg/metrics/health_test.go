package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealthRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.components = make(map[string]ComponentHealth)
	registry.critical = nil
	registry.startTime = time.Now()
}

func TestGetHealthAggregatesComponents(t *testing.T) {
	resetHealthRegistry()

	ReportComponent("router", true, "")
	ReportComponent("watcher", true, "")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["router"])
	assert.Equal(t, "healthy", health.Components["watcher"])

	ReportComponent("watcher", false, "probe loop stalled")

	health = GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: probe loop stalled", health.Components["watcher"])
	assert.Equal(t, "healthy", health.Components["router"], "one bad component does not taint the others")
}

func TestReportComponentOverwrites(t *testing.T) {
	resetHealthRegistry()

	ReportComponent("store", false, "opening")
	assert.Equal(t, "unhealthy", GetHealth().Status)

	ReportComponent("store", true, "")
	assert.Equal(t, "healthy", GetHealth().Status)
}

func TestGetReadinessWaitsForCriticalComponents(t *testing.T) {
	resetHealthRegistry()
	SetCriticalComponents("router", "watcher")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Equal(t, "not registered", readiness.Components["router"])

	ReportComponent("router", true, "")
	readiness = GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status, "one critical component is still missing")

	ReportComponent("watcher", true, "")
	readiness = GetReadiness()
	assert.Equal(t, "ready", readiness.Status)
	assert.Empty(t, readiness.Message)
}

func TestGetReadinessDefaultsToAllComponents(t *testing.T) {
	resetHealthRegistry()

	ReportComponent("router", true, "")
	ReportComponent("store", false, "bucket unreachable")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Equal(t, "not ready: bucket unreachable", readiness.Components["store"])
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	resetHealthRegistry()
	ReportComponent("router", true, "")

	rec := httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.Uptime)

	ReportComponent("router", false, "stopped")

	rec = httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	resetHealthRegistry()
	SetCriticalComponents("router")

	rec := httptest.NewRecorder()
	ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ReportComponent("router", true, "")

	rec = httptest.NewRecorder()
	ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var readiness HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &readiness))
	assert.Equal(t, "ready", readiness.Status)
}
