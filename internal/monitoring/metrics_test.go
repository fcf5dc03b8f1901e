package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/internal/reliability"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/models/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/models/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/v1/models/{id}", "GET", "418")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "GET", "404")))
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.RecordUpstreamCall("complete", "success")
	m.RecordUpstreamCall("complete", "success")
	m.RecordUpstreamCall("stream", "timeout")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("complete", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("stream", "timeout")))

	m.RecordBreakerState("onemin", reliability.StateClosed, reliability.StateOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("onemin")))
	m.RecordBreakerState("onemin", reliability.StateOpen, reliability.StateHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("onemin")))

	m.RecordTokens("gpt-4o", 10, 0)
	m.RecordTokens("gpt-4o", 5, 7)
	assert.Equal(t, 15.0, testutil.ToFloat64(m.tokens.WithLabelValues("gpt-4o", TokenKindPrompt)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.tokens.WithLabelValues("gpt-4o", TokenKindCompletion)))

	m.RecordAssetUpload("too_large")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assetUploads.WithLabelValues("too_large")))

	m.RecordRateLimited("chat")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("chat")))

	m.RecordUsageDropped()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.usageDropped))
}

func TestHandlerExposition(t *testing.T) {
	m := NewMetrics()
	m.RecordUpstreamCall("create_session", "upstream_error")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body),
		`onemin_gateway_upstream_requests_total{operation="create_session",outcome="upstream_error"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordAssetUpload("success")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.assetUploads.WithLabelValues("success")))
}

func TestPprofRoutes(t *testing.T) {
	r := chi.NewRouter()
	SetupPprofRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
