package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/test/fixtures"
	"github.com/aashari/go-onemin-gateway/test/helpers"
)

func TestErrorHandling(t *testing.T) {
	ts := helpers.SetupTestServer(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
		status  int
		errType string
		param   string
	}{
		{
			name:    "missing_credential",
			method:  http.MethodPost,
			path:    "/v1/chat/completions",
			body:    fixtures.BasicChatRequest(),
			headers: map[string]string{"API-KEY": ""},
			status:  http.StatusUnauthorized,
			errType: "invalid_request_error",
		},
		{
			name:    "empty_messages",
			method:  http.MethodPost,
			path:    "/v1/chat/completions",
			body:    map[string]any{"model": "gpt-4o", "messages": []any{}},
			status:  http.StatusBadRequest,
			errType: "invalid_request_error",
			param:   "messages",
		},
		{
			name:    "invalid_json_payload",
			method:  http.MethodPost,
			path:    "/v1/chat/completions",
			body:    `{"model": "gpt-4o", "messages": [`,
			status:  http.StatusBadRequest,
			errType: "invalid_request_error",
		},
		{
			name:    "bad_content_part",
			method:  http.MethodPost,
			path:    "/v1/chat/completions",
			body:    `{"messages":[{"role":"user","content":[{"type":"audio"}]}]}`,
			status:  http.StatusBadRequest,
			errType: "invalid_request_error",
			param:   "messages[0].content[0].type",
		},
		{
			name:    "model_without_vision",
			method:  http.MethodPost,
			path:    "/v1/chat/completions",
			body:    func() map[string]any { r := fixtures.VisionChatRequest(); r["model"] = "gpt-3.5-turbo"; return r }(),
			status:  http.StatusBadRequest,
			errType: "invalid_request_error",
			param:   "model",
		},
		{
			name:    "invalid_http_method",
			method:  http.MethodGet,
			path:    "/v1/chat/completions",
			status:  http.StatusMethodNotAllowed,
			errType: "invalid_request_error",
		},
		{
			name:    "unknown_path",
			method:  http.MethodGet,
			path:    "/v2/whatever",
			status:  http.StatusNotFound,
			errType: "invalid_request_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body, err := ts.MakeRequest(tt.method, tt.path, tt.body, tt.headers)
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode, string(body))

			var errBody helpers.ErrorBody
			ts.AssertJSONResponse(body, &errBody)
			assert.Equal(t, tt.errType, errBody.Error.Type)
			assert.NotEmpty(t, errBody.Error.Message)
			if tt.param != "" {
				require.NotNil(t, errBody.Error.Param)
				assert.Equal(t, tt.param, *errBody.Error.Param)
			}
		})
	}

	assert.Empty(t, ts.Upstream().CallsTo("/api/features"), "rejected requests must not reach the provider")
}

func TestProviderRejectsKey(t *testing.T) {
	cfg := helpers.DefaultTestConfig()
	cfg.FailureThreshold = 2
	ts := helpers.NewTestServer(t, cfg)
	ts.Upstream().FailFeatures(http.StatusUnauthorized)

	for range 3 {
		resp, body, err := ts.MakeRequest(http.MethodPost, "/v1/chat/completions", fixtures.BasicChatRequest(), nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var errBody helpers.ErrorBody
		ts.AssertJSONResponse(body, &errBody)
		assert.Equal(t, "authentication_error", errBody.Error.Type)
	}

	// A rejected key is the caller's problem and never opens the circuit.
	assert.Equal(t, "CLOSED", ts.App().Breaker.State().String())
	assert.Len(t, ts.Upstream().CallsTo("/api/features"), 3)
}

func TestCircuitBreakerOpens(t *testing.T) {
	cfg := helpers.DefaultTestConfig()
	cfg.FailureThreshold = 2
	ts := helpers.NewTestServer(t, cfg)
	ts.Upstream().FailFeatures(http.StatusInternalServerError)

	for range 2 {
		resp, body, err := ts.MakeRequest(http.MethodPost, "/v1/chat/completions", fixtures.BasicChatRequest(), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.False(t, strings.Contains(string(body), "provider failure"))
	}

	resp, body, err := ts.MakeRequest(http.MethodPost, "/v1/chat/completions", fixtures.BasicChatRequest(), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var errBody helpers.ErrorBody
	ts.AssertJSONResponse(body, &errBody)
	require.NotNil(t, errBody.Error.Code)
	assert.Equal(t, "upstream_unavailable", *errBody.Error.Code)
	assert.Len(t, ts.Upstream().CallsTo("/api/features"), 2, "open circuit must reject locally")

	health, healthBody, err := ts.MakeRequest(http.MethodGet, "/health", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Contains(t, string(healthBody), `"degraded"`)
}
