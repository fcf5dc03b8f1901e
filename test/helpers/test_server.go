package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/app"
	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// TestAPIKey is sent by MakeRequest unless the caller overrides it.
const TestAPIKey = "test-key"

// TestServer is a gateway wired to a FakeUpstream.
type TestServer struct {
	server     *httptest.Server
	app        *app.App
	upstream   *FakeUpstream
	httpClient *http.Client
	t          *testing.T
}

// TestConfig holds configuration for test server setup
type TestConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	SubsetOnly       []string
	ChatPerMinute    int
}

// DefaultTestConfig returns default configuration for tests
func DefaultTestConfig() TestConfig {
	return TestConfig{
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// NewTestServer starts a fake provider and a gateway pointing at it.
func NewTestServer(t *testing.T, testConfig TestConfig) *TestServer {
	t.Helper()

	if err := logger.Init(logger.Config{
		Level:       slog.LevelError,
		Format:      "json",
		Output:      "stderr",
		ServiceName: "onemin-gateway-test",
		Environment: "test",
	}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	upstream := NewFakeUpstream(t)

	cfg := config.FromEnv()
	cfg.Upstream.BaseURL = upstream.URL()
	cfg.Upstream.RequestTimeout = 5 * time.Second
	cfg.Upstream.ReasoningTimeout = 5 * time.Second
	cfg.Upstream.SessionTimeout = 5 * time.Second
	cfg.Reliability.FailureThreshold = testConfig.FailureThreshold
	cfg.Reliability.CircuitTimeout = time.Minute
	cfg.Reliability.RetryMax = 0
	cfg.Resolver.HistoryPolicy = "last_message"
	cfg.Resolver.SessionSkipMaxMessages = 2
	cfg.RateLimit.ChatPerMinute = testConfig.ChatPerMinute
	cfg.RateLimit.ModelsPerMinute = 0
	cfg.Catalog = config.CatalogConfig{
		PermitSubsetOnly: len(testConfig.SubsetOnly) > 0,
		Subset:           testConfig.SubsetOnly,
	}
	cfg.Database.URI = ""
	cfg.EnableSwagger = true

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	application.Start(context.Background())

	server := httptest.NewServer(application.Handler())
	ts := &TestServer{
		server:     server,
		app:        application,
		upstream:   upstream,
		httpClient: &http.Client{Timeout: testConfig.Timeout},
		t:          t,
	}
	t.Cleanup(ts.Close)
	return ts
}

// SetupTestServer starts a server with DefaultTestConfig.
func SetupTestServer(t *testing.T) *TestServer {
	return NewTestServer(t, DefaultTestConfig())
}

// Close shuts down the gateway.
func (ts *TestServer) Close() {
	if ts.server != nil {
		ts.server.Close()
		ts.server = nil
		_ = ts.app.Close(context.Background())
	}
}

// URL returns the base URL of the test server
func (ts *TestServer) URL() string { return ts.server.URL }

// App returns the application instance
func (ts *TestServer) App() *app.App { return ts.app }

// Upstream returns the fake provider.
func (ts *TestServer) Upstream() *FakeUpstream { return ts.upstream }

// HTTPClient returns the client used by MakeRequest.
func (ts *TestServer) HTTPClient() *http.Client { return ts.httpClient }

// NewRequest builds a request to the gateway with the test API key set.
func (ts *TestServer) NewRequest(method, endpoint string, body any) *http.Request {
	ts.t.Helper()
	var reqBody io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		jsonBody, err := json.Marshal(b)
		if err != nil {
			ts.t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, ts.server.URL+endpoint, reqBody)
	if err != nil {
		ts.t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-KEY", TestAPIKey)
	return req
}

// MakeRequest sends a request to the gateway and reads the whole response.
// A header with an empty value removes the default.
func (ts *TestServer) MakeRequest(method, endpoint string, body any, headers map[string]string) (*http.Response, []byte, error) {
	req := ts.NewRequest(method, endpoint, body)
	for key, value := range headers {
		if value == "" {
			req.Header.Del(key)
			continue
		}
		req.Header.Set(key, value)
	}

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to make request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return resp, respBody, nil
}

// AssertJSONResponse asserts that the response body is valid JSON and unmarshals it
func (ts *TestServer) AssertJSONResponse(body []byte, target any) {
	ts.t.Helper()
	if err := json.Unmarshal(body, target); err != nil {
		ts.t.Fatalf("Failed to parse JSON response: %v\nBody: %s", err, string(body))
	}
}

// ErrorBody is the OpenAI error envelope.
type ErrorBody struct {
	Error struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   *string `json:"param"`
		Code    *string `json:"code"`
	} `json:"error"`
}
