package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/aashari/go-onemin-gateway/internal/reliability"
)

type fakeProvider struct {
	server *httptest.Server
	hits   atomic.Int32
}

func newFakeProvider(t *testing.T, handler http.HandlerFunc) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(p.server.Close)
	return p
}

func newTestClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.SessionTimeout = 2 * time.Second
	cfg.RequestTimeout = 2 * time.Second

	breakerCfg := reliability.DefaultCircuitBreakerConfig("test")
	breakerCfg.IsFailure = CountsAgainstBreaker
	retry := reliability.NewRetryExecutor(reliability.RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})
	return NewClient(http.DefaultClient, cfg, reliability.NewCircuitBreaker(breakerCfg), retry)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func sessionRequest() SessionRequest {
	return SessionRequest{APIKey: "key-1", Model: "gpt-4o", Type: "CHAT_WITH_AI", Title: "Chat_gpt-4o"}
}

func TestCreateSession(t *testing.T) {
	var captured []byte
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversations", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "1min-Gateway/1.0", r.Header.Get("User-Agent"))
		captured, _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusCreated, `{"conversation":{"uuid":"conv-123","title":"x"}}`)
	})
	client := newTestClient(provider.server.URL)

	req := sessionRequest()
	req.Title = strings.Repeat("t", 120)
	req.FileIDs = []string{"file-1"}
	id, err := client.CreateSession(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "conv-123", id)
	assert.Equal(t, "CHAT_WITH_AI", gjson.GetBytes(captured, "type").String())
	assert.Len(t, gjson.GetBytes(captured, "title").String(), MaxTitleLength)
	assert.Equal(t, "file-1", gjson.GetBytes(captured, "fileList.0").String())
	assert.False(t, gjson.GetBytes(captured, "promptObject").Exists())
	assert.False(t, gjson.GetBytes(captured, "youtubeUrl").Exists())
}

func TestCreateSessionValidation(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"not json content type", "text/html", `{"conversation":{"uuid":"x"}}`},
		{"malformed body", "application/json", `{"conversation":`},
		{"missing uuid", "application/json", `{"conversation":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = io.WriteString(w, tt.body)
			})
			client := newTestClient(provider.server.URL)

			_, err := client.CreateSession(context.Background(), sessionRequest())
			var upErr *UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, http.StatusOK, upErr.StatusCode)
			assert.Equal(t, int32(1), provider.hits.Load(), "validation failures are not retried")
			assert.Equal(t, 1, client.Breaker().Stats()["failure_count"], "validation failures count against the breaker")
		})
	}
}

func TestCreateSessionRetriesTransientStatuses(t *testing.T) {
	var calls atomic.Int32
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			writeJSON(w, http.StatusServiceUnavailable, `{"error":"busy"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"conversation":{"uuid":"late"}}`)
	})
	client := newTestClient(provider.server.URL)

	id, err := client.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "late", id)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, reliability.StateClosed, client.Breaker().State())
}

func TestCreateSessionDoesNotRetryOtherStatuses(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message":"bad model"}`)
	})
	client := newTestClient(provider.server.URL)

	_, err := client.CreateSession(context.Background(), sessionRequest())
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadRequest, upErr.StatusCode)
	assert.False(t, upErr.IsRetriable())
	assert.Equal(t, int32(1), provider.hits.Load())
	assert.NotContains(t, upErr.Error(), "bad model", "upstream body stays out of the error text")
}

func TestCircuitOpensAndFailsFast(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotImplemented, `{}`)
	})
	client := newTestClient(provider.server.URL)

	for i := 0; i < 5; i++ {
		_, err := client.CreateSession(context.Background(), sessionRequest())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}
	hits := provider.hits.Load()

	_, err := client.CreateSession(context.Background(), sessionRequest())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "circuit_open", Outcome(err))
	assert.Equal(t, hits, provider.hits.Load(), "no network attempt while open")

	_, err = client.Complete(context.Background(), FeatureRequest{APIKey: "k", Model: "gpt-4o", Type: "CHAT_WITH_AI"})
	assert.ErrorIs(t, err, ErrCircuitOpen, "the breaker is shared by every operation")
}

func TestRejectedCredentialDoesNotTripBreaker(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"invalid key"}`)
	})
	client := newTestClient(provider.server.URL)

	for i := 0; i < 10; i++ {
		_, err := client.CreateSession(context.Background(), sessionRequest())
		assert.True(t, IsCredentialRejected(err))
	}
	assert.False(t, client.Breaker().IsOpen())
}

func TestCreateSessionTimeout(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client := newTestClient(provider.server.URL)
	client.config.SessionTimeout = 50 * time.Millisecond

	_, err := client.CreateSession(context.Background(), sessionRequest())
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, OpCreateSession, timeoutErr.Op)
	assert.Equal(t, 1, client.Breaker().Stats()["failure_count"])
}

func TestCreateSessionNetworkError(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {})
	url := provider.server.URL
	provider.server.Close()
	client := newTestClient(url)

	_, err := client.CreateSession(context.Background(), sessionRequest())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "network_error", Outcome(err))
}

func TestComplete(t *testing.T) {
	var captured []byte
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/features", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("isStreaming"))
		captured, _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusOK, `{"aiRecord":{"aiRecordDetail":{"resultObject":["hi"]}}}`)
	})
	client := newTestClient(provider.server.URL)

	var outcomes []string
	client.onCall = func(op, outcome string) { outcomes = append(outcomes, op+":"+outcome) }

	body, err := client.Complete(context.Background(), FeatureRequest{
		APIKey:         "k",
		Model:          "gpt-4o",
		Type:           "CHAT_WITH_AI",
		ConversationID: "CHAT_WITH_AI",
		PromptObject:   map[string]any{"prompt": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", gjson.GetBytes(body, "aiRecord.aiRecordDetail.resultObject.0").String())

	var sent map[string]any
	require.NoError(t, json.Unmarshal(captured, &sent))
	assert.Equal(t, map[string]any{
		"model":          "gpt-4o",
		"type":           "CHAT_WITH_AI",
		"conversationId": "CHAT_WITH_AI",
		"promptObject":   map[string]any{"prompt": "hello"},
	}, sent)
	assert.Equal(t, []string{"complete:success"}, outcomes)
}

func TestCompleteMalformedBody(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `not json`)
	})
	client := newTestClient(provider.server.URL)

	_, err := client.Complete(context.Background(), FeatureRequest{APIKey: "k", Model: "gpt-4o", Type: "CHAT_WITH_AI"})
	var upErr *UpstreamError
	assert.ErrorAs(t, err, &upErr)
}

func TestStreamOutlivesRequestTimeout(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("isStreaming"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		_, _ = io.WriteString(w, "data: {\"result\":\"A\"}\n")
	})
	client := newTestClient(provider.server.URL)
	client.config.RequestTimeout = 50 * time.Millisecond

	body, err := client.Stream(context.Background(), FeatureRequest{APIKey: "k", Model: "gpt-4o", Type: "CHAT_WITH_AI"})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"result\":\"A\"}\n", string(data))
}

func TestStreamErrorStatus(t *testing.T) {
	provider := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"message":"no credits"}`)
	})
	client := newTestClient(provider.server.URL)

	body, err := client.Stream(context.Background(), FeatureRequest{APIKey: "k", Model: "gpt-4o", Type: "CHAT_WITH_AI"})
	assert.Nil(t, body)
	assert.True(t, IsCredentialRejected(err))
}

func TestBuildSessionPayload(t *testing.T) {
	payload, err := BuildSessionPayload(SessionRequest{
		Model:        "gpt-4o",
		Type:         "CHAT_WITH_YOUTUBE_VIDEO",
		Title:        "héllo",
		YouTubeURL:   "https://www.youtube.com/watch?v=abc",
		PromptObject: map[string]any{"prompt": "summarize"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type":"CHAT_WITH_YOUTUBE_VIDEO",
		"title":"héllo",
		"model":"gpt-4o",
		"promptObject":{"prompt":"summarize"},
		"youtubeUrl":"https://www.youtube.com/watch?v=abc"
	}`, string(payload))

	assert.Equal(t, strings.Repeat("é", MaxTitleLength), truncateRunes(strings.Repeat("é", 100), MaxTitleLength))
}

func TestConfigEndpointsAndTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.1min.ai/"

	assert.Equal(t, "https://api.1min.ai/api/conversations", cfg.ConversationsURL())
	assert.Equal(t, "https://api.1min.ai/api/features", cfg.FeaturesURL())
	assert.Equal(t, "https://api.1min.ai/api/features?isStreaming=true", cfg.StreamingFeaturesURL())
	assert.Equal(t, "https://api.1min.ai/api/assets", cfg.AssetsURL())

	assert.Equal(t, cfg.ReasoningTimeout, cfg.TimeoutFor("o1-mini"))
	assert.Equal(t, cfg.ReasoningTimeout, cfg.TimeoutFor("o3"))
	assert.Equal(t, cfg.ReasoningTimeout, cfg.TimeoutFor("deepseek-reasoner"))
	assert.Equal(t, cfg.RequestTimeout, cfg.TimeoutFor("gpt-4o"))
	assert.Equal(t, cfg.RequestTimeout, cfg.TimeoutFor("gpt-4o1-custom"))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
}
