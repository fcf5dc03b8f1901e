package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(logger.RequestIDFromContext(r.Context())))
}

func TestCorrelationGeneratesRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	RequestCorrelationMiddleware(http.HandlerFunc(okHandler)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	id := rr.Header().Get(RequestIDHeader)
	require.Len(t, id, 16)
	assert.Equal(t, id, rr.Header().Get(CorrelationIDHeader))
	assert.Equal(t, id, rr.Body.String())
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestCorrelationKeepsClientIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4o"}`))
	req.Header.Set(RequestIDHeader, "client-req")
	req.Header.Set(CorrelationIDHeader, "client-corr")

	var body string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		body = buf.String()
		okHandler(w, r)
	})

	rr := httptest.NewRecorder()
	RequestCorrelationMiddleware(handler).ServeHTTP(rr, req)

	assert.Equal(t, "client-req", rr.Header().Get(RequestIDHeader))
	assert.Equal(t, "client-corr", rr.Header().Get(CorrelationIDHeader))
	assert.Equal(t, `{"model":"gpt-4o"}`, body)
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := RequestCorrelationMiddleware(CORSMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, called)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "API-KEY")
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestStatusRecorderFlushes(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewStatusRecorder(rr)
	_, _ = rec.Write([]byte("data: x\n\n"))
	rec.Flush()

	assert.True(t, rr.Flushed)
	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Equal(t, int64(9), rec.BytesWritten())
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter("chat", 2)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, wait := rl.Allow("1.1.1.1")
	assert.False(t, ok)
	assert.Positive(t, wait)

	ok, _ = rl.Allow("2.2.2.2")
	assert.True(t, ok, "buckets are per client")

	now = now.Add(30 * time.Second)
	ok, _ = rl.Allow("1.1.1.1")
	assert.True(t, ok, "one token refills every 30s at 2/min")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter("models", 0)
	for i := 0; i < 100; i++ {
		ok, _ := rl.Allow("x")
		require.True(t, ok)
	}
}

func TestRateLimiterMiddlewareRejects(t *testing.T) {
	var limited []string
	rl := NewRateLimiter("models", 1).OnLimited(func(name string) { limited = append(limited, name) })
	h := rl.Middleware(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	first := httptest.NewRecorder()
	h.ServeHTTP(first, req)
	assert.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, []string{"models"}, limited)

	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_error", body.Error.Type)
}
