// Package upstream talks to the 1min.ai API: conversation (session)
// creation, feature completions and their streaming variant. Every call goes
// through one shared circuit breaker and a status-based retry policy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/reliability"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

const (
	OpCreateSession = "create_session"
	OpComplete      = "complete"
	OpStream        = "stream"
)

// MaxTitleLength is the provider's limit on conversation titles.
const MaxTitleLength = 90

const maxErrorBody = 64 << 10

// Config holds the upstream endpoints and timeouts.
type Config struct {
	BaseURL          string
	SessionTimeout   time.Duration
	RequestTimeout   time.Duration
	ReasoningTimeout time.Duration
}

// DefaultConfig points at https://api.1min.ai.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://api.1min.ai",
		SessionTimeout:   20 * time.Second,
		RequestTimeout:   60 * time.Second,
		ReasoningTimeout: 120 * time.Second,
	}
}

func (c Config) base() string { return strings.TrimRight(c.BaseURL, "/") }

// ConversationsURL is the session-creation endpoint.
func (c Config) ConversationsURL() string { return c.base() + "/api/conversations" }

// FeaturesURL is the batch completion endpoint.
func (c Config) FeaturesURL() string { return c.base() + "/api/features" }

// StreamingFeaturesURL is the streaming completion endpoint.
func (c Config) StreamingFeaturesURL() string { return c.base() + "/api/features?isStreaming=true" }

// AssetsURL is the asset upload endpoint.
func (c Config) AssetsURL() string { return c.base() + "/api/assets" }

// TimeoutFor returns the completion timeout for model; reasoning model
// families get the longer budget.
func (c Config) TimeoutFor(model string) time.Duration {
	if IsReasoningModel(model) {
		return c.ReasoningTimeout
	}
	return c.RequestTimeout
}

// IsReasoningModel matches the o-series and *-reasoner / *thinking models.
func IsReasoningModel(model string) bool {
	m := strings.ToLower(model)
	if strings.Contains(m, "reasoner") || strings.Contains(m, "thinking") {
		return true
	}
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if m == prefix || strings.HasPrefix(m, prefix+"-") {
			return true
		}
	}
	return false
}

// SessionRequest describes a conversation to create upstream.
type SessionRequest struct {
	APIKey       string
	Model        string
	Type         string
	Title        string
	FileIDs      []string
	YouTubeURL   string
	PromptObject map[string]any
}

// FeatureRequest is the completion payload.
type FeatureRequest struct {
	APIKey         string
	Model          string
	Type           string
	ConversationID string
	PromptObject   map[string]any
}

// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	config  Config
	breaker *reliability.CircuitBreaker
	retry   *reliability.RetryExecutor
	onCall  func(operation, outcome string)
}

// Option customizes a Client.
type Option func(*Client)

// WithCallObserver registers a hook receiving every call's outcome.
func WithCallObserver(fn func(operation, outcome string)) Option {
	return func(c *Client) { c.onCall = fn }
}

// NewClient wires a client. breaker is shared process-wide; pass the same
// instance to every Client that targets the same upstream.
func NewClient(httpClient *http.Client, config Config, breaker *reliability.CircuitBreaker, retry *reliability.RetryExecutor, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if breaker == nil {
		cfg := reliability.DefaultCircuitBreakerConfig("1min")
		cfg.IsFailure = CountsAgainstBreaker
		breaker = reliability.NewCircuitBreaker(cfg)
	}
	if retry == nil {
		retry = reliability.NewRetryExecutor(reliability.DefaultRetryConfig())
	}
	c := &Client{http: httpClient, config: config, breaker: breaker, retry: retry}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.config }

// Breaker exposes the shared breaker for health reporting.
func (c *Client) Breaker() *reliability.CircuitBreaker { return c.breaker }

// CreateSession creates an upstream conversation and returns its uuid. A 2xx
// answer without a JSON body carrying conversation.uuid is a failure.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (string, error) {
	payload, err := BuildSessionPayload(req)
	if err != nil {
		return "", err
	}
	c.debugPayload(ctx, "Creating upstream session", payload)

	var sessionID string
	err = c.call(ctx, OpCreateSession, func() error {
		resp, body, err := c.send(ctx, OpCreateSession, c.config.ConversationsURL(), req.APIKey, payload, c.config.SessionTimeout, false)
		if err != nil {
			return err
		}
		if !strings.Contains(resp.Header.Get(utils.HeaderContentType), "application/json") {
			return &UpstreamError{Op: OpCreateSession, StatusCode: resp.StatusCode, Reason: "response is not JSON", Body: string(body)}
		}
		if !gjson.ValidBytes(body) {
			return &UpstreamError{Op: OpCreateSession, StatusCode: resp.StatusCode, Reason: "malformed JSON body", Body: string(body)}
		}
		sessionID = gjson.GetBytes(body, "conversation.uuid").String()
		if sessionID == "" {
			return &UpstreamError{Op: OpCreateSession, StatusCode: resp.StatusCode, Reason: "response has no conversation.uuid", Body: string(body)}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	logger.InfoCtx(ctx, "Upstream session created",
		"session_id", sessionID,
		"conversation_type", req.Type,
		"stage", logger.LogStages.SessionCreation)
	return sessionID, nil
}

// Complete sends a batch feature request and returns the raw JSON answer.
func (c *Client) Complete(ctx context.Context, req FeatureRequest) ([]byte, error) {
	payload, err := BuildFeaturePayload(req)
	if err != nil {
		return nil, err
	}
	c.debugPayload(ctx, "Sending feature request", payload)

	var result []byte
	err = c.call(ctx, OpComplete, func() error {
		_, body, err := c.send(ctx, OpComplete, c.config.FeaturesURL(), req.APIKey, payload, c.config.TimeoutFor(req.Model), false)
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(body) {
			return &UpstreamError{Op: OpComplete, StatusCode: http.StatusOK, Reason: "malformed JSON body", Body: string(body)}
		}
		result = body
		return nil
	})
	return result, err
}

// Stream opens the streaming feature endpoint and returns the body once the
// provider has answered with a 2xx status. The caller must Close it; closing
// also releases the connection when the client went away mid-stream.
func (c *Client) Stream(ctx context.Context, req FeatureRequest) (io.ReadCloser, error) {
	payload, err := BuildFeaturePayload(req)
	if err != nil {
		return nil, err
	}
	c.debugPayload(ctx, "Opening feature stream", payload)

	var body io.ReadCloser
	err = c.call(ctx, OpStream, func() error {
		resp, _, err := c.send(ctx, OpStream, c.config.StreamingFeaturesURL(), req.APIKey, payload, c.config.TimeoutFor(req.Model), true)
		if err != nil {
			return err
		}
		body = resp.Body
		return nil
	})
	return body, err
}

// call runs attempt under the breaker with retries and reports the outcome.
func (c *Client) call(ctx context.Context, op string, attempt func() error) error {
	err := c.breaker.Execute(ctx, func() error {
		return c.retry.ExecuteWithRetry(ctx, attempt)
	})
	if c.onCall != nil {
		c.onCall(op, Outcome(err))
	}
	if err != nil {
		logger.WarnCtx(ctx, "Upstream call failed",
			"operation", op,
			"outcome", Outcome(err),
			"error", err,
			"circuit_state", c.breaker.State().String(),
			"stage", logger.LogStages.UpstreamResponse)
	}
	return err
}

// send performs one HTTP attempt. The timeout covers connecting and, for
// batch calls, reading the body; for streams it stops at the response
// headers so long generations are not cut off.
func (c *Client) send(ctx context.Context, op, url, apiKey string, payload []byte, timeout time.Duration, stream bool) (*http.Response, []byte, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	release := func() {
		timer.Stop()
		cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set(utils.HeaderAPIKey, apiKey)
	req.Header.Set(utils.HeaderContentType, utils.ContentTypeJSON)
	req.Header.Set(utils.HeaderUserAgent, utils.UserAgent)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	logger.DebugCtx(ctx, "Calling upstream",
		"operation", op,
		"url", url,
		"stage", logger.LogStages.UpstreamRequest)

	resp, err := c.http.Do(req)
	if err != nil {
		fired := timedOut.Load()
		release()
		return nil, nil, classifyTransportError(op, timeout, fired, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		release()
		return nil, nil, &UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
			Body:       string(body),
			retriable:  c.retry.IsRetryableStatus(resp.StatusCode),
			retryAfter: parseRetryAfter(resp.Header.Get(utils.HeaderRetryAfter)),
		}
	}

	if stream {
		timer.Stop()
		if timedOut.Load() {
			resp.Body.Close()
			cancel()
			return nil, nil, &TimeoutError{Op: op, Timeout: timeout}
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	fired := timedOut.Load()
	release()
	if err != nil {
		return nil, nil, classifyTransportError(op, timeout, fired, err)
	}
	return resp, body, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func (c *Client) debugPayload(ctx context.Context, msg string, payload []byte) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return
	}
	logger.DebugCtx(ctx, msg, "payload", utils.Redact(decoded))
}

// BuildSessionPayload renders {type, title, model, promptObject?, fileList?,
// youtubeUrl?}; optional fields are left out rather than sent as null.
func BuildSessionPayload(req SessionRequest) ([]byte, error) {
	payload := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			payload, err = sjson.SetBytes(payload, path, value)
		}
	}

	set("type", req.Type)
	set("title", truncateRunes(req.Title, MaxTitleLength))
	set("model", req.Model)
	if len(req.PromptObject) > 0 {
		set("promptObject", req.PromptObject)
	}
	if len(req.FileIDs) > 0 {
		set("fileList", req.FileIDs)
	}
	if req.YouTubeURL != "" {
		set("youtubeUrl", req.YouTubeURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build session payload: %w", err)
	}
	return payload, nil
}

// BuildFeaturePayload renders {model, type, conversationId?, promptObject}.
func BuildFeaturePayload(req FeatureRequest) ([]byte, error) {
	payload := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			payload, err = sjson.SetBytes(payload, path, value)
		}
	}

	set("model", req.Model)
	set("type", req.Type)
	if req.ConversationID != "" {
		set("conversationId", req.ConversationID)
	}
	if req.PromptObject == nil {
		set("promptObject", map[string]any{})
	} else {
		set("promptObject", req.PromptObject)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build feature payload: %w", err)
	}
	return payload, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
