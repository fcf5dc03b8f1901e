package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/adapter"
	"github.com/aashari/go-onemin-gateway/internal/assets"
	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/database"
	"github.com/aashari/go-onemin-gateway/internal/errors"
	"github.com/aashari/go-onemin-gateway/internal/health"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/middleware"
	"github.com/aashari/go-onemin-gateway/internal/resolver"
	"github.com/aashari/go-onemin-gateway/internal/tokens"
	"github.com/aashari/go-onemin-gateway/internal/upstream"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// DefaultMaxBodyBytes bounds inbound request bodies. Inline images are
// base64, so this sits well above the asset cap.
const DefaultMaxBodyBytes = 32 << 20

// Upstream is the part of upstream.Client the handlers call.
type Upstream interface {
	Complete(ctx context.Context, req upstream.FeatureRequest) ([]byte, error)
	Stream(ctx context.Context, req upstream.FeatureRequest) (io.ReadCloser, error)
}

// ContextResolver is implemented by resolver.Resolver.
type ContextResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (*resolver.ConversationContext, error)
}

// TokenMetrics receives token estimates per model.
type TokenMetrics interface {
	RecordTokens(model string, prompt, completion int)
}

type nopTokenMetrics struct{}

func (nopTokenMetrics) RecordTokens(string, int, int) {}

// Deps are the collaborators of APIHandlers. Usage, Stats, Metrics and
// Health are optional.
type Deps struct {
	Catalog      *config.Catalog
	Resolver     ContextResolver
	Upstream     Upstream
	Adapter      *adapter.Adapter
	Counter      tokens.Counter
	Usage        database.UsageRecorder
	Stats        UsageStats
	Metrics      TokenMetrics
	Health       *health.HealthChecker
	MaxBodyBytes int64
}

// APIHandlers serves the OpenAI-compatible endpoints.
type APIHandlers struct {
	catalog      *config.Catalog
	resolver     ContextResolver
	upstream     Upstream
	adapter      *adapter.Adapter
	counter      tokens.Counter
	usage        database.UsageRecorder
	stats        UsageStats
	metrics      TokenMetrics
	health       *health.HealthChecker
	maxBodyBytes int64
	now          func() time.Time
}

// NewAPIHandlers creates a new APIHandlers instance
func NewAPIHandlers(deps Deps) *APIHandlers {
	h := &APIHandlers{
		catalog:      deps.Catalog,
		resolver:     deps.Resolver,
		upstream:     deps.Upstream,
		adapter:      deps.Adapter,
		counter:      deps.Counter,
		usage:        deps.Usage,
		stats:        deps.Stats,
		metrics:      deps.Metrics,
		health:       deps.Health,
		maxBodyBytes: deps.MaxBodyBytes,
		now:          time.Now,
	}
	if h.counter == nil {
		h.counter = tokens.New()
	}
	if h.adapter == nil {
		h.adapter = adapter.New(h.counter)
	}
	if h.usage == nil {
		h.usage = database.NopRecorder{}
	}
	if h.metrics == nil {
		h.metrics = nopTokenMetrics{}
	}
	if h.health == nil {
		h.health = health.NewHealthChecker()
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = DefaultMaxBodyBytes
	}
	return h
}

// HealthHandler reports component health
// @Summary      Health check endpoint
// @Description  Runs every registered component check. Answers 503 when a critical check fails.
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.Report
// @Failure      503  {object}  health.Report
// @Router       /health [get]
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health.HealthHandler(h.health).ServeHTTP(w, r)
}

// RootHandler answers "/" with the health report.
// @Summary      Service root
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.Report
// @Router       / [get]
func (h *APIHandlers) RootHandler(w http.ResponseWriter, r *http.Request) {
	h.HealthHandler(w, r)
}

// extractAPIKey reads the caller's provider key from API-KEY or from a
// bearer Authorization header.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(utils.HeaderAPIKey)); key != "" {
		return key
	}
	auth := strings.TrimSpace(r.Header.Get(utils.HeaderAuthorization))
	if len(auth) > len(utils.BearerPrefix) && strings.EqualFold(auth[:len(utils.BearerPrefix)], utils.BearerPrefix) {
		return strings.TrimSpace(auth[len(utils.BearerPrefix):])
	}
	return ""
}

// readBody reads the request body up to the configured cap.
func (h *APIHandlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewAPIError(http.StatusRequestEntityTooLarge, errors.ErrorTypeInvalidRequest,
				"Request body too large.", "", errors.CodeFileTooLarge)
		}
		return nil, errors.NewAPIError(http.StatusBadRequest, errors.ErrorTypeInvalidRequest,
			"Could not read request body.", "", errors.CodeInvalidRequest)
	}
	return body, nil
}

// toAPIError maps resolver and upstream failures onto client errors.
// Provider details stay in the logs.
func toAPIError(ctx context.Context, err error) error {
	var (
		apiErr   *errors.APIError
		optErr   *resolver.OptionError
		upErr    *upstream.UpstreamError
		assetErr *assets.UpstreamError
	)
	switch {
	case stderrors.As(err, &apiErr):
		return apiErr
	case stderrors.As(err, &optErr):
		return errors.NewValidationError(optErr.Message, optErr.Param)
	case stderrors.Is(err, assets.ErrTooLarge):
		return errors.NewFileTooLargeError(err.Error())
	case stderrors.Is(err, upstream.ErrCircuitOpen):
		return errors.NewUpstreamUnavailableError()
	case upstream.IsCredentialRejected(err), stderrors.Is(err, assets.ErrAuth):
		return errors.NewInvalidAPIKeyError()
	case stderrors.As(err, &upErr) && upErr.StatusCode == http.StatusTooManyRequests:
		return errors.NewRateLimitError()
	case stderrors.As(err, &assetErr):
		logger.ErrorCtx(ctx, "Asset upload rejected by provider",
			"status_code", assetErr.StatusCode,
			"stage", logger.LogStages.AssetUpload)
		return errors.NewInternalError()
	}
	logger.ErrorCtx(ctx, "Upstream call failed",
		"error", err.Error(),
		"outcome", upstream.Outcome(err),
		"stage", logger.LogStages.RequestFailed)
	return errors.NewInternalError()
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errors.HandleError(ctx, w, err)
		return
	}
	w.Header().Set(utils.HeaderContentType, utils.ContentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.WarnCtx(ctx, "Failed to write response", "error", err.Error(), "response_size", len(body))
	}
}

// usage collects what the ledger records about one request.
type usage struct {
	endpoint string
	model    string
	started  time.Time
	conv     *resolver.ConversationContext
	stream   bool
	chunks   int
	prompt   int
	output   int
	status   int
	errType  string
}

func (h *APIHandlers) record(ctx context.Context, r *http.Request, u usage) {
	h.metrics.RecordTokens(u.model, u.prompt, u.output)

	rec := database.UsageRecord{
		RequestID:        logger.RequestIDFromContext(ctx),
		Endpoint:         u.endpoint,
		Model:            u.model,
		IsStreaming:      u.stream,
		StreamChunks:     u.chunks,
		PromptTokens:     u.prompt,
		CompletionTokens: u.output,
		TotalTokens:      u.prompt + u.output,
		StatusCode:       u.status,
		ErrorType:        u.errType,
		DurationMs:       time.Since(u.started).Milliseconds(),
		ClientIP:         middleware.ClientIP(r),
		RequestedAt:      u.started.UTC(),
	}
	if u.conv != nil {
		rec.ConversationType = u.conv.Type
		rec.SessionSource = u.conv.SessionSource
		rec.ImageCount = len(u.conv.ImagePaths)
	}
	h.usage.Record(ctx, rec)
}

// fail writes err and records the failed request.
func (h *APIHandlers) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, u usage, err error) {
	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		apiErr = errors.NewInternalError()
	}
	errors.HandleError(ctx, w, apiErr)
	u.status = apiErr.Status
	u.errType = string(apiErr.Type)
	h.record(ctx, r, u)
}
