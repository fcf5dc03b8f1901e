package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"github.com/aashari/go-onemin-gateway/internal/adapter"
	"github.com/aashari/go-onemin-gateway/internal/errors"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/resolver"
	"github.com/aashari/go-onemin-gateway/internal/upstream"
	"github.com/aashari/go-onemin-gateway/internal/utils"
	"github.com/aashari/go-onemin-gateway/internal/validator"
)

// ChatCompletionsHandler handles the chat completions endpoint
// @Summary      Chat completions API
// @Description  OpenAI-compatible chat completions. Image parts are uploaded to the provider, PDF and YouTube chats get a provider session, and content_type selects a feature tool (IMAGE_GENERATOR, SUMMARIZER, CONTENT_TRANSLATOR, ...).
// @Tags         chat
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        request body      types.ChatCompletionRequest  true  "Chat completion request in OpenAI-compatible format"
// @Security     BearerAuth
// @Security     APIKeyAuth
// @Success      200     {object}  types.ChatCompletion  "OpenAI-compatible chat completion response"
// @Failure      400     {object}  errors.ErrorResponse  "Bad request error"
// @Failure      401     {object}  errors.ErrorResponse  "Missing credential"
// @Failure      404     {object}  errors.ErrorResponse  "Model not permitted"
// @Failure      413     {object}  errors.ErrorResponse  "Image too large"
// @Failure      429     {object}  errors.ErrorResponse  "Rate limited"
// @Failure      500     {object}  errors.ErrorResponse  "Internal server error"
// @Failure      503     {object}  errors.ErrorResponse  "Provider unavailable"
// @Router       /v1/chat/completions [post]
func (h *APIHandlers) ChatCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()

	apiKey := extractAPIKey(r)
	if apiKey == "" {
		logger.WarnCtx(ctx, "Request without API key", "stage", logger.LogStages.RequestValidated)
		errors.HandleError(ctx, w, errors.NewInvalidAuthenticationError())
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		errors.HandleError(ctx, w, err)
		return
	}
	req, err := validator.ValidateChatRequest(body)
	if err != nil {
		errors.HandleError(ctx, w, err)
		return
	}
	opts, err := resolver.ParseOptions(body)
	if err != nil {
		errors.HandleError(ctx, w, toAPIError(ctx, err))
		return
	}

	ctx = logger.WithModel(ctx, req.Model)
	u := usage{endpoint: "chat.completions", model: req.Model, started: started, stream: req.Stream}

	if !h.catalog.IsPermitted(req.Model) {
		h.fail(ctx, w, r, u, errors.NewModelNotFoundError(req.Model))
		return
	}
	if _, isChat := opts.(resolver.ChatOptions); isChat &&
		req.Messages[len(req.Messages)-1].Content.HasImages() && !h.catalog.SupportsVision(req.Model) {
		h.fail(ctx, w, r, u, errors.NewModelNoVisionError(req.Model))
		return
	}

	logger.InfoCtx(ctx, "Chat completion request validated",
		"messages", len(req.Messages),
		"stream", req.Stream,
		"stage", logger.LogStages.RequestValidated)

	conv, err := h.resolver.Resolve(ctx, resolver.Request{
		APIKey:   apiKey,
		Model:    req.Model,
		Messages: req.Messages,
		Options:  opts,
	})
	if err != nil {
		h.fail(ctx, w, r, u, toAPIError(ctx, err))
		return
	}
	ctx = logger.WithConversationType(ctx, conv.Type)
	u.conv = conv
	u.prompt = h.counter.Estimate(conv.Prompt, req.Model)

	feature := conv.FeatureRequest(apiKey, req.Model)
	if !req.Stream {
		h.complete(ctx, w, r, u, feature)
		return
	}
	if conv.IsTool() {
		h.streamToolResult(ctx, w, r, u, feature)
		return
	}
	h.stream(ctx, w, r, u, feature)
}

func (h *APIHandlers) complete(ctx context.Context, w http.ResponseWriter, r *http.Request, u usage, feature upstream.FeatureRequest) {
	body, err := h.upstream.Complete(ctx, feature)
	if err != nil {
		h.fail(ctx, w, r, u, toAPIError(ctx, err))
		return
	}

	completion := h.adapter.ToCompletion(ctx, body, u.model, u.prompt)
	writeJSON(ctx, w, http.StatusOK, completion)

	u.output = completion.Usage.CompletionTokens
	u.status = http.StatusOK
	h.record(ctx, r, u)

	logger.InfoCtx(ctx, "Chat completion served",
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"duration_ms", time.Since(u.started).Milliseconds(),
		"stage", logger.LogStages.RequestCompleted)
}

// stream opens the provider stream before writing anything, so failures up
// to that point still get a JSON error.
func (h *APIHandlers) stream(ctx context.Context, w http.ResponseWriter, r *http.Request, u usage, feature upstream.FeatureRequest) {
	src, err := h.upstream.Stream(ctx, feature)
	if err != nil {
		h.fail(ctx, w, r, u, toAPIError(ctx, err))
		return
	}
	defer src.Close()

	h.relay(ctx, w, r, u, src)
}

// streamToolResult answers a streaming request for a feature tool. Tools
// have no streaming endpoint, so the batch result is sent as one SSE chunk.
func (h *APIHandlers) streamToolResult(ctx context.Context, w http.ResponseWriter, r *http.Request, u usage, feature upstream.FeatureRequest) {
	body, err := h.upstream.Complete(ctx, feature)
	if err != nil {
		h.fail(ctx, w, r, u, toAPIError(ctx, err))
		return
	}
	text := adapter.ExtractResult(body)
	if text == "" {
		text = adapter.NoContentPlaceholder
	}
	line, err := sjson.Set("", "result", text)
	if err != nil {
		h.fail(ctx, w, r, u, err)
		return
	}
	h.relay(ctx, w, r, u, strings.NewReader("data: "+line+"\n"))
}

func (h *APIHandlers) relay(ctx context.Context, w http.ResponseWriter, r *http.Request, u usage, src io.Reader) {
	header := w.Header()
	header.Set(utils.HeaderContentType, utils.ContentTypeEventStreamUTF8)
	header.Set(utils.HeaderCacheControl, utils.CacheControlNoCache)
	header.Set(utils.HeaderConnection, utils.ConnectionKeepAlive)
	header.Set(utils.HeaderXAccelBuffering, "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	stream := h.adapter.NewStream(u.model, u.prompt)
	logger.InfoCtx(ctx, "Streaming response started",
		"completion_id", stream.ID(),
		"stage", logger.LogStages.StreamStart)

	result, err := stream.Run(ctx, src, func(frame []byte) error {
		if _, err := w.Write(frame); err != nil {
			return err
		}
		return rc.Flush()
	})

	u.status = http.StatusOK
	u.chunks = result.Chunks
	u.output = result.Usage.CompletionTokens

	switch {
	case err == nil:
		logger.InfoCtx(ctx, "Streaming response completed",
			"chunks", result.Chunks,
			"completion_tokens", result.Usage.CompletionTokens,
			"duration_ms", time.Since(u.started).Milliseconds(),
			"stage", logger.LogStages.StreamCompleted)
	case stderrors.Is(err, context.Canceled) || ctx.Err() != nil:
		u.errType = "client_disconnected"
		logger.InfoCtx(ctx, "Client disconnected during stream",
			"chunks", result.Chunks,
			"stage", logger.LogStages.StreamFailed)
	default:
		u.errType = "stream_error"
		logger.ErrorCtx(ctx, "Streaming response failed",
			"error", err.Error(),
			"chunks", result.Chunks,
			"stage", logger.LogStages.StreamFailed)
	}
	h.record(ctx, r, u)
}
