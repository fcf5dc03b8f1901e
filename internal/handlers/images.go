package handlers

import (
	"net/http"
	"time"

	"github.com/tidwall/sjson"

	"github.com/aashari/go-onemin-gateway/internal/errors"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/resolver"
	"github.com/aashari/go-onemin-gateway/internal/types"
	"github.com/aashari/go-onemin-gateway/internal/validator"
)

// DefaultImageModel is used when an images request names no model.
const DefaultImageModel = "dall-e-3"

// ImageGenerationsHandler serves the OpenAI images API through the
// provider's IMAGE_GENERATOR tool.
// @Summary      Image generation API
// @Description  OpenAI-compatible image generation. Extra provider options (mode, aspect_width, style_code, leonardo_*) are passed through.
// @Tags         images
// @Accept       json
// @Produce      json
// @Param        request body      types.ImageGenerationRequest  true  "Image generation request"
// @Security     BearerAuth
// @Security     APIKeyAuth
// @Success      200     {object}  types.ImageGenerationResponse
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      401     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Failure      503     {object}  errors.ErrorResponse
// @Router       /v1/images/generations [post]
func (h *APIHandlers) ImageGenerationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()

	apiKey := extractAPIKey(r)
	if apiKey == "" {
		errors.HandleError(ctx, w, errors.NewInvalidAuthenticationError())
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		errors.HandleError(ctx, w, err)
		return
	}
	req, err := validator.ValidateImageRequest(body)
	if err != nil {
		errors.HandleError(ctx, w, err)
		return
	}
	if req.Model == "" {
		req.Model = DefaultImageModel
	}

	// The images API fields share their names with the chat tool options.
	body, err = sjson.SetBytes(body, "content_type", resolver.ContentImageGenerator)
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
	u := usage{endpoint: "images.generations", model: req.Model, started: started}

	if !h.catalog.IsPermitted(req.Model) {
		h.fail(ctx, w, r, u, errors.NewModelNotFoundError(req.Model))
		return
	}

	conv, err := h.resolver.Resolve(ctx, resolver.Request{
		APIKey:   apiKey,
		Model:    req.Model,
		Messages: []types.Message{{Role: "user", Content: types.NewTextContent(req.Prompt)}},
		Options:  opts,
	})
	if err != nil {
		h.fail(ctx, w, r, u, toAPIError(ctx, err))
		return
	}
	ctx = logger.WithConversationType(ctx, conv.Type)
	u.conv = conv
	u.prompt = h.counter.Estimate(conv.Prompt, req.Model)

	result, err := h.upstream.Complete(ctx, conv.FeatureRequest(apiKey, req.Model))
	if err != nil {
		h.fail(ctx, w, r, u, toAPIError(ctx, err))
		return
	}

	response := h.adapter.ToImageResponse(ctx, result)
	writeJSON(ctx, w, http.StatusOK, response)

	u.status = http.StatusOK
	h.record(ctx, r, u)

	logger.InfoCtx(ctx, "Image generation served",
		"images", len(response.Data),
		"duration_ms", time.Since(started).Milliseconds(),
		"stage", logger.LogStages.RequestCompleted)
}
