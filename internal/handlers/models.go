package handlers

import (
	"net/http"

	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/types"
)

// ModelOwner is the owned_by value of every listed model.
const ModelOwner = "1min-gateway"

// ModelsHandler handles the models endpoint
// @Summary      List available models
// @Description  Lists the permitted subset when PERMIT_MODELS_FROM_SUBSET_ONLY is set, every chat model otherwise
// @Tags         models
// @Produce      json
// @Success      200     {object}  types.ModelsResponse "List of available models"
// @Router       /v1/models [get]
func (h *APIHandlers) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids := h.catalog.Listed()
	response := types.ModelsResponse{Object: "list", Data: make([]types.Model, 0, len(ids))}
	for _, id := range ids {
		response.Data = append(response.Data, types.Model{
			ID:      id,
			Object:  "model",
			OwnedBy: ModelOwner,
			Created: config.ModelCreated,
		})
	}

	logger.DebugCtx(ctx, "Models list generated",
		"subset_only", h.catalog.SubsetOnly(),
		"response_count", len(response.Data))

	writeJSON(ctx, w, http.StatusOK, response)
}
