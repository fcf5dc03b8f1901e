package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/database"
	"github.com/aashari/go-onemin-gateway/internal/errors"
)

// DefaultUsageWindow is the summary window when ?since= is absent.
const DefaultUsageWindow = 24 * time.Hour

// UsageStats is implemented by database.UsageRepository.
type UsageStats interface {
	SummarizeByModel(ctx context.Context, since time.Time) ([]database.ModelUsage, error)
}

// UsageSummary is the body of GET /v1/usage.
type UsageSummary struct {
	Object string                `json:"object"`
	Since  time.Time             `json:"since"`
	Data   []database.ModelUsage `json:"data"`
}

// UsageHandler summarizes the usage ledger per model
// @Summary      Usage summary
// @Description  Aggregates recorded requests per model. since accepts a Go duration (24h) or an RFC 3339 time. Answers 404 when no ledger is configured.
// @Tags         usage
// @Produce      json
// @Param        since  query     string  false  "Window start"
// @Success      200    {object}  handlers.UsageSummary
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      404    {object}  errors.ErrorResponse
// @Router       /v1/usage [get]
func (h *APIHandlers) UsageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if extractAPIKey(r) == "" {
		errors.HandleError(ctx, w, errors.NewInvalidAuthenticationError())
		return
	}
	if h.stats == nil {
		errors.HandleError(ctx, w, errors.NewAPIError(http.StatusNotFound, errors.ErrorTypeInvalidRequest,
			"Usage ledger is not enabled.", "", ""))
		return
	}

	since, err := parseSince(r.URL.Query().Get("since"), h.now())
	if err != nil {
		errors.HandleError(ctx, w, errors.NewValidationError("since must be a duration like 24h or an RFC 3339 time.", "since"))
		return
	}

	summary, err := h.stats.SummarizeByModel(ctx, since)
	if err != nil {
		errors.HandleError(ctx, w, err)
		return
	}
	if summary == nil {
		summary = []database.ModelUsage{}
	}
	writeJSON(ctx, w, http.StatusOK, UsageSummary{Object: "list", Since: since, Data: summary})
}

func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.Add(-DefaultUsageWindow).UTC(), nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return now.Add(-d).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
