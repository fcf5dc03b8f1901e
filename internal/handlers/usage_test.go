package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/database"
)

type fakeStats struct {
	summary []database.ModelUsage
	err     error
	since   time.Time
}

func (f *fakeStats) SummarizeByModel(_ context.Context, since time.Time) ([]database.ModelUsage, error) {
	f.since = since
	return f.summary, f.err
}

func usageHandlers(t *testing.T, stats UsageStats) *APIHandlers {
	t.Helper()
	catalog, err := config.NewCatalog(config.CatalogConfig{})
	require.NoError(t, err)
	h := NewAPIHandlers(Deps{Catalog: catalog, Stats: stats, Counter: approxCounter{}})
	h.now = func() time.Time { return time.Date(2024, 9, 2, 12, 0, 0, 0, time.UTC) }
	return h
}

func getUsage(h *APIHandlers, query string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/usage"+query, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.UsageHandler(w, req)
	return w
}

func TestUsageHandler(t *testing.T) {
	stats := &fakeStats{summary: []database.ModelUsage{{Model: "gpt-4o", Requests: 3, Errors: 1, PromptTokens: 30, CompletionTokens: 12}}}
	h := usageHandlers(t, stats)

	w := getUsage(h, "", withKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC), stats.since)

	var resp UsageSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	assert.Equal(t, stats.summary, resp.Data)
}

func TestUsageHandlerSince(t *testing.T) {
	stats := &fakeStats{}
	h := usageHandlers(t, stats)

	w := getUsage(h, "?since=1h", withKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 9, 2, 11, 0, 0, 0, time.UTC), stats.since)
	assert.JSONEq(t, `[]`, mustField(t, w, "data"))

	w = getUsage(h, "?since=2024-08-01T00:00:00Z", withKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), stats.since)

	w = getUsage(h, "?since=yesterday", withKey)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "since", decodeError(t, w)["param"])
}

func TestUsageHandlerErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		w := getUsage(usageHandlers(t, &fakeStats{}), "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ledger disabled", func(t *testing.T) {
		w := getUsage(usageHandlers(t, nil), "", withKey)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Usage ledger is not enabled.", decodeError(t, w)["message"])
	})

	t.Run("store failure", func(t *testing.T) {
		w := getUsage(usageHandlers(t, &fakeStats{err: stderrors.New("connection reset")}), "", withKey)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

func mustField(t *testing.T, w *httptest.ResponseRecorder, field string) string {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return string(body[field])
}
