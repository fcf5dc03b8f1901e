package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/test/fixtures"
	"github.com/aashari/go-onemin-gateway/test/helpers"
)

func TestCORS(t *testing.T) {
	ts := helpers.SetupTestServer(t)

	t.Run("preflight_request", func(t *testing.T) {
		headers := map[string]string{
			"Origin":                         "https://example.com",
			"Access-Control-Request-Method":  "POST",
			"Access-Control-Request-Headers": "Content-Type,Authorization",
		}

		resp, _, err := ts.MakeRequest(http.MethodOptions, "/v1/chat/completions", nil, headers)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "API-KEY")
		assert.Empty(t, ts.Upstream().Calls())
	})

	t.Run("actual_request_headers", func(t *testing.T) {
		resp, _, err := ts.MakeRequest(http.MethodPost, "/v1/chat/completions", fixtures.BasicChatRequest(),
			map[string]string{"Origin": "https://example.com", "X-Request-ID": "client-supplied-id"})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "client-supplied-id", resp.Header.Get("X-Request-ID"))
	})
}
