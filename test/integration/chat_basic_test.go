package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/internal/types"
	"github.com/aashari/go-onemin-gateway/test/fixtures"
	"github.com/aashari/go-onemin-gateway/test/helpers"
)

func TestChatCompletionsBasic(t *testing.T) {
	ts := helpers.SetupTestServer(t)

	t.Run("batch_completion", func(t *testing.T) {
		resp, body, err := ts.MakeRequest(http.MethodPost, "/v1/chat/completions", fixtures.BasicChatRequest(), nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

		var completion types.ChatCompletion
		ts.AssertJSONResponse(body, &completion)
		assert.Equal(t, "chat.completion", completion.Object)
		assert.Equal(t, "gpt-4o", completion.Model)
		require.Len(t, completion.Choices, 1)
		assert.Equal(t, "Hello from the fake provider", completion.Choices[0].Message.Content)
		assert.Equal(t, "stop", completion.Choices[0].FinishReason)
		assert.Positive(t, completion.Usage.PromptTokens)
		assert.Positive(t, completion.Usage.CompletionTokens)
	})

	t.Run("feature_payload", func(t *testing.T) {
		calls := ts.Upstream().CallsTo("/api/features")
		require.NotEmpty(t, calls)
		last := calls[len(calls)-1]

		assert.Equal(t, helpers.TestAPIKey, last.APIKey)
		assert.Equal(t, "CHAT_WITH_AI", last.Payload["type"])
		assert.Equal(t, "CHAT_WITH_AI", last.Payload["conversationId"])
		assert.Equal(t, "gpt-4o", last.Payload["model"])
		prompt, ok := last.Payload["promptObject"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Hello, how are you?", prompt["prompt"])
		assert.Empty(t, ts.Upstream().CallsTo("/api/conversations"))
	})

	t.Run("default_model", func(t *testing.T) {
		req := fixtures.BasicChatRequest()
		delete(req, "model")

		resp, body, err := ts.MakeRequest(http.MethodPost, "/v1/chat/completions", req, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var completion types.ChatCompletion
		ts.AssertJSONResponse(body, &completion)
		assert.Equal(t, "gpt-4o", completion.Model)
	})

	t.Run("bearer_credential", func(t *testing.T) {
		resp, _, err := ts.MakeRequest(http.MethodPost, "/v1/chat/completions", fixtures.BasicChatRequest(),
			map[string]string{"API-KEY": "", "Authorization": "Bearer other-key"})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		calls := ts.Upstream().CallsTo("/api/features")
		assert.Equal(t, "other-key", calls[len(calls)-1].APIKey)
	})
}
