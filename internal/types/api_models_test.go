package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageContentUnmarshal(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		var m Message
		require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &m))
		assert.False(t, m.Content.Structured)
		assert.Equal(t, "hello", m.Content.PlainText())
		assert.False(t, m.Content.IsEmpty())
	})

	t.Run("parts", func(t *testing.T) {
		var m Message
		body := `{"role":"user","content":[
			{"type":"text","text":"describe "},
			{"type":"image_url","image_url":{"url":"https://example.com/cat.png"}},
			{"type":"text","text":"this"},
			{"type":"file","file":{"file_id":"file-1"}}
		]}`
		require.NoError(t, json.Unmarshal([]byte(body), &m))
		assert.True(t, m.Content.Structured)
		assert.Len(t, m.Content.Parts, 4)
		assert.Equal(t, "describe this", m.Content.PlainText())
		assert.True(t, m.Content.HasImages())
		assert.Equal(t, "https://example.com/cat.png", m.Content.Parts[1].ImageURL.URL)
		assert.Equal(t, "file-1", m.Content.Parts[3].FileIdentifier())
	})

	t.Run("image_url as bare string", func(t *testing.T) {
		var p ContentPart
		require.NoError(t, json.Unmarshal([]byte(`{"type":"image_url","image_url":"data:image/png;base64,AAAA"}`), &p))
		assert.Equal(t, "data:image/png;base64,AAAA", p.ImageURL.URL)
	})

	t.Run("null and empty", func(t *testing.T) {
		var m Message
		require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":null}`), &m))
		assert.True(t, m.Content.IsEmpty())

		require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":[{"type":"text","text":"  "}]}`), &m))
		assert.True(t, m.Content.IsEmpty())
	})

	t.Run("object rejected", func(t *testing.T) {
		var m Message
		assert.Error(t, json.Unmarshal([]byte(`{"role":"user","content":{"text":"x"}}`), &m))
	})
}

func TestMessageContentMarshal(t *testing.T) {
	data, err := json.Marshal(Message{Role: "user", Content: NewTextContent("hi")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(data))

	data, err = json.Marshal(NewPartsContent(ContentPart{Type: ContentPartText, Text: "hi"}))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"text","text":"hi"}]`, string(data))
}

func TestChunkFinishReasonIsNullUntilSet(t *testing.T) {
	data, err := json.Marshal(ChatCompletionChunk{
		Object:  "chat.completion.chunk",
		Choices: []ChunkChoice{{Delta: Delta{Content: "A"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"finish_reason":null`)
	assert.NotContains(t, string(data), `"usage"`)
}

func TestNewUsage(t *testing.T) {
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6}, NewUsage(5, 1))
}
