package utils

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	payload := map[string]any{
		"type":    "CHAT_WITH_AI",
		"api-key": "secret-1",
		"nested": map[string]any{
			"Authorization": "Bearer secret-2",
			"prompt":        "hello",
		},
		"list": []any{map[string]any{"token": "secret-3"}},
	}

	redacted, ok := Redact(payload).(map[string]any)
	require.True(t, ok)

	assert.Equal(t, RedactedValue, redacted["api-key"])
	assert.Equal(t, "CHAT_WITH_AI", redacted["type"])
	nested := redacted["nested"].(map[string]any)
	assert.Equal(t, RedactedValue, nested["Authorization"])
	assert.Equal(t, "hello", nested["prompt"])
	assert.Equal(t, RedactedValue, redacted["list"].([]any)[0].(map[string]any)["token"])

	// original untouched
	assert.Equal(t, "secret-1", payload["api-key"])
}

func TestRedactCustomKeys(t *testing.T) {
	out := Redact(map[string]string{"Password": "p", "user": "u"}, "password").(map[string]string)
	assert.Equal(t, RedactedValue, out["Password"])
	assert.Equal(t, "u", out["user"])
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("API-KEY", "k")
	h.Set("Authorization", "Bearer k")
	h.Set("Content-Type", "application/json")

	out := RedactHeaders(h)
	assert.Equal(t, RedactedValue, out["Api-Key"])
	assert.Equal(t, RedactedValue, out["Authorization"])
	assert.Equal(t, "application/json", out["Content-Type"])
}

func TestTruncateBase64InData(t *testing.T) {
	payload := strings.Repeat("A", 400)
	data := map[string]any{
		"image": "data:image/png;base64," + payload,
		"bare":  payload,
		"short": "data:image/png;base64,AAAA",
		"items": []any{"plain text"},
	}

	out := TruncateBase64InData(data).(map[string]any)

	assert.Contains(t, out["image"], "data:image/png;base64,")
	assert.Contains(t, out["image"], "chars truncated")
	assert.Less(t, len(out["image"].(string)), len(data["image"].(string)))
	assert.Contains(t, out["bare"], "300 chars truncated")
	assert.Equal(t, "data:image/png;base64,AAAA", out["short"])
	assert.Equal(t, []any{"plain text"}, out["items"])
}
