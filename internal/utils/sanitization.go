package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// RedactedValue replaces credential-bearing values in logged payloads.
const RedactedValue = "[REDACTED]"

// DefaultRedactedKeys are matched case-insensitively against map keys.
var DefaultRedactedKeys = []string{"API-KEY", "TOKEN", "AUTHORIZATION", "PASSWORD"}

// Redact returns a copy of data in which every map entry whose key matches
// one of keys (case-insensitive) has its value replaced. Nested maps and
// slices are walked; the input is never modified.
func Redact(data any, keys ...string) any {
	if len(keys) == 0 {
		keys = DefaultRedactedKeys
	}
	return redactValue(data, keys)
}

func redactValue(data any, keys []string) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if isRedactedKey(k, keys) {
				out[k] = RedactedValue
				continue
			}
			out[k] = redactValue(item, keys)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if isRedactedKey(k, keys) {
				item = RedactedValue
			}
			out[k] = item
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item, keys)
		}
		return out
	default:
		return data
	}
}

func isRedactedKey(key string, keys []string) bool {
	for _, k := range keys {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}

// RedactHeaders flattens headers for logging with credentials masked.
func RedactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		value := strings.Join(values, ", ")
		if isRedactedKey(name, DefaultRedactedKeys) || strings.EqualFold(name, "Cookie") {
			value = RedactedValue
		}
		out[name] = value
	}
	return out
}

var (
	embeddedDataURL = regexp.MustCompile(`(?i)(data:[^;,]+;base64,)([A-Za-z0-9+/_-]{100,}={0,2})`)
	bareBase64      = regexp.MustCompile(`^[A-Za-z0-9+/]{200,}={0,2}$`)
)

// TruncateBase64InData shortens base64 payloads (data URLs or long bare
// base64 strings) so logs stay readable. Maps and slices are copied.
func TruncateBase64InData(data any) any {
	switch v := data.(type) {
	case string:
		return truncateBase64String(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = TruncateBase64InData(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = TruncateBase64InData(item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = truncateBase64String(item)
		}
		return out
	default:
		return data
	}
}

func truncateBase64String(s string) string {
	s = embeddedDataURL.ReplaceAllStringFunc(s, func(match string) string {
		parts := embeddedDataURL.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		return parts[1] + shorten(parts[2])
	})
	if bareBase64.MatchString(s) {
		return shorten(s)
	}
	return s
}

func shorten(payload string) string {
	if len(payload) <= 100 {
		return payload
	}
	return payload[:50] + fmt.Sprintf("...[%d chars truncated]...", len(payload)-100) + payload[len(payload)-50:]
}
