package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Call is one request received by the fake provider.
type Call struct {
	Path    string
	APIKey  string
	Auth    string
	Payload map[string]any
}

// FakeUpstream imitates the 1min.ai endpoints the gateway calls:
// conversations, features (batch and streaming) and assets.
type FakeUpstream struct {
	server *httptest.Server

	mu    sync.Mutex
	calls []Call

	// Result is returned as resultObject[0] of batch answers.
	Result string
	// StreamLines are written, one per line, on the streaming endpoint.
	StreamLines []string
	// FeatureStatus, when non-zero, fails every feature call with that status.
	FeatureStatus int
	// AssetPath is returned as fileContent.path for uploads.
	AssetPath string

	sessions atomic.Int64
}

// SetResult changes the batch answer.
func (f *FakeUpstream) SetResult(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Result = result
}

// FailFeatures makes every feature call answer with status; 0 restores
// normal answers.
func (f *FakeUpstream) FailFeatures(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FeatureStatus = status
}

func (f *FakeUpstream) snapshot() (result string, lines []string, status int, assetPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Result, f.StreamLines, f.FeatureStatus, f.AssetPath
}

// NewFakeUpstream starts the fake provider; it is closed with the test.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()
	f := &FakeUpstream{
		Result:      "Hello from the fake provider",
		StreamLines: []string{`data: {"result":"Hello"}`, `data: {"result":" world"}`, `data: [DONE]`},
		AssetPath:   "images/2024_09_01/fake.png",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", f.handleConversation)
	mux.HandleFunc("POST /api/features", f.handleFeature)
	mux.HandleFunc("POST /api/assets", f.handleAsset)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// URL is the provider base URL.
func (f *FakeUpstream) URL() string { return f.server.URL }

// Calls returns the recorded requests in arrival order.
func (f *FakeUpstream) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded requests for path.
func (f *FakeUpstream) CallsTo(path string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeUpstream) record(r *http.Request, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{
		Path:    r.URL.Path,
		APIKey:  r.Header.Get("API-KEY"),
		Auth:    r.Header.Get("Authorization"),
		Payload: payload,
	})
}

func decodePayload(r *http.Request) map[string]any {
	var payload map[string]any
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &payload)
	return payload
}

func (f *FakeUpstream) handleConversation(w http.ResponseWriter, r *http.Request) {
	f.record(r, decodePayload(r))
	id := fmt.Sprintf("conv-%d", f.sessions.Add(1))
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"conversation":{"uuid":%q}}`, id)
}

func (f *FakeUpstream) handleFeature(w http.ResponseWriter, r *http.Request) {
	f.record(r, decodePayload(r))
	result, lines, status, _ := f.snapshot()
	if status != 0 {
		http.Error(w, `{"message":"provider failure"}`, status)
		return
	}

	if r.URL.Query().Get("isStreaming") == "true" {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
		return
	}

	encoded, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"aiRecord":{"aiRecordDetail":{"resultObject":[%s]}}}`, encoded)
}

func (f *FakeUpstream) handleAsset(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		http.Error(w, "expected multipart", http.StatusBadRequest)
		return
	}
	f.record(r, nil)
	_, _, _, assetPath := f.snapshot()
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"fileContent":{"path":%q}}`, assetPath)
}
