package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashari/go-onemin-gateway/internal/types"
)

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type assetStore struct {
	server *httptest.Server
	hits   atomic.Int32
}

func newAssetStore(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *assetStore {
	t.Helper()
	s := &assetStore{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func okStore(t *testing.T) *assetStore {
	return newAssetStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"fileContent":{"path":"images/2024/uploaded.png"}}`)
	})
}

func newTestUploader(endpoint string, maxBytes int64) *Uploader {
	cfg := DefaultConfig(endpoint)
	cfg.MaxBytes = maxBytes
	return NewUploader(http.DefaultClient, cfg)
}

func TestDecodeDataURI(t *testing.T) {
	data, declared, err := DecodeDataURI("data:image/png;base64," + onePixelPNG)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "image/png", declared)
	assert.Equal(t, "image/png", DetectMIME(declared, data))

	t.Run("missing padding", func(t *testing.T) {
		data, _, err := DecodeDataURI("data:image/png;base64," + strings.TrimRight(onePixelPNG, "="))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("url-safe alphabet", func(t *testing.T) {
		raw := []byte{0xfb, 0xff, 0xfe, 0x01}
		encoded := base64.URLEncoding.EncodeToString(raw)
		require.Contains(t, encoded, "_")
		data, _, err := DecodeDataURI("data:image/jpeg;base64," + encoded)
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("no comma", func(t *testing.T) {
		_, _, err := DecodeDataURI("data:image/png;base64")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("garbage payload", func(t *testing.T) {
		_, _, err := DecodeDataURI("data:image/png;base64,!!!not-base64!!!")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestDetectMIME(t *testing.T) {
	png, _ := base64.StdEncoding.DecodeString(onePixelPNG)

	assert.Equal(t, "image/jpeg", DetectMIME("image/jpeg; charset=binary", png))
	assert.Equal(t, "image/png", DetectMIME("", png), "sniffed")
	assert.Equal(t, "image/png", DetectMIME("application/octet-stream", png), "non-image declared type is ignored")
	assert.Equal(t, DefaultMIME, DetectMIME("", []byte("plain text, not an image")))
}

func TestFilename(t *testing.T) {
	name := Filename("gateway", "image/svg+xml")
	assert.True(t, strings.HasPrefix(name, "gateway-"))
	assert.True(t, strings.HasSuffix(name, ".svg"))

	assert.True(t, strings.HasSuffix(Filename("gateway", "image/jpeg"), ".jpeg"))
	assert.NotEqual(t, Filename("p", "image/png"), Filename("p", "image/png"))
}

func TestUploadDataURI(t *testing.T) {
	store := newAssetStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		assert.Equal(t, "key-123", r.Header.Get("API-KEY"))

		file, header, err := r.FormFile(FormField)
		require.NoError(t, err)
		defer file.Close()
		assert.True(t, strings.HasPrefix(header.Filename, "gateway-"))
		assert.True(t, strings.HasSuffix(header.Filename, ".png"))
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		body, _ := io.ReadAll(file)
		assert.NotEmpty(t, body)

		_, _ = io.WriteString(w, `{"fileContent":{"path":"images/abc.png"}}`)
	})

	var outcomes []string
	cfg := DefaultConfig(store.server.URL)
	cfg.OnResult = func(outcome string) { outcomes = append(outcomes, outcome) }
	u := NewUploader(http.DefaultClient, cfg)

	path, err := u.Upload(context.Background(), &types.ImageURL{URL: "data:image/png;base64," + onePixelPNG}, AuthHeaders("key-123"))
	require.NoError(t, err)
	assert.Equal(t, "images/abc.png", path)
	assert.Equal(t, []string{"success"}, outcomes)
}

func TestUploadRemoteURL(t *testing.T) {
	png, _ := base64.StdEncoding.DecodeString(onePixelPNG)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write(png)
	}))
	defer origin.Close()

	var gotFilename string
	store := newAssetStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile(FormField)
		require.NoError(t, err)
		gotFilename = header.Filename
		_, _ = io.WriteString(w, `{"fileContent":{"path":"images/remote.webp"}}`)
	})

	u := newTestUploader(store.server.URL, 1024)
	path, err := u.Upload(context.Background(), &types.ImageURL{URL: origin.URL + "/cat"}, AuthHeaders("k"))
	require.NoError(t, err)
	assert.Equal(t, "images/remote.webp", path)
	assert.True(t, strings.HasSuffix(gotFilename, ".webp"), "declared Content-Type wins over sniffing")
}

func TestUploadTooLargeFailsBeforeUpload(t *testing.T) {
	store := okStore(t)

	t.Run("data uri", func(t *testing.T) {
		big := base64.StdEncoding.EncodeToString(make([]byte, 2048))
		u := newTestUploader(store.server.URL, 1024)

		_, err := u.Upload(context.Background(), &types.ImageURL{URL: "data:image/png;base64," + big}, AuthHeaders("k"))
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("remote download", func(t *testing.T) {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.(http.Flusher).Flush()
			for i := 0; i < 8; i++ {
				_, _ = w.Write(make([]byte, 512))
			}
		}))
		defer origin.Close()
		u := newTestUploader(store.server.URL, 1024)

		_, err := u.Upload(context.Background(), &types.ImageURL{URL: origin.URL}, AuthHeaders("k"))
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	assert.Zero(t, store.hits.Load(), "no upload may be attempted for oversized images")
}

func TestUploadValidation(t *testing.T) {
	store := okStore(t)
	u := newTestUploader(store.server.URL, 1024)
	img := &types.ImageURL{URL: "data:image/png;base64," + onePixelPNG}

	_, err := u.Upload(context.Background(), nil, AuthHeaders("k"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = u.Upload(context.Background(), &types.ImageURL{URL: "  "}, AuthHeaders("k"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = u.Upload(context.Background(), img, http.Header{})
	assert.ErrorIs(t, err, ErrAuth)

	h := http.Header{}
	h.Set("Authorization", "Bearer ")
	_, err = u.Upload(context.Background(), img, h)
	assert.ErrorIs(t, err, ErrAuth)

	h.Set("Authorization", "Token abc")
	_, err = u.Upload(context.Background(), img, h)
	assert.ErrorIs(t, err, ErrAuth)

	assert.Zero(t, store.hits.Load())
}

func TestUploadUpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-2xx", http.StatusBadGateway, `{"error":"down"}`},
		{"malformed json", http.StatusOK, `<html>oops</html>`},
		{"missing path", http.StatusOK, `{"fileContent":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newAssetStore(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			u := newTestUploader(store.server.URL, 1024)

			_, err := u.Upload(context.Background(), &types.ImageURL{URL: "data:image/png;base64," + onePixelPNG}, AuthHeaders("k"))
			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr), "got %v", err)
			assert.Equal(t, tt.status, upErr.StatusCode)
		})
	}
}
