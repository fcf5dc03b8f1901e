// Package assets turns image references from chat messages into files stored
// in the provider's asset store.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/types"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

var (
	// ErrInvalidInput means the image reference is missing or undecodable.
	ErrInvalidInput = errors.New("invalid image input")
	// ErrAuth means the supplied headers carry no usable bearer credential.
	ErrAuth = errors.New("missing bearer credential")
	// ErrTooLarge means the image exceeded the configured size cap.
	ErrTooLarge = errors.New("image too large")
)

// UpstreamError is returned when the asset store rejects the upload or
// answers with something other than the expected JSON.
type UpstreamError struct {
	StatusCode int
	Reason     string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("asset upload failed: status %d: %s", e.StatusCode, e.Reason)
	}
	return "asset upload failed: " + e.Reason
}

// DefaultMIME is used when neither a declared type nor sniffing helps.
const DefaultMIME = "image/png"

// FormField is the multipart field the asset endpoint expects.
const FormField = "asset"

// Config controls the uploader.
type Config struct {
	Endpoint       string
	MaxBytes       int64
	Timeout        time.Duration
	FilenamePrefix string
	// OnResult, when set, receives "success", "too_large", "invalid" or
	// "failed" for every Upload call.
	OnResult func(outcome string)
}

// DefaultConfig uses a 10MB cap and a 30s upload timeout.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		MaxBytes:       10 * 1024 * 1024,
		Timeout:        30 * time.Second,
		FilenamePrefix: "gateway",
	}
}

// Asset is an acquired image ready for upload. It only lives for the
// duration of one Upload call.
type Asset struct {
	Data     []byte
	MIME     string
	Filename string
}

// Uploader decodes or downloads images and stores them upstream.
type Uploader struct {
	client *http.Client
	config Config
}

// NewUploader returns an Uploader. client is used both for downloading
// remote images and for the upload itself.
func NewUploader(client *http.Client, config Config) *Uploader {
	if client == nil {
		client = &http.Client{}
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 10 * 1024 * 1024
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.FilenamePrefix == "" {
		config.FilenamePrefix = "gateway"
	}
	return &Uploader{client: client, config: config}
}

// Upload stores the referenced image and returns the storage path the
// provider assigned to it. Size violations are detected before any upload
// request is made.
func (u *Uploader) Upload(ctx context.Context, ref *types.ImageURL, headers http.Header) (path string, err error) {
	defer func() { u.report(err) }()

	if ref == nil || strings.TrimSpace(ref.URL) == "" {
		return "", fmt.Errorf("%w: image item has no url", ErrInvalidInput)
	}
	if !hasBearer(headers) {
		return "", ErrAuth
	}

	asset, err := u.Acquire(ctx, ref.URL)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, u.config.Timeout)
	defer cancel()

	path, err = u.send(ctx, asset, headers)
	if err != nil {
		return "", err
	}

	logger.InfoCtx(ctx, "Image uploaded",
		"asset_path", path,
		"mime_type", asset.MIME,
		"size_bytes", len(asset.Data),
		"stage", logger.LogStages.AssetUpload)
	return path, nil
}

// Acquire decodes a data URI or downloads a remote URL, enforcing the cap.
func (u *Uploader) Acquire(ctx context.Context, rawURL string) (*Asset, error) {
	var (
		data     []byte
		declared string
		err      error
	)

	if strings.HasPrefix(rawURL, "data:") {
		data, declared, err = DecodeDataURI(rawURL)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > u.config.MaxBytes {
			return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), u.config.MaxBytes)
		}
	} else {
		target := rawURL
		if !strings.Contains(target, "://") {
			target = "https://" + target
		}
		dctx, cancel := context.WithTimeout(ctx, u.config.Timeout)
		defer cancel()
		data, declared, err = utils.DownloadFile(dctx, u.client, target, nil, u.config.MaxBytes)
		if err != nil {
			if errors.Is(err, utils.ErrFileTooLarge) {
				return nil, fmt.Errorf("%w: %v", ErrTooLarge, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}

	mimeType := DetectMIME(declared, data)
	return &Asset{
		Data:     data,
		MIME:     mimeType,
		Filename: Filename(u.config.FilenamePrefix, mimeType),
	}, nil
}

// DecodeDataURI splits "data:<mime>;base64,<payload>" on the first comma and
// decodes the payload as standard base64, then URL-safe base64. Missing
// padding is restored first.
func DecodeDataURI(uri string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data uri has no payload", ErrInvalidInput)
	}

	var declared string
	if _, rest, found := strings.Cut(header, ":"); found {
		declared, _, _ = strings.Cut(rest, ";")
	}

	payload = strings.TrimSpace(payload)
	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: base64 decode failed: %v", ErrInvalidInput, err)
		}
	}
	return data, declared, nil
}

// DetectMIME prefers the declared Content-Type, then sniffs the bytes, then
// falls back to DefaultMIME.
func DetectMIME(declared string, data []byte) string {
	if declared != "" {
		mediaType, _, _ := strings.Cut(declared, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
		if strings.HasPrefix(mediaType, "image/") {
			return mediaType
		}
	}
	if len(data) > 0 {
		if detected := mimetype.Detect(data); strings.HasPrefix(detected.String(), "image/") {
			mediaType, _, _ := strings.Cut(detected.String(), ";")
			return mediaType
		}
	}
	return DefaultMIME
}

// Filename builds "<prefix>-<uuid>.<ext>" with the extension taken from the
// MIME subtype ("image/svg+xml" gives "svg").
func Filename(prefix, mimeType string) string {
	ext := "png"
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		ext, _, _ = strings.Cut(sub, "+")
	}
	return fmt.Sprintf("%s-%s.%s", prefix, uuid.NewString(), ext)
}

func (u *Uploader) send(ctx context.Context, asset *Asset, headers http.Header) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, asset.Filename))
	partHeader.Set(utils.HeaderContentType, asset.MIME)
	part, err := form.CreatePart(partHeader)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(asset.Data); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	for key, values := range headers {
		if strings.EqualFold(key, utils.HeaderContentType) {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set(utils.HeaderContentType, form.FormDataContentType())
	req.Header.Set(utils.HeaderUserAgent, utils.UserAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Reason: "failed to read response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.WarnCtx(ctx, "Asset store rejected upload",
			"status_code", resp.StatusCode,
			"response_body", string(respBody),
			"stage", logger.LogStages.AssetUpload)
		return "", &UpstreamError{StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}
	if !gjson.ValidBytes(respBody) {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Reason: "response is not valid JSON"}
	}
	path := gjson.GetBytes(respBody, "fileContent.path").String()
	if path == "" {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Reason: "response has no fileContent.path"}
	}
	return path, nil
}

func hasBearer(headers http.Header) bool {
	auth := headers.Get(utils.HeaderAuthorization)
	return strings.HasPrefix(auth, utils.BearerPrefix) && strings.TrimSpace(strings.TrimPrefix(auth, utils.BearerPrefix)) != ""
}

// AuthHeaders returns the headers the asset endpoint accepts for apiKey.
func AuthHeaders(apiKey string) http.Header {
	h := make(http.Header)
	if apiKey == "" {
		return h
	}
	h.Set(utils.HeaderAuthorization, utils.BearerPrefix+apiKey)
	h.Set(utils.HeaderAPIKey, apiKey)
	return h
}

func (u *Uploader) report(err error) {
	if u.config.OnResult == nil {
		return
	}
	switch {
	case err == nil:
		u.config.OnResult("success")
	case errors.Is(err, ErrTooLarge):
		u.config.OnResult("too_large")
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrAuth):
		u.config.OnResult("invalid")
	default:
		u.config.OnResult("failed")
	}
}
