package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrFileTooLarge is returned by DownloadFile once the body passes maxSize.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// DownloadFile fetches url and returns the body and its Content-Type. The body
// is read through a limit of maxSize+1 bytes so an oversized file is detected
// without buffering more than one byte past the cap.
func DownloadFile(ctx context.Context, client *http.Client, url string, headers http.Header, maxSize int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(HeaderUserAgent, UserAgent)
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	if maxSize > 0 && resp.ContentLength > maxSize {
		return nil, "", fmt.Errorf("%w: declared %d bytes, limit %d", ErrFileTooLarge, resp.ContentLength, maxSize)
	}

	reader := io.Reader(resp.Body)
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, "", fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, maxSize)
	}

	return data, resp.Header.Get(HeaderContentType), nil
}
