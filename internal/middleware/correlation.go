package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// Header constants
const (
	RequestIDHeader     = utils.HeaderRequestID
	CorrelationIDHeader = utils.HeaderCorrelationID
)

// maxLoggedBody caps the request body kept for debug logging.
const maxLoggedBody = 64 << 10

// TrackingIDSources records where the tracking ids came from.
type TrackingIDSources struct {
	RequestIDSource     string `json:"request_id_source"`
	CorrelationIDSource string `json:"correlation_id_source"`
}

// RequestCorrelationMiddleware assigns request and correlation ids, echoes
// them as response headers, stores the request id in the context and logs
// every request once it completes. Responses are passed through unbuffered
// so streaming keeps working.
func RequestCorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, correlationID, sources := extractTrackingIDsWithPriority(r)

		w.Header().Set(RequestIDHeader, requestID)
		w.Header().Set(CorrelationIDHeader, correlationID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		logger.DebugCtx(ctx, "Generated tracking IDs",
			"request_id_source", sources.RequestIDSource,
			"correlation_id_source", sources.CorrelationIDSource,
			"correlation_id", correlationID)

		if logger.Enabled(ctx, slog.LevelDebug) {
			logStructuredRequest(ctx, r)
		}

		start := time.Now()
		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		logStructuredResponse(ctx, r, rec, time.Since(start))
	})
}

// extractTrackingIDsWithPriority prefers a client-supplied X-Request-ID,
// then the Cloudflare ray id, then a generated id.
func extractTrackingIDsWithPriority(r *http.Request) (requestID, correlationID string, sources TrackingIDSources) {
	if clientRequestID := strings.TrimSpace(r.Header.Get(utils.HeaderRequestID)); clientRequestID != "" {
		requestID = clientRequestID
		sources.RequestIDSource = "client-x-request-id"
	} else if cfRay := r.Header.Get(utils.HeaderCloudFlareRay); cfRay != "" {
		requestID = cfRay
		sources.RequestIDSource = "cloudflare-ray"
	} else {
		requestID = utils.GenerateRequestID()
		sources.RequestIDSource = "generated"
	}

	if clientCorrelationID := strings.TrimSpace(r.Header.Get(utils.HeaderCorrelationID)); clientCorrelationID != "" {
		correlationID = clientCorrelationID
		sources.CorrelationIDSource = "client-x-correlation-id"
	} else {
		correlationID = requestID
		sources.CorrelationIDSource = "request-id-fallback"
	}
	return requestID, correlationID, sources
}

// logStructuredRequest logs the incoming request at debug level with
// credentials redacted and base64 payloads truncated. The body is restored
// for the next handler.
func logStructuredRequest(ctx context.Context, r *http.Request) {
	requestData := map[string]any{
		"method":     r.Method,
		"endpoint":   r.URL.Path,
		"user_agent": r.Header.Get(utils.HeaderUserAgent),
		"client_ip":  ClientIP(r),
		"headers":    utils.RedactHeaders(r.Header),
	}

	if r.Body != nil && r.ContentLength != 0 {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
		if err == nil {
			r.Body = readCloser{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
			var bodyData any
			if len(body) <= maxLoggedBody && json.Unmarshal(body, &bodyData) == nil {
				requestData["body"] = utils.TruncateBase64InData(utils.Redact(bodyData))
			} else {
				requestData["body"] = "Non-JSON or oversized body omitted"
			}
		}
	}

	logger.DebugCtx(ctx, "Incoming request",
		"request", requestData,
		"stage", logger.LogStages.RequestReceived)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func logStructuredResponse(ctx context.Context, r *http.Request, rec *StatusRecorder, duration time.Duration) {
	stage := logger.LogStages.RequestCompleted
	log := logger.InfoCtx
	if rec.Status() >= http.StatusBadRequest {
		stage = logger.LogStages.RequestFailed
		log = logger.WarnCtx
	}
	log(ctx, "Request completed",
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", rec.Status(),
		"bytes_written", rec.BytesWritten(),
		"duration_ms", duration.Milliseconds(),
		"client_ip", ClientIP(r),
		"stage", stage)
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP,
// CF-Connecting-IP or the remote address host, in that order.
func ClientIP(r *http.Request) string {
	if forwardedFor := r.Header.Get(utils.HeaderXForwardedFor); forwardedFor != "" {
		return strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
	}
	if realIP := r.Header.Get(utils.HeaderXRealIP); realIP != "" {
		return realIP
	}
	if cfIP := r.Header.Get(utils.HeaderCFConnectingIP); cfIP != "" {
		return cfIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// StatusRecorder remembers the status code and byte count while writing
// straight through to the wrapped writer.
type StatusRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

// NewStatusRecorder wraps w.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w}
}

func (w *StatusRecorder) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *StatusRecorder) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(data)
	w.bytesWritten += int64(n)
	return n, err
}

// Status is the written status, 200 if the handler wrote nothing.
func (w *StatusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// BytesWritten counts body bytes.
func (w *StatusRecorder) BytesWritten() int64 { return w.bytesWritten }

// Flush implements http.Flusher for streaming responses.
func (w *StatusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker when the wrapped writer does.
func (w *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *StatusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }
