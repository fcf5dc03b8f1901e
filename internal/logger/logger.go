package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// Logger levels
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

type contextKey string

const (
	RequestIDKey        contextKey = "request_id"
	ModelKey            contextKey = "model"
	ConversationTypeKey contextKey = "conversation_type"
)

// Logger is the process-wide logger. It is replaced by Init.
var Logger *slog.Logger

// Config for logger
type Config struct {
	Level       slog.Level
	Format      string // "json" or "text"
	Output      string // "stdout", "stderr", or file path
	ServiceName string
	Environment string
}

// DefaultConfig is used when the logger is touched before Init.
var DefaultConfig = Config{
	Level:       LevelInfo,
	Format:      "json",
	Output:      "stdout",
	ServiceName: "onemin-gateway",
	Environment: "development",
}

// StructuredLogEntry is one emitted JSON line.
type StructuredLogEntry struct {
	Timestamp   string         `json:"timestamp"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Service     string         `json:"service"`
	Environment string         `json:"environment"`
	RequestID   string         `json:"request_id,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Error       map[string]any `json:"error,omitempty"`
}

// Init builds the global logger from config.
func Init(config Config) error {
	var output io.Writer
	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		output = f
	}

	Logger = slog.New(NewHandler(output, config))
	return nil
}

// InitFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, SERVICE_NAME and
// ENVIRONMENT/APP_ENV.
func InitFromEnv() error {
	config := DefaultConfig
	config.Level = ParseLevel(utils.GetLogLevel())
	config.Format = utils.GetEnvString("LOG_FORMAT", config.Format)
	config.Output = utils.GetEnvString("LOG_OUTPUT", config.Output)
	config.ServiceName = utils.GetEnvString("SERVICE_NAME", config.ServiceName)
	config.Environment = utils.GetEnvironment()
	return Init(config)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// NewHandler returns the JSON handler, or slog's text handler when
// config.Format is "text".
func NewHandler(w io.Writer, config Config) slog.Handler {
	if config.Format == "text" {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: config.Level})
	}
	return &StructuredJSONHandler{
		writer:      w,
		level:       config.Level,
		serviceName: config.ServiceName,
		environment: config.Environment,
		mu:          &sync.Mutex{},
	}
}

// StructuredJSONHandler writes one StructuredLogEntry per record. Context
// values (request id, model, conversation type) are lifted into the entry.
type StructuredJSONHandler struct {
	writer      io.Writer
	level       slog.Level
	serviceName string
	environment string
	attrs       []slog.Attr
	mu          *sync.Mutex
}

func (h *StructuredJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *StructuredJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup is flattened; the gateway does not use groups.
func (h *StructuredJSONHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *StructuredJSONHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := StructuredLogEntry{
		Timestamp:   r.Time.UTC().Format(time.RFC3339Nano),
		Level:       r.Level.String(),
		Message:     r.Message,
		Service:     h.serviceName,
		Environment: h.environment,
		Attributes:  make(map[string]any),
	}

	if ctx != nil {
		if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
			entry.RequestID = requestID
		}
		if model, ok := ctx.Value(ModelKey).(string); ok && model != "" {
			entry.Attributes["model"] = model
		}
		if convType, ok := ctx.Value(ConversationTypeKey).(string); ok && convType != "" {
			entry.Attributes["conversation_type"] = convType
		}
	}

	add := func(a slog.Attr) bool {
		value := a.Value.Resolve().Any()
		switch {
		case a.Key == "error":
			if entry.Error == nil {
				entry.Error = make(map[string]any)
			}
			if err, ok := value.(error); ok {
				entry.Error["message"] = err.Error()
				entry.Error["type"] = fmt.Sprintf("%T", err)
			} else {
				entry.Error["message"] = fmt.Sprint(value)
			}
		case strings.HasPrefix(a.Key, "error_"):
			if entry.Error == nil {
				entry.Error = make(map[string]any)
			}
			entry.Error[strings.TrimPrefix(a.Key, "error_")] = value
		case a.Key == "request_id":
			entry.RequestID = fmt.Sprint(value)
		default:
			if err, ok := value.(error); ok {
				value = err.Error()
			}
			entry.Attributes[a.Key] = value
		}
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	if len(entry.Attributes) == 0 {
		entry.Attributes = nil
	} else {
		entry.Attributes = utils.TruncateBase64InData(entry.Attributes).(map[string]any)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(append(data, '\n'))
	return err
}

var fallback = slog.New(NewHandler(os.Stdout, DefaultConfig))

func get() *slog.Logger {
	if Logger == nil {
		return fallback
	}
	return Logger
}

// WithRequestID stores the request id for every later *Ctx call.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithModel stores the requested model name.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// WithConversationType stores the resolved upstream conversation type.
func WithConversationType(ctx context.Context, conversationType string) context.Context {
	return context.WithValue(ctx, ConversationTypeKey, conversationType)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Enabled reports whether records at level would be written.
func Enabled(ctx context.Context, level slog.Level) bool {
	return get().Enabled(ctx, level)
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }

func DebugCtx(ctx context.Context, msg string, args ...any) {
	get().DebugContext(ctx, msg, args...)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	get().InfoContext(ctx, msg, args...)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	get().WarnContext(ctx, msg, args...)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	get().ErrorContext(ctx, msg, args...)
}
