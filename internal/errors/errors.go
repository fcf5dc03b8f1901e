package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// ErrorType is the OpenAI "error.type" value.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"
	ErrorTypeAPI            ErrorType = "api_error"
)

// Codes carried in "error.code".
const (
	CodeInvalidRequest      = "invalid_request_error"
	CodeInvalidValue        = "invalid_value"
	CodeInvalidAPIKey       = "invalid_api_key"
	CodeModelNotFound       = "model_not_found"
	CodeModelNotSupported   = "model_not_supported"
	CodeFileTooLarge        = "file_too_large"
	CodeMethodNotAllowed    = "method_not_allowed"
	CodeRateLimitExceeded   = "rate_limit_exceeded"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeInternal            = "internal_error"
)

// InternalErrorMessage is the only text a caller sees for unexpected failures.
const InternalErrorMessage = "Internal Server Error. Please check the 1min-Gateway logs."

// APIError is an error with an HTTP status that renders as
// {"error":{"message","type","param","code"}}.
type APIError struct {
	Status  int       `json:"-"`
	Message string    `json:"message"`
	Type    ErrorType `json:"type"`
	Param   *string   `json:"param"`
	Code    *string   `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse is the JSON envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewAPIError creates an APIError with optional param and code ("" means null).
func NewAPIError(status int, errorType ErrorType, message, param, code string) *APIError {
	return &APIError{
		Status:  status,
		Message: message,
		Type:    errorType,
		Param:   optional(param),
		Code:    optional(code),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// HandleError writes err in the OpenAI error shape. Anything that is not an
// *APIError is logged and replaced with the generic internal error so no
// upstream detail leaks to the caller.
func HandleError(ctx context.Context, w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !stderrors.As(err, &apiErr) {
		logger.ErrorCtx(ctx, "Unhandled error converted to internal error", "error", err)
		apiErr = NewInternalError()
	}
	if apiErr.Status == 0 {
		apiErr.Status = http.StatusInternalServerError
	}

	body, jsonErr := json.Marshal(ErrorResponse{Error: apiErr})
	if jsonErr != nil {
		logger.ErrorCtx(ctx, "Error marshaling error response", "error", jsonErr)
		body = []byte(`{"error":{"message":"` + InternalErrorMessage + `","type":"api_error","param":null,"code":"internal_error"}}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_, _ = w.Write(body)

	logger.InfoCtx(ctx, "API error returned",
		"status_code", apiErr.Status,
		"error_type", string(apiErr.Type),
		"error_code", deref(apiErr.Code),
		"message", apiErr.Message,
	)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NewInvalidAuthenticationError is returned when neither API-KEY nor a bearer
// Authorization header is present.
func NewInvalidAuthenticationError() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrorTypeInvalidRequest, "Invalid Authentication provided.", "", "")
}

// NewInvalidAPIKeyError is returned when the upstream rejects the key.
func NewInvalidAPIKeyError() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrorTypeAuthentication,
		"Incorrect API key provided. You can find your API key at https://app.1min.ai/api.", "", CodeInvalidAPIKey)
}

func NewNoMessagesError() *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorTypeInvalidRequest,
		"No messages provided in the request body.", "messages", CodeInvalidRequest)
}

func NewEmptyPromptError() *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorTypeInvalidRequest,
		"The last message has no content.", "messages", CodeInvalidRequest)
}

// NewValidationError reports a bad request field.
func NewValidationError(message, param string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorTypeInvalidRequest, message, param, CodeInvalidValue)
}

func NewModelNotFoundError(model string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorTypeInvalidRequest,
		"The model `"+model+"` does not exist.", "model", CodeModelNotFound)
}

func NewModelNoVisionError(model string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorTypeInvalidRequest,
		"The model `"+model+"` does not support image inputs.", "model", CodeModelNotSupported)
}

func NewFileTooLargeError(message string) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrorTypeInvalidRequest, message, "messages", CodeFileTooLarge)
}

func NewMethodNotAllowedError() *APIError {
	return NewAPIError(http.StatusMethodNotAllowed, ErrorTypeInvalidRequest, "Method Not Allowed", "", CodeMethodNotAllowed)
}

func NewNotFoundError() *APIError {
	return NewAPIError(http.StatusNotFound, ErrorTypeInvalidRequest, "Not Found", "", "")
}

func NewRateLimitError() *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrorTypeRateLimit,
		"Rate limit reached. Please slow down.", "", CodeRateLimitExceeded)
}

func NewUpstreamUnavailableError() *APIError {
	return NewAPIError(http.StatusServiceUnavailable, ErrorTypeAPI,
		"The upstream provider is temporarily unavailable. Please retry later.", "", CodeUpstreamUnavailable)
}

func NewInternalError() *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorTypeAPI, InternalErrorMessage, "", CodeInternal)
}
