package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks cfg against its struct tags and the cross-field rules the
// tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration validation failed: nil config")
	}
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateBusinessRules(cfg)
}

// validateBusinessRules checks rules spanning several sections.
func validateBusinessRules(cfg *Config) error {
	if cfg.Reliability.RetryBackoff <= 0 && cfg.Reliability.RetryMax > 0 {
		return fmt.Errorf("configuration validation failed: RETRY_BACKOFF must be positive when RETRY_MAX is set")
	}

	seen := make(map[string]bool, len(cfg.Catalog.Subset))
	for _, model := range cfg.Catalog.Subset {
		if seen[model] {
			return fmt.Errorf("configuration validation failed: duplicate model in subset: %s", model)
		}
		seen[model] = true
	}
	return nil
}

// formatValidationError joins validator errors into one message.
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatFieldError(e))
		}
		return fmt.Errorf("configuration validation failed: %s", strings.Join(messages, "; "))
	}
	return fmt.Errorf("configuration validation failed: %w", err)
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Sprintf("field '%s' is required", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", field)
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", field, e.Tag())
	}
}
