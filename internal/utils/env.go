package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvDuration accepts either a Go duration ("45s", "2m") or a plain
// number of seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}

// GetEnvString gets a string from environment variable with a default fallback
func GetEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer from environment variable with a default fallback
func GetEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvInt64 gets an int64 from environment variable with a default fallback
func GetEnvInt64(key string, defaultValue int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean from environment variable with a default fallback
func GetEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvList splits a comma separated variable, dropping blanks.
func GetEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetEnvPort gets a port number from environment variable with validation
func GetEnvPort(key string, defaultValue int) int {
	port := GetEnvInt(key, defaultValue)
	if port < 1 || port > 65535 {
		return defaultValue
	}
	return port
}

// GetEnvironment returns ENVIRONMENT, falling back to APP_ENV.
func GetEnvironment() string {
	return GetEnvString("ENVIRONMENT", GetEnvString("APP_ENV", "development"))
}

// IsProduction checks if the application is running in production mode
func IsProduction() bool {
	env := strings.ToLower(GetEnvironment())
	return env == "production" || env == "prod"
}

// GetLogLevel gets the log level from environment with validation
func GetLogLevel() string {
	level := strings.ToLower(GetEnvString("LOG_LEVEL", "info"))
	switch level {
	case "debug", "info", "warn", "error":
		return level
	}
	if GetEnvBool("DEBUG", false) {
		return "debug"
	}
	return "info"
}
