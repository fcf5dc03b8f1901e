package config

import (
	"fmt"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// Config is the complete gateway configuration, read from the environment.
type Config struct {
	Server      ServerConfig
	Upstream    UpstreamConfig
	Assets      AssetConfig
	Reliability ReliabilityConfig
	Resolver    ResolverConfig
	RateLimit   RateLimitConfig
	Catalog     CatalogConfig
	Database    DatabaseConfig
	Logging     LoggingConfig

	EnableSwagger bool
}

// ServerConfig holds listener settings and the worker pool bounds.
type ServerConfig struct {
	Host                  string `validate:"required"`
	Port                  int    `validate:"min=1,max=65535"`
	MaxConcurrentRequests int    `validate:"min=1"`
	MaxBacklog            int    `validate:"min=0"`
	ReadTimeout           time.Duration
	IdleTimeout           time.Duration
	ShutdownTimeout       time.Duration
}

// UpstreamConfig holds the provider endpoint and call timeouts.
type UpstreamConfig struct {
	BaseURL          string        `validate:"required,url"`
	SessionTimeout   time.Duration `validate:"min=1s"`
	RequestTimeout   time.Duration `validate:"min=1s"`
	ReasoningTimeout time.Duration `validate:"gtefield=RequestTimeout"`
}

// AssetConfig bounds image uploads.
type AssetConfig struct {
	UploadTimeout time.Duration `validate:"min=1s"`
	MaxBytes      int64         `validate:"min=1024"`
}

// ReliabilityConfig drives the circuit breaker and the retry policy.
type ReliabilityConfig struct {
	FailureThreshold int           `validate:"min=1"`
	CircuitTimeout   time.Duration `validate:"min=1s"`
	RetryMax         int           `validate:"min=0,max=10"`
	RetryBackoff     time.Duration `validate:"min=0"`
}

// ResolverConfig holds the conversation context policies.
type ResolverConfig struct {
	HistoryPolicy          string `validate:"oneof=last_message full_history"`
	SessionSkipMaxMessages int    `validate:"min=0"`
}

// RateLimitConfig sets per-client request budgets.
type RateLimitConfig struct {
	ChatPerMinute   int `validate:"min=0"`
	ModelsPerMinute int `validate:"min=0"`
}

// CatalogConfig restricts and extends the model catalog.
type CatalogConfig struct {
	PermitSubsetOnly bool
	Subset           []string `validate:"required_if=PermitSubsetOnly true"`
	File             string
}

// DatabaseConfig enables the usage ledger when URI is set.
type DatabaseConfig struct {
	URI        string `validate:"omitempty,startswith=mongodb"`
	Database   string `validate:"required_with=URI"`
	Collection string `validate:"required_with=URI"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `validate:"oneof=debug info warn warning error"`
	ServiceName string `validate:"required"`
	Environment string
}

// Load reads .env files (if any) and the environment, then validates the
// result.
func Load() (*Config, error) {
	if err := LoadEnvFromMultiplePaths(); err != nil {
		return nil, err
	}
	cfg := FromEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults without
// validating it.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  utils.GetEnvString("HOST", "0.0.0.0"),
			Port:                  utils.GetEnvPort("PORT", 5001),
			MaxConcurrentRequests: utils.GetEnvInt("MAX_CONCURRENT_REQUESTS", 64),
			MaxBacklog:            utils.GetEnvInt("MAX_BACKLOG", 256),
			ReadTimeout:           utils.GetEnvDuration("READ_TIMEOUT", 30*time.Second),
			IdleTimeout:           utils.GetEnvDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:       utils.GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:          utils.GetEnvString("ONE_MIN_BASE_URL", "https://api.1min.ai"),
			SessionTimeout:   utils.GetEnvDuration("SESSION_TIMEOUT", 20*time.Second),
			RequestTimeout:   utils.GetEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
			ReasoningTimeout: utils.GetEnvDuration("REASONING_TIMEOUT", 120*time.Second),
		},
		Assets: AssetConfig{
			UploadTimeout: utils.GetEnvDuration("ASSET_UPLOAD_TIMEOUT", 30*time.Second),
			MaxBytes:      utils.GetEnvInt64("ASSET_MAX_BYTES", 10<<20),
		},
		Reliability: ReliabilityConfig{
			FailureThreshold: utils.GetEnvInt("CIRCUIT_FAILURE_THRESHOLD", 5),
			CircuitTimeout:   utils.GetEnvDuration("CIRCUIT_TIMEOUT", 60*time.Second),
			RetryMax:         utils.GetEnvInt("RETRY_MAX", 3),
			RetryBackoff:     utils.GetEnvDuration("RETRY_BACKOFF", 500*time.Millisecond),
		},
		Resolver: ResolverConfig{
			HistoryPolicy:          utils.GetEnvString("HISTORY_POLICY", "last_message"),
			SessionSkipMaxMessages: utils.GetEnvInt("SESSION_SKIP_MAX_MESSAGES", 2),
		},
		RateLimit: RateLimitConfig{
			ChatPerMinute:   utils.GetEnvInt("CHAT_RATE_LIMIT_PER_MINUTE", 180),
			ModelsPerMinute: utils.GetEnvInt("MODELS_RATE_LIMIT_PER_MINUTE", 20),
		},
		Catalog: CatalogConfig{
			PermitSubsetOnly: utils.GetEnvBool("PERMIT_MODELS_FROM_SUBSET_ONLY", false),
			Subset:           utils.GetEnvList("SUBSET_OF_ONE_MIN_PERMITTED_MODELS"),
			File:             utils.GetEnvString("MODEL_CATALOG_FILE", ""),
		},
		Database: DatabaseConfig{
			URI:        utils.GetEnvString("MONGODB_URI", ""),
			Database:   utils.GetEnvString("MONGODB_DATABASE", "onemin_gateway"),
			Collection: utils.GetEnvString("MONGODB_COLLECTION", "usage_records"),
		},
		Logging: LoggingConfig{
			Level:       utils.GetLogLevel(),
			ServiceName: utils.GetEnvString("SERVICE_NAME", "onemin-gateway"),
			Environment: utils.GetEnvironment(),
		},
		EnableSwagger: utils.GetEnvBool("ENABLE_SWAGGER", !utils.IsProduction()),
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
