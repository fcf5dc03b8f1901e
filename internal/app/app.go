// Package app wires configuration, the upstream client stack and the HTTP
// router into a runnable gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aashari/go-onemin-gateway/internal/adapter"
	"github.com/aashari/go-onemin-gateway/internal/assets"
	"github.com/aashari/go-onemin-gateway/internal/config"
	"github.com/aashari/go-onemin-gateway/internal/database"
	"github.com/aashari/go-onemin-gateway/internal/handlers"
	"github.com/aashari/go-onemin-gateway/internal/health"
	"github.com/aashari/go-onemin-gateway/internal/httpclient"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/monitoring"
	"github.com/aashari/go-onemin-gateway/internal/reliability"
	"github.com/aashari/go-onemin-gateway/internal/resolver"
	"github.com/aashari/go-onemin-gateway/internal/router"
	"github.com/aashari/go-onemin-gateway/internal/tokens"
	"github.com/aashari/go-onemin-gateway/internal/upstream"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// BreakerName labels the shared upstream circuit breaker in logs and metrics.
const BreakerName = "1min"

// App centralizes the application's dependencies and configuration
type App struct {
	Config   *config.Config
	Catalog  *config.Catalog
	Metrics  *monitoring.Metrics
	Health   *health.HealthChecker
	Breaker  *reliability.CircuitBreaker
	Upstream *upstream.Client

	handler http.Handler
	usage   database.UsageRecorder
	stats   handlers.UsageStats
	db      *database.Connection

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds every component from cfg. ctx bounds the startup work
// (database connect and index creation).
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	catalog, err := config.NewCatalog(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("loading model catalog: %w", err)
	}
	historyPolicy, err := resolver.ParseHistoryPolicy(cfg.Resolver.HistoryPolicy)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	checker := health.NewHealthChecker()

	breaker := reliability.NewCircuitBreaker(reliability.CircuitBreakerConfig{
		Name:             BreakerName,
		FailureThreshold: cfg.Reliability.FailureThreshold,
		Timeout:          cfg.Reliability.CircuitTimeout,
		IsFailure:        upstream.CountsAgainstBreaker,
		OnStateChange: func(name string, from, to reliability.CircuitState) {
			metrics.RecordBreakerState(name, from, to)
			logger.Warn("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
				"stage", logger.LogStages.CircuitBreaker)
		},
	})

	retryCfg := reliability.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Reliability.RetryMax
	retryCfg.InitialDelay = cfg.Reliability.RetryBackoff
	retry := reliability.NewRetryExecutor(retryCfg)

	// Call timeouts are applied per attempt by the upstream client, so the
	// shared client carries none.
	httpClient := httpclient.NewFactory(httpclient.Options{UserAgent: utils.UserAgent}).CreateDefaultClient()

	upstreamCfg := upstream.Config{
		BaseURL:          cfg.Upstream.BaseURL,
		SessionTimeout:   cfg.Upstream.SessionTimeout,
		RequestTimeout:   cfg.Upstream.RequestTimeout,
		ReasoningTimeout: cfg.Upstream.ReasoningTimeout,
	}
	client := upstream.NewClient(httpClient, upstreamCfg, breaker, retry,
		upstream.WithCallObserver(metrics.RecordUpstreamCall))

	uploaderCfg := assets.DefaultConfig(upstreamCfg.AssetsURL())
	uploaderCfg.MaxBytes = cfg.Assets.MaxBytes
	uploaderCfg.Timeout = cfg.Assets.UploadTimeout
	uploaderCfg.OnResult = metrics.RecordAssetUpload
	uploader := assets.NewUploader(httpClient, uploaderCfg)

	contextResolver := resolver.New(uploader, client, resolver.Config{
		HistoryPolicy:          historyPolicy,
		SessionSkipMaxMessages: cfg.Resolver.SessionSkipMaxMessages,
	})

	counter := tokens.New()

	a := &App{
		Config:   cfg,
		Catalog:  catalog,
		Metrics:  metrics,
		Health:   checker,
		Breaker:  breaker,
		Upstream: client,
		usage:    database.NopRecorder{},
	}
	a.connectUsageLedger(ctx)

	checker.RegisterCheck(health.CatalogCheck(catalog))
	checker.RegisterCheck(health.CircuitBreakerCheck(breaker))

	apiHandlers := handlers.NewAPIHandlers(handlers.Deps{
		Catalog:  catalog,
		Resolver: contextResolver,
		Upstream: client,
		Adapter:  adapter.New(counter),
		Counter:  counter,
		Usage:    a.usage,
		Stats:    a.stats,
		Metrics:  metrics,
		Health:   checker,
	})

	a.handler = router.SetupRoutes(apiHandlers, router.Options{
		Metrics:         metrics,
		MaxConcurrent:   cfg.Server.MaxConcurrentRequests,
		MaxBacklog:      cfg.Server.MaxBacklog,
		BacklogTimeout:  cfg.Server.ReadTimeout,
		ChatPerMinute:   cfg.RateLimit.ChatPerMinute,
		ModelsPerMinute: cfg.RateLimit.ModelsPerMinute,
		EnableSwagger:   cfg.EnableSwagger,
	})

	snapshot := catalog.Snapshot()
	logger.Info("Application initialized",
		"upstream", upstreamCfg.BaseURL,
		"chat_models", len(snapshot.ChatModels),
		"subset_only", catalog.SubsetOnly(),
		"history_policy", string(historyPolicy),
		"usage_ledger", a.db != nil,
		"stage", logger.LogStages.Initialization)

	return a, nil
}

// connectUsageLedger switches the usage recorder to MongoDB when a URI is
// configured. A failed connection leaves the gateway running without it.
func (a *App) connectUsageLedger(ctx context.Context) {
	dbCfg := database.DefaultConfig(a.Config.Database.URI)
	if !dbCfg.Enabled() {
		return
	}
	dbCfg.Database = a.Config.Database.Database
	dbCfg.Collection = a.Config.Database.Collection
	dbCfg.Environment = a.Config.Logging.Environment

	conn, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Warn("Usage ledger disabled: MongoDB connection failed",
			"uri", dbCfg.MaskedURI(),
			"error", err.Error(),
			"stage", logger.LogStages.DatabaseWrite)
		return
	}
	a.db = conn
	repo := database.NewUsageRepository(conn)
	a.usage = database.NewAsyncRecorder(repo, dbCfg, a.Metrics.RecordUsageDropped)
	a.stats = repo
	a.Health.RegisterCheck(health.DatabaseCheck(conn))
}

// Handler is the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Start launches background work: the catalog file watcher, when a catalog
// file is configured.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	if a.Catalog.File() == "" {
		close(a.done)
		return
	}
	watcher := config.NewCatalogWatcher(a.Catalog, config.DefaultDebounce, nil)
	go func() {
		defer close(a.done)
		if err := watcher.Run(ctx); err != nil {
			logger.Error("Model catalog watcher stopped", "error", err.Error(),
				"stage", logger.LogStages.CatalogReload)
		}
	}()
}

// Close stops background work, drains pending usage records and disconnects
// from MongoDB. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
			<-a.done
		}
		if err := a.usage.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("draining usage records: %w", err))
		}
		if a.db != nil {
			if err := a.db.Disconnect(ctx); err != nil {
				errs = append(errs, fmt.Errorf("disconnecting MongoDB: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}
