package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/aashari/go-onemin-gateway/internal/errors"
	"github.com/aashari/go-onemin-gateway/internal/handlers"
	"github.com/aashari/go-onemin-gateway/internal/middleware"
	"github.com/aashari/go-onemin-gateway/internal/monitoring"
)

// Options configures the router. Zero rate limits disable limiting and a
// zero MaxConcurrent disables the worker pool bound.
type Options struct {
	Metrics         *monitoring.Metrics
	MaxConcurrent   int
	MaxBacklog      int
	BacklogTimeout  time.Duration
	ChatPerMinute   int
	ModelsPerMinute int
	EnableSwagger   bool
}

// SetupRoutes configures all routes for the application
func SetupRoutes(apiHandlers *handlers.APIHandlers, opts Options) http.Handler {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestCorrelationMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.HandleError(r.Context(), w, errors.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errors.HandleError(r.Context(), w, errors.NewMethodNotAllowedError())
	})

	r.Get("/", apiHandlers.RootHandler)
	r.Get("/health", apiHandlers.HealthHandler)

	chatLimiter := middleware.NewRateLimiter("chat", opts.ChatPerMinute).OnLimited(metrics.RecordRateLimited)
	modelsLimiter := middleware.NewRateLimiter("models", opts.ModelsPerMinute).OnLimited(metrics.RecordRateLimited)

	r.Route("/v1", func(r chi.Router) {
		if opts.MaxConcurrent > 0 {
			backlogTimeout := opts.BacklogTimeout
			if backlogTimeout <= 0 {
				backlogTimeout = 30 * time.Second
			}
			r.Use(chimw.ThrottleBacklog(opts.MaxConcurrent, opts.MaxBacklog, backlogTimeout))
		}

		r.With(modelsLimiter.Middleware).Get("/models", apiHandlers.ModelsHandler)
		r.With(modelsLimiter.Middleware).Get("/usage", apiHandlers.UsageHandler)
		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat/completions", apiHandlers.ChatCompletionsHandler)
			r.Post("/images/generations", apiHandlers.ImageGenerationsHandler)
		})
	})

	r.Handle("/metrics", metrics.Handler())
	monitoring.SetupPprofRoutes(r)

	if opts.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("none"),
			httpSwagger.DomID("swagger-ui"),
		))
	}

	return r
}
