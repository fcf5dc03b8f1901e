package monitoring

import (
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aashari/go-onemin-gateway/internal/middleware"
	"github.com/aashari/go-onemin-gateway/internal/reliability"
)

const namespace = "onemin_gateway"

// Token kinds used as the "kind" label of tokens_total.
const (
	TokenKindPrompt     = "prompt"
	TokenKindCompletion = "completion"
)

// Metrics holds the gateway's Prometheus collectors. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	tokens           *prometheus.CounterVec
	assetUploads     *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	usageDropped     prometheus.Counter
}

// NewMetrics registers every collector plus the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served, by route pattern, method and status.",
			},
			[]string{"route", "method", "status"},
		),

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time to serve an HTTP request, including streamed bodies.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"route", "method"},
		),

		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Calls to the provider API by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),

		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"name"},
		),

		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Estimated tokens by model and kind.",
			},
			[]string{"model", "kind"},
		),

		assetUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asset_uploads_total",
				Help:      "Image uploads to the provider asset store by outcome.",
			},
			[]string{"outcome"},
		),

		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by a per-client rate limiter.",
			},
			[]string{"limiter"},
		),

		usageDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_records_dropped_total",
				Help:      "Usage records dropped because the ledger queue was full.",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordUpstreamCall matches upstream.WithCallObserver.
func (m *Metrics) RecordUpstreamCall(operation, outcome string) {
	m.upstreamRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordBreakerState matches reliability.CircuitBreakerConfig.OnStateChange.
func (m *Metrics) RecordBreakerState(name string, _, to reliability.CircuitState) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

// RecordTokens adds prompt and completion estimates for model.
func (m *Metrics) RecordTokens(model string, prompt, completion int) {
	if prompt > 0 {
		m.tokens.WithLabelValues(model, TokenKindPrompt).Add(float64(prompt))
	}
	if completion > 0 {
		m.tokens.WithLabelValues(model, TokenKindCompletion).Add(float64(completion))
	}
}

// RecordAssetUpload counts an upload by outcome ("success", "too_large", ...).
func (m *Metrics) RecordAssetUpload(outcome string) {
	m.assetUploads.WithLabelValues(outcome).Inc()
}

// RecordRateLimited matches middleware.RateLimiter.OnLimited.
func (m *Metrics) RecordRateLimited(limiter string) {
	m.rateLimited.WithLabelValues(limiter).Inc()
}

// RecordUsageDropped counts a usage record that could not be queued.
func (m *Metrics) RecordUsageDropped() { m.usageDropped.Inc() }

// Middleware records count and duration per chi route pattern. Unmatched
// paths are folded into one label to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.Status())).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetupPprofRoutes mounts the pprof endpoints on r.
func SetupPprofRoutes(r chi.Router) {
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	r.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	r.Handle("/debug/pprof/block", pprof.Handler("block"))
}
