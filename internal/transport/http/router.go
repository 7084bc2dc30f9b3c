package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"pitalign/internal/config"
	apperrors "pitalign/internal/errors"
	"pitalign/internal/feeds"
	"pitalign/internal/infrastructure"
	"pitalign/internal/middleware"
	"pitalign/internal/security"
)

// RouterConfig wires the HTTP API
type RouterConfig struct {
	Server  config.ServerConfig
	Deps    feeds.Deps
	Health  FeedLister
	Tracer  trace.Tracer
	Metrics *infrastructure.Metrics
	// APIKeys guards /api/v1; nil leaves it open.
	APIKeys *security.KeyVerifier
	// Prometheus is the scrape handler; nil disables /metrics.
	Prometheus http.Handler
	Logger     *slog.Logger
	// IncludeStack adds panic stacks to 500 responses.
	IncludeStack bool
}

// NewRouter builds the chi router:
//
//	GET  /healthz
//	GET  /readyz
//	GET  /metrics
//	GET  /api/v1/version
//	GET  /api/v1/feeds
//	GET  /api/v1/feeds/{feed}
//	POST /api/v1/align/{feed}
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apperrors.NewErrorHandler(logger, cfg.IncludeStack)

	deps := cfg.Deps
	if deps.Metrics == nil {
		deps.Metrics = cfg.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.NewOTelMiddleware(cfg.Tracer, cfg.Metrics, logger).Handler)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(errorHandler.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ExposedHeaders: []string{middleware.RequestIDHeader},
		Logger:         logger,
	}))
	r.Use(chimw.CleanPath)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleError(w, r, apperrors.MethodNotAllowed(r.Method, r.URL.Path))
	})

	health := NewHealthHandler(cfg.Health, logger)
	r.Get(config.HealthEndpoint, health.HealthCheck)
	r.Get(config.ReadyEndpoint, health.ReadinessCheck)
	r.Method(http.MethodGet, config.MetricsEndpoint, NewMetricsHandler(cfg.Prometheus, errorHandler))

	r.Route(config.APIBasePath, func(api chi.Router) {
		api.Use(middleware.APIKeyAuth(logger, cfg.APIKeys))
		api.Use(middleware.Compress(config.CompressionLevel, "application/json", "text/csv"))
		api.Get("/version", health.Version)
		api.Mount("/feeds", NewFeedsHandler(deps.Catalogue, errorHandler, logger).Routes())

		api.Group(func(align chi.Router) {
			if cfg.Server.RateLimit.Enabled {
				align.Use(middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, logger).Handler)
			}
			if cfg.Server.MaxBodyBytes > 0 {
				align.Use(middleware.MaxBodySize(cfg.Server.MaxBodyBytes))
			}
			if cfg.Server.RequestTimeout > 0 {
				align.Use(middleware.Timeout(cfg.Server.RequestTimeout))
			}
			align.Use(middleware.ContentTypeValidator("application/json"))
			align.Mount("/align", NewAlignHandler(deps, errorHandler, logger).Routes())
		})
	})

	return r
}
