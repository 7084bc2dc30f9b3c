package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"

	"pitalign/internal/alignment"
	"pitalign/internal/config"
	"pitalign/internal/factsource"
	"pitalign/internal/feeds"
	"pitalign/internal/infrastructure"
	"pitalign/internal/reference"
	"pitalign/internal/security"
	handlers "pitalign/internal/transport/http"
	"pitalign/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	Catalogue     *feeds.Catalogue
	Engine        *alignment.Engine
	Source        *factsource.MemorySource
	// Reference is nil when no reference file is configured.
	Reference alignment.ReferenceLookup
	Router    http.Handler
	Server    *http.Server

	runtimeMetrics metric.Registration
	listener       net.Listener
}

// NewApplication wires observability, the feed catalogue, fact and
// reference data, and the HTTP router. It does not start listening.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Observability), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Catalogue: feeds.NewCatalogue(feeds.Settings{
			IBKRDataStart: cfg.Alignment.DataStart(),
			Lookbacks:     cfg.Alignment.Lookbacks,
		}),
	}

	a.runtimeMetrics, err = infrastructure.RegisterRuntimeMetrics(otelProviders.Meter, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	a.Engine = alignment.NewEngine(
		infrastructure.WithComponent(logger, "alignment"),
		alignment.WithMetrics(metrics),
		alignment.WithTracer(otelProviders.Tracer),
	)

	if err := a.loadData(ctx); err != nil {
		return nil, err
	}

	if err := a.setupRouter(); err != nil {
		return nil, err
	}
	a.createServer()
	return a, nil
}

// loadData reads the fact directory and the optional reference file. A
// missing fact directory leaves the source empty so /readyz reports it.
func (a *Application) loadData(ctx context.Context) error {
	dataLogger := infrastructure.WithComponent(a.Logger, "data")

	source, err := factsource.LoadDirectory(ctx, a.Config.Data.Dir, a.Catalogue.EventColumns(), dataLogger)
	switch {
	case errors.Is(err, os.ErrNotExist):
		dataLogger.WarnContext(ctx, "fact directory not found, starting without data",
			slog.String("dir", a.Config.Data.Dir))
		source = factsource.NewMemorySource()
	case err != nil:
		return fmt.Errorf("failed to load fact data: %w", err)
	}
	a.Source = source

	dataLogger.InfoContext(ctx, "fact data loaded",
		slog.String("dir", a.Config.Data.Dir),
		slog.Any("feeds", source.Feeds()))

	if a.Config.Data.ReferenceFile != "" {
		lookup, err := reference.LoadFile(a.Config.Data.ReferenceFile)
		if err != nil {
			return fmt.Errorf("failed to load reference data: %w", err)
		}
		a.Reference = lookup
		dataLogger.InfoContext(ctx, "reference data loaded",
			slog.String("path", lookup.Path),
			slog.Int("entities", len(lookup.StaticLookup)))
	}
	return nil
}

// Deps returns the collaborators every feed call uses
func (a *Application) Deps() feeds.Deps {
	return feeds.Deps{
		Source:    a.Source,
		Lookup:    a.Reference,
		Engine:    a.Engine,
		Catalogue: a.Catalogue,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	}
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	keys, err := security.NewKeyVerifier(a.Config.Server.APIKeys)
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}
	if keys.Enabled() {
		a.Logger.Info("API key authentication enabled", slog.Int("clients", len(a.Config.Server.APIKeys)))
	}

	a.Router = handlers.NewRouter(handlers.RouterConfig{
		Server:       a.Config.Server,
		APIKeys:      keys,
		Deps:         a.Deps(),
		Health:       a.Source,
		Tracer:       a.OTelProviders.Tracer,
		Metrics:      a.Metrics,
		Prometheus:   a.OTelProviders.PrometheusHTTP,
		Logger:       a.Logger,
		IncludeStack: a.Config.Observability.Environment == "development",
	})
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Addr returns the bound listen address once started
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Start binds the listener and serves in the background. A serve failure
// cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Addr()),
		slog.String("level", a.Config.Logging.Level),
		slog.Int("feeds_loaded", len(a.Source.Feeds())))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return a.Close(shutdownCtx)
}

// Close releases observability resources without touching the server
func (a *Application) Close(ctx context.Context) error {
	if a.runtimeMetrics != nil {
		if err := a.runtimeMetrics.Unregister(); err != nil {
			a.Logger.ErrorContext(ctx, "Error unregistering runtime metrics", slog.String("error", err.Error()))
		}
		a.runtimeMetrics = nil
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run serves until SIGINT, SIGTERM or a server failure
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.InfoContext(ctx, "Received shutdown signal")
	return a.Stop(ctx)
}
