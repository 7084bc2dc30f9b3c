package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"pitalign/pkg/contracts"
)

// FeedLister reports which feeds the fact source holds data for
type FeedLister interface {
	Feeds() []string
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	source  FeedLister
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. source may be nil.
func NewHealthHandler(source FeedLister, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		source:  source,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":         "ok",
		"version":        contracts.Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// ReadinessCheck handles GET /readyz. The service is ready once a fact
// source with at least one feed is attached.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	var loaded []string
	if h.source != nil {
		loaded = h.source.Feeds()
	}
	status, code := "ready", http.StatusOK
	if len(loaded) == 0 {
		status, code = "not_ready", http.StatusServiceUnavailable
		h.logger.WarnContext(r.Context(), "readiness check failed: no fact data loaded")
	}
	render.Status(r, code)
	render.JSON(w, r, map[string]interface{}{
		"status": status,
		"feeds":  loaded,
	})
}

// Version handles GET /api/v1/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.GetVersionInfo())
}
