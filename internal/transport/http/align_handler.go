package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "pitalign/internal/errors"
	"pitalign/internal/exporter"
	"pitalign/internal/feeds"
	"pitalign/internal/middleware"
	"pitalign/pkg/contracts/domain"
)

// CalendarRequest is the JSON form of a target calendar
type CalendarRequest struct {
	// Dates are ISO 8601 dates or timestamps, strictly increasing.
	Dates []string `json:"dates" validate:"required,min=1,dive,iso8601"`
	// Timezone localizes the dates' wall clocks; empty means naive.
	Timezone string   `json:"timezone,omitempty" validate:"omitempty,iana_tz"`
	Entities []string `json:"entities" validate:"required,min=1,unique,dive,required"`
}

// AlignRequest is the body of POST /api/v1/align/{feed}
type AlignRequest struct {
	Calendar CalendarRequest `json:"calendar"`
	Params   feeds.Params    `json:"params"`
}

// TargetCalendar converts the request into the engine's calendar
func (c CalendarRequest) TargetCalendar() (domain.TargetCalendar, error) {
	dates := make([]time.Time, len(c.Dates))
	for i, s := range c.Dates {
		t, err := middleware.ParseISO8601(s)
		if err != nil {
			return domain.TargetCalendar{}, apperrors.NewParameterError("%s", err.Error())
		}
		dates[i] = t
	}

	cal := domain.TargetCalendar{
		IndexNames: []string{domain.DateIndexName},
		Dates:      dates,
		Entities:   c.Entities,
	}
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return domain.TargetCalendar{}, apperrors.NewParameterError("unknown calendar timezone %q", c.Timezone)
		}
		cal = cal.InLocation(loc)
	}
	return cal, nil
}

// AlignHandler serves alignment calls
type AlignHandler struct {
	deps         feeds.Deps
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	exporter     *exporter.ResultExporter
	logger       *slog.Logger
}

// NewAlignHandler creates a new align handler
func NewAlignHandler(deps feeds.Deps, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *AlignHandler {
	return &AlignHandler{
		deps:         deps,
		validator:    middleware.NewValidator(),
		errorHandler: errorHandler,
		exporter:     exporter.NewResultExporter(""),
		logger:       logger.With(slog.String("handler", "align")),
	}
}

// Routes sets up the align routes
func (h *AlignHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{feed}", h.Align)
	return r
}

// Align handles POST /api/v1/align/{feed}. The response is the aligned
// result as JSON, or long-format CSV when the client accepts text/csv or
// passes format=csv.
func (h *AlignHandler) Align(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feedName := chi.URLParam(r, "feed")

	var req AlignRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	cal, err := req.Calendar.TargetCalendar()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	deps := h.deps
	deps.Logger = h.logger.With(slog.String("request_id", middleware.GetRequestID(ctx)))

	result, err := feeds.Align(ctx, deps, feedName, cal, req.Params)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+result.Feed+`.csv"`)
		if err := h.exporter.WriteCSV(w, result); err != nil {
			h.logger.ErrorContext(ctx, "failed to stream CSV result",
				slog.String("feed", result.Feed),
				slog.String("error", err.Error()))
		}
		return
	}

	render.JSON(w, r, result)
}

func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), exporter.FormatCSV) {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}
