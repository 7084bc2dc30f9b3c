package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "pitalign/internal/errors"
	"pitalign/internal/feeds"
)

// FieldInfo describes one declared field of a feed
type FieldInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// FeedInfo describes a catalogue entry
type FeedInfo struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	GroupField    string         `json:"group_field,omitempty"`
	Fields        []FieldInfo    `json:"fields"`
	DefaultFields []string       `json:"default_fields,omitempty"`
	OpenFields    bool           `json:"open_fields"`
	Intraday      bool           `json:"intraday"`
	DefaultShift  int            `json:"default_shift"`
	ForwardFill   bool           `json:"ffill"`
	RequireCodes  bool           `json:"require_codes"`
	Options       []feeds.Option `json:"options,omitempty"`
}

// FeedsHandler serves the feed catalogue
type FeedsHandler struct {
	catalogue    *feeds.Catalogue
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewFeedsHandler creates a new feeds handler
func NewFeedsHandler(catalogue *feeds.Catalogue, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *FeedsHandler {
	if catalogue == nil {
		catalogue = feeds.Default
	}
	return &FeedsHandler{
		catalogue:    catalogue,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "feeds")),
	}
}

// Routes sets up the feeds routes
func (h *FeedsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{feed}", h.Get)
	return r
}

// List handles GET /api/v1/feeds
func (h *FeedsHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.catalogue.Names()
	out := make([]FeedInfo, 0, len(names))
	for _, name := range names {
		feed, err := h.catalogue.Get(name)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		out = append(out, describe(feed))
	}
	render.JSON(w, r, map[string]interface{}{
		"feeds": out,
		"count": len(out),
	})
}

// Get handles GET /api/v1/feeds/{feed}
func (h *FeedsHandler) Get(w http.ResponseWriter, r *http.Request) {
	feed, err := h.catalogue.Get(chi.URLParam(r, "feed"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NotFound("feed "+chi.URLParam(r, "feed")))
		return
	}
	render.JSON(w, r, describe(feed))
}

func describe(feed *feeds.Feed) FeedInfo {
	s := feed.Schema
	fields := make([]FieldInfo, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = FieldInfo{Name: f.Name, Kind: f.Kind.String()}
	}
	return FeedInfo{
		Name:          feed.Name,
		Description:   feed.Description,
		GroupField:    s.GroupField,
		Fields:        fields,
		DefaultFields: s.DefaultFields,
		OpenFields:    s.OpenFields,
		Intraday:      s.Intraday,
		DefaultShift:  s.DefaultShift,
		ForwardFill:   s.ForwardFill,
		RequireCodes:  feed.RequireCodes,
		Options:       feed.Options,
	}
}
