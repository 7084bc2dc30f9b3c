package alignment

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pitalign/internal/infrastructure"
	"pitalign/pkg/contracts/domain"
)

// TracerName is the instrumentation scope of alignment spans
const TracerName = "pitalign.alignment"

// Request is one alignment call.
type Request struct {
	Schema   *Schema
	Calendar domain.TargetCalendar
	Config   AlignmentConfig
	Records  []domain.FactRecord
	// Lookup supplies reference timezones; only used by UTC feeds.
	Lookup ReferenceLookup
	// Groups fixes the result groups and their order; empty means every
	// group present in the records, sorted.
	Groups []string
}

// Engine runs the alignment pipeline. It holds no per-call state and may be
// shared between goroutines.
type Engine struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.Metrics
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithMetrics records call metrics on m
func WithMetrics(m *infrastructure.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine creates an alignment engine
func NewEngine(logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger: logger.With(slog.String("component", "alignment_engine")),
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Align reindexes req.Records onto req.Calendar. The result's extent always
// equals the calendar's, whether or not any records are supplied.
func (e *Engine) Align(ctx context.Context, req Request) (*domain.AlignedResult, error) {
	schema := req.Schema
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "alignment.align."+schema.Feed,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("alignment.feed", schema.Feed),
			attribute.Int("alignment.records", len(req.Records)),
			attribute.Int("alignment.calendar_rows", len(req.Calendar.Dates)),
			attribute.Int("alignment.entities", len(req.Calendar.Entities)),
		),
	)
	defer span.End()

	result, err := e.align(ctx, req)

	infrastructure.RecordAlignMetrics(ctx, e.metrics, schema.Feed, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.WarnContext(ctx, "alignment failed",
			slog.String("feed", schema.Feed),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetStatus(codes.Ok, "aligned")
	e.logger.InfoContext(ctx, "alignment complete",
		slog.String("feed", schema.Feed),
		slog.Int("records", len(req.Records)),
		slog.Int("groups", len(result.Groups)),
		slog.Int("dates", len(result.Dates)),
		slog.Int("entities", len(result.Entities)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (e *Engine) align(ctx context.Context, req Request) (*domain.AlignedResult, error) {
	schema, cal, cfg := req.Schema, req.Calendar, req.Config

	if err := ValidateCalendar(cal); err != nil {
		return nil, err
	}
	if err := cfg.Validate(schema); err != nil {
		return nil, err
	}

	aggregate := cfg.aggregate()
	fields, err := schema.resolveFields(cfg.Fields, aggregate, req.Records)
	if err != nil {
		return nil, err
	}
	rawFields := fields
	if aggregate {
		rawFields = schema.FieldNames()
	}

	var maxLag time.Duration
	hasMaxLag := cfg.MaxLag != ""
	if hasMaxLag {
		if maxLag, err = ParseMaxLag(cfg.MaxLag); err != nil {
			return nil, err
		}
	}

	norm := &Normalizer{
		Schema:         schema,
		Fields:         rawFields,
		FullResolution: schema.Intraday,
		Entities:       cal.Entities,
	}
	if schema.EventClock == EventUTC {
		switch schema.Timezone {
		case TimezoneNone:
		case TimezonePerEntity:
			if norm.EntityLocations, err = ResolveEntityTimezones(ctx, cal.Entities, req.Lookup, schema.MissingTimezoneMessage); err != nil {
				return nil, err
			}
		default:
			if norm.Location, err = ResolveTimezone(ctx, cfg.explicitTimezone(), cal.TimezoneName(), cal.Entities, req.Lookup); err != nil {
				return nil, err
			}
		}
	}

	rows, err := norm.Normalize(req.Records)
	if err != nil {
		return nil, err
	}
	normalized := len(rows)
	rows = Deduplicate(rows)
	if e.metrics != nil {
		e.metrics.RecordsIn.Add(ctx, int64(len(req.Records)), metric.WithAttributes(attribute.String("feed", schema.Feed)))
		e.metrics.RecordsDeduplicated.Add(ctx, int64(normalized-len(rows)), metric.WithAttributes(attribute.String("feed", schema.Feed)))
	}
	e.logger.DebugContext(ctx, "records normalized",
		slog.String("feed", schema.Feed),
		slog.Int("received", len(req.Records)),
		slog.Int("normalized", normalized),
		slog.Int("deduplicated", len(rows)))

	if aggregate {
		rows = AggregateDaily(rows, rawFields)
	}
	if cfg.PeriodOffset < 0 {
		rows = ApplyPeriodOffset(rows, fields, cfg.PeriodOffset)
	}

	shift := cfg.shift(schema)
	intradayAsOf := schema.Intraday && !aggregate
	if schema.ShiftUnit == ShiftDays {
		rows = DelayDays(rows, shift)
	}

	var stamps []time.Time
	if intradayAsOf {
		stamps = calendarStamps(cal, cfg.Intraday)
	} else {
		stamps = calendarStamps(cal, nil)
	}

	groups := req.Groups
	if schema.GroupField == "" {
		groups = []string{""}
	} else if len(groups) == 0 {
		groups = distinctGroups(rows)
	}

	byGroup := make(map[string][]Row, len(groups))
	for _, r := range rows {
		byGroup[r.Group] = append(byGroup[r.Group], r)
	}

	frames := make(map[string][]domain.FieldFrame, len(groups))
	for _, g := range groups {
		panel := NewPanel(stamps, cal.Entities, fields, byGroup[g])
		if e.metrics != nil {
			e.metrics.TimelineRows.Record(ctx, int64(panel.Rows()), metric.WithAttributes(attribute.String("feed", schema.Feed)))
		}

		if cfg.ffill(schema) {
			panel.ForwardFill()
		}
		if !intradayAsOf && schema.ShiftUnit == ShiftRows {
			panel.ShiftRows(shift)
		}
		if hasMaxLag {
			masked := panel.ApplyMaxLag(maxLag)
			if e.metrics != nil && masked > 0 {
				e.metrics.CellsMaskedByMaxLag.Add(ctx, int64(masked), metric.WithAttributes(attribute.String("feed", schema.Feed)))
			}
		}

		groupFrames := make([]domain.FieldFrame, 0, len(fields))
		for _, f := range fields {
			var values [][]domain.Value
			if panel.Rows() == 0 {
				values = emptyFrame(len(stamps), len(cal.Entities))
			} else {
				values = panel.Trim(f, stamps)
			}
			if intradayAsOf {
				values = shiftFrame(values, shift)
			}
			fillNulls(values, cal.Dates, schema.NullFill, schema.NullFillFrom)
			groupFrames = append(groupFrames, domain.FieldFrame{Field: f, Values: values})
		}
		frames[g] = groupFrames

		e.logger.DebugContext(ctx, "group aligned",
			slog.String("feed", schema.Feed),
			slog.String("group", g),
			slog.Int("timeline_rows", panel.Rows()),
			slog.Int("facts", len(byGroup[g])))
	}

	return assemble(schema, cal, groups, frames), nil
}

func distinctGroups(rows []Row) []string {
	seen := make(map[string]struct{})
	var groups []string
	for _, r := range rows {
		if _, ok := seen[r.Group]; ok {
			continue
		}
		seen[r.Group] = struct{}{}
		groups = append(groups, r.Group)
	}
	sort.Strings(groups)
	return groups
}
