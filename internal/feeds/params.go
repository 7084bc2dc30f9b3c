package feeds

import (
	"time"

	"pitalign/internal/alignment"
	apperrors "pitalign/internal/errors"
	"pitalign/internal/factsource"
	"pitalign/pkg/contracts/domain"
)

// Params are the caller-facing arguments of one feed call.
type Params struct {
	// Codes select result groups (indicator or COA codes) for grouped feeds.
	Codes        []string `json:"codes,omitempty" validate:"omitempty,dive,required"`
	Fields       []string `json:"fields,omitempty" validate:"omitempty,dive,required"`
	Shift        *int     `json:"shift,omitempty" validate:"omitempty,gte=0"`
	ForwardFill  *bool    `json:"ffill,omitempty"`
	MaxLag       string   `json:"max_lag,omitempty"`
	PeriodOffset int      `json:"period_offset,omitempty"`
	Timezone     string   `json:"timezone,omitempty"`
	// Time is an as-of clock such as "09:30:00 America/New_York".
	Time      string `json:"time,omitempty"`
	Aggregate bool   `json:"aggregate,omitempty"`
	// Options holds feed-specific filters keyed by option name.
	Options map[string][]string `json:"options,omitempty"`
}

// Config converts p into the engine's alignment config.
func (p Params) Config() (alignment.AlignmentConfig, error) {
	cfg := alignment.AlignmentConfig{
		Fields:       p.Fields,
		Shift:        p.Shift,
		ForwardFill:  p.ForwardFill,
		MaxLag:       p.MaxLag,
		PeriodOffset: p.PeriodOffset,
		Timezone:     p.Timezone,
	}

	if p.Time != "" && p.Aggregate {
		return cfg, apperrors.NewParameterError("the time argument is only supported if aggregate=False")
	}
	switch {
	case p.Aggregate:
		cfg.Intraday = alignment.DailyAggregate{}
	case p.Time != "":
		at, err := alignment.ParseAsOfTime(p.Time)
		if err != nil {
			return cfg, err
		}
		cfg.Intraday = at
	}
	return cfg, nil
}

// Query builds the fact-source query for a call on cal.
func (f *Feed) Query(cal domain.TargetCalendar, p Params, opts map[string][]string) factsource.Query {
	first, last := cal.Bounds()
	q := factsource.Query{
		Feed:     f.Name,
		Entities: cal.Entities,
		End:      dateOf(last),
		Fields:   f.queryFields(p),
		Filters:  make(map[string][]string, len(opts)+1),
	}
	if !f.Schema.Unbounded {
		q.Start = dateOf(first).AddDate(0, 0, -f.lookbackDays(p, opts))
	}
	// UTC instants late on the last local date fall on the next UTC date.
	if f.Schema.EventClock == alignment.EventUTC {
		q.End = q.End.AddDate(0, 0, 1)
	}

	for _, o := range f.Options {
		if values, ok := opts[o.Name]; ok {
			q.Filters[o.Column] = values
		}
	}
	if f.Schema.GroupField != "" && len(p.Codes) > 0 {
		q.Filters[f.Schema.GroupField] = p.Codes
	}
	return q
}

// queryFields lists the source columns a call needs; nil means all of them.
func (f *Feed) queryFields(p Params) []string {
	s := f.Schema
	var fields []string
	switch {
	case p.Aggregate:
		fields = s.FieldNames()
	case len(p.Fields) > 0:
		fields = p.Fields
	case len(s.DefaultFields) > 0:
		fields = s.DefaultFields
	case s.OpenFields:
		return nil
	default:
		fields = s.FieldNames()
	}

	out := make([]string, 0, len(fields)+2+len(s.TieBreakFields))
	seen := make(map[string]struct{})
	add := func(names ...string) {
		for _, n := range names {
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	add(fields...)
	add(s.GroupField, s.ReferenceField)
	add(s.TieBreakFields...)
	return out
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
