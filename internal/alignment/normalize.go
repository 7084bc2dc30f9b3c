package alignment

import (
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

// Row is a normalized fact: typed values stamped on the civil timeline.
type Row struct {
	Entity string
	Group  string
	// Stamp is the aligned civil timestamp (date-only unless intraday).
	Stamp time.Time
	// Event is the original event time, kept for tie-breaking.
	Event time.Time
	// Ref is the civil as-of date max-lag measures from; zero when unknown.
	Ref    time.Time
	Values map[string]domain.Value
	// TieBreak holds the raw tie-break field values in schema order.
	TieBreak []domain.Value
	// Seq is the record's position in the source batch.
	Seq int
}

// Normalizer turns raw fact records into Rows.
type Normalizer struct {
	Schema *Schema
	// Fields are the value fields to keep.
	Fields []string
	// Location converts UTC event stamps when set.
	Location *time.Location
	// EntityLocations takes precedence over Location when set.
	EntityLocations map[string]*time.Location
	// FullResolution keeps time of day; otherwise stamps are truncated to dates.
	FullResolution bool
	// Entities restricts output to the calendar's columns.
	Entities []string
}

// Normalize parses every record. Records for entities outside the calendar
// are skipped; records with an unparsable value fail the call.
func (n *Normalizer) Normalize(records []domain.FactRecord) ([]Row, error) {
	keep := make(map[string]struct{}, len(n.Entities))
	for _, e := range n.Entities {
		keep[e] = struct{}{}
	}

	rows := make([]Row, 0, len(records))
	for seq, rec := range records {
		if _, ok := keep[rec.EntityID]; !ok {
			continue
		}

		stamp, err := n.stamp(rec)
		if err != nil {
			return nil, err
		}

		values := make(map[string]domain.Value, len(n.Fields))
		empty := true
		for _, name := range n.Fields {
			v, err := n.coerce(name, rec.Field(name))
			if err != nil {
				return nil, err
			}
			if !v.IsNull() {
				empty = false
			}
			values[name] = v
		}
		if empty && n.Schema.SkipEmptyRecords {
			continue
		}

		row := Row{
			Entity: rec.EntityID,
			Stamp:  stamp,
			Event:  rec.EventTime,
			Ref:    civilDate(stamp),
			Values: values,
			Seq:    seq,
		}
		if n.Schema.GroupField != "" {
			row.Group = rec.Field(n.Schema.GroupField).String()
		}
		if n.Schema.ReferenceField != "" {
			ref, ok, err := asTime(rec.Field(n.Schema.ReferenceField))
			if err != nil {
				return nil, apperrors.NewParsingError("invalid "+n.Schema.ReferenceField+" for "+rec.EntityID, err)
			}
			row.Ref = time.Time{}
			if ok {
				row.Ref = civilDate(ref)
			}
		}
		for _, name := range n.Schema.TieBreakFields {
			row.TieBreak = append(row.TieBreak, rec.Field(name))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (n *Normalizer) stamp(rec domain.FactRecord) (time.Time, error) {
	local := rec.EventTime
	if n.Schema.EventClock == EventUTC {
		loc := n.Location
		if n.EntityLocations != nil {
			loc = n.EntityLocations[rec.EntityID]
		}
		if loc == nil {
			return time.Time{}, apperrors.NewInternalError("no timezone resolved for "+rec.EntityID, nil)
		}
		local = rec.EventTime.UTC().In(loc)
	}
	if n.FullResolution {
		return civil(local), nil
	}
	return civilDate(local), nil
}

func (n *Normalizer) coerce(name string, v domain.Value) (domain.Value, error) {
	spec, declared := n.Schema.Field(name)
	if !declared {
		return inferValue(v), nil
	}
	if v.IsNull() {
		return v, nil
	}
	if spec.Presence {
		return domain.Bool(true), nil
	}

	out, err := coerceValue(spec, v)
	if err != nil {
		return domain.Null(), apperrors.NewParsingError("field "+name+" of "+n.Schema.Feed, err)
	}
	return out, nil
}

func coerceValue(spec FieldSpec, v domain.Value) (domain.Value, error) {
	switch spec.Kind {
	case domain.KindNumber:
		switch v.Kind {
		case domain.KindNumber:
			return v, nil
		case domain.KindBool:
			if v.Bool {
				return domain.Number(1), nil
			}
			return domain.Number(0), nil
		case domain.KindString:
			s := strings.TrimSpace(v.Str)
			if s == "" || strings.EqualFold(s, "nan") {
				return domain.Null(), nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return domain.Null(), err
			}
			return domain.Number(f), nil
		}
	case domain.KindString:
		if v.Kind == domain.KindString && v.Str == "" {
			return domain.Null(), nil
		}
		return domain.String(v.String()), nil
	case domain.KindTime:
		t, ok, err := asTime(v)
		if err != nil || !ok {
			return domain.Null(), err
		}
		return domain.Timestamp(t), nil
	case domain.KindBool:
		switch v.Kind {
		case domain.KindBool:
			return v, nil
		case domain.KindNumber:
			if math.IsNaN(v.Num) {
				return domain.Null(), nil
			}
			return domain.Bool(v.Num != 0), nil
		case domain.KindString:
			s := strings.TrimSpace(v.Str)
			if s == "" {
				return domain.Null(), nil
			}
			if len(spec.TrueValues) > 0 {
				return domain.Bool(containsFold(spec.TrueValues, s)), nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return domain.Bool(f != 0), nil
			}
			b, err := strconv.ParseBool(s)
			if err != nil {
				return domain.Null(), err
			}
			return domain.Bool(b), nil
		}
	}
	return domain.Null(), strconv.ErrSyntax
}

// inferValue types an undeclared field: numeric strings become numbers.
func inferValue(v domain.Value) domain.Value {
	if v.Kind != domain.KindString {
		return v
	}
	s := strings.TrimSpace(v.Str)
	if s == "" {
		return domain.Null()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return domain.Number(f)
	}
	return v
}

var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// ParseTime accepts the date and timestamp layouts fact sources emit.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func asTime(v domain.Value) (time.Time, bool, error) {
	switch v.Kind {
	case domain.KindTime:
		return v.Time, true, nil
	case domain.KindString:
		if strings.TrimSpace(v.Str) == "" {
			return time.Time{}, false, nil
		}
		t, err := ParseTime(v.Str)
		if err != nil {
			return time.Time{}, false, err
		}
		return t, true, nil
	case domain.KindNull:
		return time.Time{}, false, nil
	}
	return time.Time{}, false, strconv.ErrSyntax
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
