package testutil

import (
	"time"

	"pitalign/pkg/contracts/domain"
)

// Date parses YYYY-MM-DD as a naive date; it panics on bad input.
func Date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// Instant parses an RFC 3339 timestamp; it panics on bad input.
func Instant(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Location loads an IANA zone; it panics on bad input.
func Location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Record builds a fact record the way a file source would: every
// non-empty cell is a string and empty cells are null.
func Record(entity string, event time.Time, cells map[string]string) domain.FactRecord {
	fields := make(map[string]domain.Value, len(cells))
	for k, v := range cells {
		if v == "" {
			fields[k] = domain.Null()
			continue
		}
		fields[k] = domain.String(v)
	}
	return domain.FactRecord{EntityID: entity, EventTime: event, Fields: fields}
}

// Calendar builds a naive daily calendar from start for days rows.
func Calendar(start string, days int, entities ...string) domain.TargetCalendar {
	return domain.NewDailyCalendar(Date(start), days, entities...)
}

// Floats flattens numeric values; nulls become -1.
func Floats(vals []domain.Value) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := v.Float()
		if !ok {
			out[i] = -1
			continue
		}
		out[i] = f
	}
	return out
}

// Bools flattens boolean values; nulls become false.
func Bools(vals []domain.Value) []bool {
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v.Kind == domain.KindBool && v.Bool
	}
	return out
}

// Strings flattens values to their string form; nulls become "".
func Strings(vals []domain.Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		if !v.IsNull() {
			out[i] = v.String()
		}
	}
	return out
}
