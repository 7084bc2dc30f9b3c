package alignment

import (
	"context"
	"time"

	"pitalign/pkg/contracts/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func instant(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func rec(entity string, event time.Time, fields map[string]domain.Value) domain.FactRecord {
	return domain.FactRecord{EntityID: entity, EventTime: event, Fields: fields}
}

func num(f float64) domain.Value { return domain.Number(f) }

// seriesFloats flattens a series; nulls become -1.
func seriesFloats(vals []domain.Value) []float64 {
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

// staticLookup maps entity to timezone name.
type staticLookup map[string]string

func (s staticLookup) Lookup(_ context.Context, entities []string, _ []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(entities))
	for _, e := range entities {
		if tz, ok := s[e]; ok {
			out[e] = map[string]string{TimezoneField: tz}
		}
	}
	return out, nil
}

// reportSchema is a daily, date-stamped feed with report periods.
func reportSchema() *Schema {
	return &Schema{
		Feed:           "reports",
		ReferenceField: "Period",
		Fields: []FieldSpec{
			{Name: "Value", Kind: domain.KindNumber},
		},
		EventClock:   EventDate,
		DefaultShift: 1,
		ShiftUnit:    ShiftRows,
		ForwardFill:  true,
	}
}

// quantitySchema is an intraday UTC feed resolved to one timezone.
func quantitySchema() *Schema {
	return &Schema{
		Feed: "quantity",
		Fields: []FieldSpec{
			{Name: "Quantity", Kind: domain.KindNumber},
		},
		EventClock:  EventUTC,
		Timezone:    TimezoneSingle,
		Intraday:    true,
		ShiftUnit:   ShiftRows,
		ForwardFill: true,
	}
}
