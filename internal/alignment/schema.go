package alignment

import (
	"sort"
	"time"

	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

// EventClock describes how a feed stamps its records
type EventClock int

const (
	// EventDate records carry a naive calendar date already local to the security.
	EventDate EventClock = iota
	// EventUTC records carry a UTC instant that must be converted to a zone.
	EventUTC
)

// TimezoneMode selects how the Timezone Resolver runs for a feed
type TimezoneMode int

const (
	// TimezoneNone skips resolution; event stamps are used as-is.
	TimezoneNone TimezoneMode = iota
	// TimezoneSingle resolves one zone for the whole call.
	TimezoneSingle
	// TimezonePerEntity converts each entity's records into its own reference zone.
	TimezonePerEntity
)

// ShiftUnit is the period a shift count is measured in
type ShiftUnit int

const (
	// ShiftRows shifts by rows of the unioned timeline.
	ShiftRows ShiftUnit = iota
	// ShiftDays delays visibility by calendar days.
	ShiftDays
)

// FieldSpec declares one field a feed can return and its value type.
type FieldSpec struct {
	Name string
	Kind domain.ValueKind
	// TrueValues maps string inputs of a boolean field; any other string is false.
	TrueValues []string
	// Presence turns any non-null input into true.
	Presence bool
}

// Schema is the explicit per-feed contract the engine is parameterized by.
type Schema struct {
	Feed string

	// GroupField partitions records into result groups (Indicator, CoaCode).
	GroupField string
	// EventField names the column the fact source uses for EventTime.
	EventField string
	// ReferenceField carries the as-of date max-lag is measured from.
	ReferenceField string
	// TieBreakFields order re-filings sharing (entity, aligned timestamp).
	TieBreakFields []string

	Fields        []FieldSpec
	DefaultFields []string
	// OpenFields accepts fields not declared in Fields; values are inferred.
	OpenFields bool
	// MetaFields are source columns that never become value fields.
	MetaFields []string
	// SkipEmptyRecords drops records whose requested fields are all null.
	SkipEmptyRecords bool

	EventClock EventClock
	Timezone   TimezoneMode
	// MissingTimezoneMessage prefixes the per-entity missing timezone error.
	MissingTimezoneMessage string

	Intraday     bool
	DefaultShift int
	ShiftUnit    ShiftUnit
	ForwardFill  bool

	// NullFill replaces nulls in the output on or after NullFillFrom.
	NullFill     domain.Value
	NullFillFrom time.Time

	// LookbackDays widens the query start before the calendar minimum;
	// Unbounded drops the start altogether.
	LookbackDays int
	Unbounded    bool

	// RecoverNoData converts the fact source's no-data signal into an empty record set.
	RecoverNoData bool
}

// Field returns the declared spec for name
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames lists the declared fields in order
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// AggregateFieldNames lists the derived daily fields for every declared field.
func (s *Schema) AggregateFieldNames() []string {
	names := make([]string, 0, 4*len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, aggregateNames(f.Name)...)
	}
	return names
}

// reservedField reports whether name is a structural column rather than a value.
func (s *Schema) reservedField(name string) bool {
	return name == s.EventField || name == s.GroupField || name == s.ReferenceField ||
		name == "Sid" || contains(s.MetaFields, name)
}

// CheckFields validates requested field names before any records exist.
func (s *Schema) CheckFields(requested []string, aggregate bool) error {
	_, err := s.resolveFields(requested, aggregate, nil)
	return err
}

// resolveFields decides which fields the call produces.
func (s *Schema) resolveFields(requested []string, aggregate bool, records []domain.FactRecord) ([]string, error) {
	if aggregate {
		valid := s.AggregateFieldNames()
		if len(requested) == 0 {
			return valid, nil
		}
		for _, f := range requested {
			if !contains(valid, f) {
				return nil, apperrors.NewParameterError("unknown field %q for %s aggregate mode, valid fields: %v", f, s.Feed, valid)
			}
		}
		return requested, nil
	}

	if len(requested) == 0 {
		if len(s.DefaultFields) > 0 {
			return s.DefaultFields, nil
		}
		if !s.OpenFields {
			return s.FieldNames(), nil
		}
		return s.observedFields(records), nil
	}

	if !s.OpenFields {
		for _, f := range requested {
			if _, ok := s.Field(f); !ok {
				return nil, apperrors.NewParameterError("unknown field %q for %s, valid fields: %v", f, s.Feed, s.FieldNames())
			}
		}
	}
	return requested, nil
}

func (s *Schema) observedFields(records []domain.FactRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for name := range r.Fields {
			if s.reservedField(name) {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
