package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// ValueKind identifies which member of Value is populated
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
	KindTime
	KindBool
)

// String returns the lowercase kind name
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "timestamp"
	case KindBool:
		return "boolean"
	default:
		return "null"
	}
}

// Value is a single fact field value: number, string, timestamp, boolean or null.
// The zero Value is null.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Time time.Time
	Bool bool
}

// Null returns the null value
func Null() Value { return Value{} }

// Number wraps a float64
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// String wraps a string
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Timestamp wraps a time.Time
func Timestamp(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsNull reports whether v holds no value
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Float returns the numeric value when v is a number
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

// Equal compares kind and payload
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindString:
		return v.Str == o.Str
	case KindTime:
		return v.Time.Equal(o.Time)
	case KindBool:
		return v.Bool == o.Bool
	default:
		return true
	}
}

// String renders the value for tabular output; null renders as "".
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindString:
		return v.Str
	case KindTime:
		return v.Time.Format(time.RFC3339)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// MarshalJSON encodes v as the matching JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	case KindTime:
		return json.Marshal(v.Time.Format(time.RFC3339Nano))
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}
