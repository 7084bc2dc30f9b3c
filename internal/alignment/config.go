package alignment

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "pitalign/internal/errors"
)

// AlignmentConfig holds the caller-tunable knobs of one alignment call.
// Nil pointers fall back to the feed's schema defaults.
type AlignmentConfig struct {
	Fields      []string `json:"fields,omitempty" validate:"omitempty,dive,required"`
	Shift       *int     `json:"shift,omitempty" validate:"omitempty,gte=0"`
	ForwardFill *bool    `json:"ffill,omitempty"`
	// MaxLag bounds how stale a forward-filled value may be, e.g. "23D" or "2W".
	MaxLag string `json:"max_lag,omitempty" validate:"omitempty,maxlag"`
	// PeriodOffset walks back that many report events; must be <= 0.
	PeriodOffset int `json:"period_offset,omitempty" validate:"lte=0"`
	// Timezone overrides timezone resolution for UTC feeds.
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
	// Intraday is nil, AsOfTime or DailyAggregate.
	Intraday IntradayMode `json:"-" validate:"-"`
}

// IntradayMode selects how intraday records reach the daily calendar.
// AsOfTime and DailyAggregate are the only implementations.
type IntradayMode interface {
	intradayMode()
}

// AsOfTime picks the latest record at or before date + Clock in each row.
type AsOfTime struct {
	Clock time.Duration
	// Location is set when the time string named a zone.
	Location *time.Location
	Raw      string
}

func (AsOfTime) intradayMode() {}

// DailyAggregate collapses each local day into Min/Max/Mean/Last fields.
type DailyAggregate struct{}

func (DailyAggregate) intradayMode() {}

// ParseAsOfTime parses "HH:MM[:SS] [Zone]".
func ParseAsOfTime(s string) (AsOfTime, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 || len(parts) > 2 {
		return AsOfTime{}, apperrors.NewParameterError("could not parse time '%s'", s)
	}

	var clock time.Time
	var err error
	for _, layout := range []string{"15:04:05", "15:04"} {
		if clock, err = time.Parse(layout, parts[0]); err == nil {
			break
		}
	}
	if err != nil {
		return AsOfTime{}, apperrors.NewParameterError("could not parse time '%s'", s)
	}

	at := AsOfTime{
		Clock: time.Duration(clock.Hour())*time.Hour +
			time.Duration(clock.Minute())*time.Minute +
			time.Duration(clock.Second())*time.Second,
		Raw: s,
	}
	if len(parts) == 2 {
		loc, err := loadLocation(parts[1])
		if err != nil {
			return AsOfTime{}, err
		}
		at.Location = loc
	}
	return at, nil
}

var lagPattern = regexp.MustCompile(`^(\d+)\s*([A-Za-z]+)$`)

var lagUnits = map[string]time.Duration{
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"t": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"s": time.Second, "sec": time.Second, "second": time.Second, "seconds": time.Second,
}

// ParseMaxLag parses a staleness bound such as "23D", "2W", "12H", "30min" or a Go duration.
func ParseMaxLag(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if m := lagPattern.FindStringSubmatch(s); m != nil {
		unit, ok := lagUnits[strings.ToLower(m[2])]
		if ok {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, apperrors.NewParameterError("invalid max_lag %q", s)
			}
			return time.Duration(n) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, apperrors.NewParameterError("invalid max_lag %q", s)
	}
	return d, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("maxlag", func(fl validator.FieldLevel) bool {
		_, err := ParseMaxLag(fl.Field().String())
		return err == nil
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the config against itself and the feed schema. All
// failures are parameter errors raised before any I/O.
func (c AlignmentConfig) Validate(schema *Schema) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.NewParameterError("%s", formatValidationError(verrs[0]))
		}
		return apperrors.NewParameterError("invalid alignment config: %v", err)
	}

	if c.Timezone != "" {
		switch {
		case schema.EventClock != EventUTC || schema.Timezone == TimezoneNone:
			return apperrors.NewParameterError("timezone is not supported for %s, its records carry local dates", schema.Feed)
		case schema.Timezone == TimezonePerEntity:
			return apperrors.NewParameterError("timezone is not supported for %s, records are placed in each entity's own timezone", schema.Feed)
		}
	}

	switch mode := c.Intraday.(type) {
	case nil:
	case AsOfTime:
		if !schema.Intraday {
			return apperrors.NewParameterError("the time argument is only supported for intraday feeds, %s is daily", schema.Feed)
		}
		if mode.Location != nil && c.Timezone != "" && mode.Location.String() != c.Timezone {
			return apperrors.NewParameterError("time zone %s conflicts with timezone %s", mode.Location, c.Timezone)
		}
	case DailyAggregate:
		if !schema.Intraday {
			return apperrors.NewParameterError("aggregate is only supported for intraday feeds, %s is daily", schema.Feed)
		}
	default:
		return apperrors.NewParameterError("unsupported intraday mode %T", mode)
	}

	if c.PeriodOffset != 0 && schema.ReferenceField == "" {
		return apperrors.NewParameterError("period_offset is not supported for %s", schema.Feed)
	}
	return nil
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "lte":
		if field == "period_offset" {
			return "period_offset must be a negative integer or 0"
		}
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "timezone":
		return fmt.Sprintf("unknown timezone '%v'", err.Value())
	case "maxlag":
		return fmt.Sprintf("invalid max_lag %q, expected a count and unit such as 23D", err.Value())
	case "required":
		return fmt.Sprintf("%s must not contain empty values", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// explicitTimezone returns the zone named by the caller, if any.
func (c AlignmentConfig) explicitTimezone() string {
	if at, ok := c.Intraday.(AsOfTime); ok && at.Location != nil {
		return at.Location.String()
	}
	return c.Timezone
}

func (c AlignmentConfig) shift(schema *Schema) int {
	if c.Shift != nil {
		return *c.Shift
	}
	return schema.DefaultShift
}

func (c AlignmentConfig) ffill(schema *Schema) bool {
	if c.ForwardFill != nil {
		return *c.ForwardFill
	}
	return schema.ForwardFill
}

func (c AlignmentConfig) aggregate() bool {
	_, ok := c.Intraday.(DailyAggregate)
	return ok
}

// Int returns a pointer to v
func Int(v int) *int { return &v }

// BoolPtr returns a pointer to v
func BoolPtr(v bool) *bool { return &v }
