package domain

import "time"

// DateIndexName is the only index dimension a target calendar may carry
const DateIndexName = "Date"

// TargetCalendar is the caller-supplied reindex target: ordered dates (rows)
// and tracked entities (columns).
//
// Location is nil for a timezone-naive calendar; Dates are then read by
// their wall clock regardless of the location attached to each time.Time.
type TargetCalendar struct {
	IndexNames []string       `json:"index_names"`
	Dates      []time.Time    `json:"dates"`
	Location   *time.Location `json:"-"`
	Entities   []string       `json:"entities"`
}

// NewDailyCalendar builds a naive calendar of consecutive days.
func NewDailyCalendar(start time.Time, days int, entities ...string) TargetCalendar {
	dates := make([]time.Time, days)
	y, m, d := start.Date()
	for i := range dates {
		dates[i] = time.Date(y, m, d+i, 0, 0, 0, 0, time.UTC)
	}
	return TargetCalendar{
		IndexNames: []string{DateIndexName},
		Dates:      dates,
		Entities:   entities,
	}
}

// InLocation returns a copy of c whose dates carry the same wall clock in loc.
func (c TargetCalendar) InLocation(loc *time.Location) TargetCalendar {
	dates := make([]time.Time, len(c.Dates))
	for i, d := range c.Dates {
		dates[i] = time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), loc)
	}
	out := c
	out.Dates = dates
	out.Location = loc
	return out
}

// TimezoneName returns the calendar's IANA zone name, or "" when naive.
func (c TargetCalendar) TimezoneName() string {
	if c.Location == nil {
		return ""
	}
	return c.Location.String()
}

// Bounds returns the first and last dates. Callers validate non-emptiness first.
func (c TargetCalendar) Bounds() (time.Time, time.Time) {
	return c.Dates[0], c.Dates[len(c.Dates)-1]
}
