package domain

import "time"

// FactRecord is one raw record returned by a fact source.
// EventTime is the record's primary timestamp: a UTC instant for feeds that
// publish update times, or a naive calendar date (midnight UTC) for feeds
// that publish dates only.
type FactRecord struct {
	EntityID  string           `json:"sid" validate:"required"`
	EventTime time.Time        `json:"event_time"`
	Fields    map[string]Value `json:"fields"`
}

// Field returns the named field or null when absent
func (r FactRecord) Field(name string) Value {
	if r.Fields == nil {
		return Null()
	}
	return r.Fields[name]
}
