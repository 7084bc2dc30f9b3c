package factsource

import (
	"context"
	"strings"
	"time"

	"pitalign/pkg/contracts/domain"
)

// Query selects the records of one feed.
type Query struct {
	Feed     string
	Entities []string
	// Start and End bound the event date, inclusive. A zero Start is unbounded.
	Start time.Time
	End   time.Time
	// Fields limits the returned columns; empty returns every column.
	Fields []string
	// Filters keeps records whose column matches one of the listed values.
	Filters map[string][]string
}

// Source is the fact-retrieval collaborator. Implementations return an
// error of type NO_FACT_DATA when nothing matches.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]domain.FactRecord, error)
}

// Match reports whether rec satisfies the query's entity, date and filter
// constraints.
func (q Query) Match(rec domain.FactRecord, entities map[string]struct{}) bool {
	if _, ok := entities[rec.EntityID]; !ok {
		return false
	}
	d := eventDate(rec.EventTime)
	if !q.Start.IsZero() && d.Before(eventDate(q.Start)) {
		return false
	}
	if !q.End.IsZero() && d.After(eventDate(q.End)) {
		return false
	}
	for column, accepted := range q.Filters {
		if len(accepted) == 0 {
			continue
		}
		got := rec.Field(column).String()
		matched := false
		for _, want := range accepted {
			if strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Project returns rec restricted to the query's fields.
func (q Query) Project(rec domain.FactRecord) domain.FactRecord {
	if len(q.Fields) == 0 {
		return rec
	}
	fields := make(map[string]domain.Value, len(q.Fields))
	for _, name := range q.Fields {
		if v, ok := rec.Fields[name]; ok {
			fields[name] = v
		}
	}
	return domain.FactRecord{EntityID: rec.EntityID, EventTime: rec.EventTime, Fields: fields}
}

func (q Query) entitySet() map[string]struct{} {
	set := make(map[string]struct{}, len(q.Entities))
	for _, e := range q.Entities {
		set[e] = struct{}{}
	}
	return set
}

// eventDate is the UTC calendar date of t.
func eventDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
