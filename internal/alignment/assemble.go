package alignment

import (
	"time"

	"pitalign/pkg/contracts/domain"
)

// Trim returns field's values at exactly the calendar stamps, one row per
// stamp and one column per panel entity. Stamps absent from the timeline
// (pruned before the first fact) yield null rows.
func (p *Panel) Trim(field string, stamps []time.Time) [][]domain.Value {
	cols := len(p.Entities)
	cells := p.cells[field]
	frame := make([][]domain.Value, len(stamps))
	for i, s := range stamps {
		frame[i] = make([]domain.Value, cols)
		row := p.rowOf(s)
		if row < 0 {
			continue
		}
		copy(frame[i], cells[p.index(row, 0):p.index(row, 0)+cols])
	}
	return frame
}

// emptyFrame is the all-null frame for a calendar.
func emptyFrame(rows, cols int) [][]domain.Value {
	frame := make([][]domain.Value, rows)
	for i := range frame {
		frame[i] = make([]domain.Value, cols)
	}
	return frame
}

// fillNulls replaces nulls with fill in rows dated on or after from. A zero
// from applies to every row; a null fill is a no-op.
func fillNulls(frame [][]domain.Value, dates []time.Time, fill domain.Value, from time.Time) {
	if fill.IsNull() {
		return
	}
	from = civilDate(from)
	for r, row := range frame {
		if !from.IsZero() && civilDate(dates[r]).Before(from) {
			continue
		}
		for c := range row {
			if row[c].IsNull() {
				row[c] = fill
			}
		}
	}
}

// assemble labels the per-group frames into the result.
func assemble(schema *Schema, cal domain.TargetCalendar, groups []string, frames map[string][]domain.FieldFrame) *domain.AlignedResult {
	result := &domain.AlignedResult{
		Feed:       schema.Feed,
		GroupLabel: schema.GroupField,
		Dates:      cal.Dates,
		Entities:   cal.Entities,
		Groups:     make([]domain.ResultGroup, 0, len(groups)),
	}
	for _, g := range groups {
		result.Groups = append(result.Groups, domain.ResultGroup{Key: g, Fields: frames[g]})
	}
	return result
}
