package alignment

import (
	"sort"
	"time"

	"pitalign/pkg/contracts/domain"
)

// Panel is one field group laid out over the unioned timeline. Cells are
// stored row-major: cell (row, col) lives at row*len(Entities)+col.
type Panel struct {
	Timeline []time.Time
	Entities []string
	Fields   []string

	cells map[string][]domain.Value
	// refs carries each cell's as-of reference date alongside the values.
	refs []time.Time
	// reports marks cells where a fact actually landed.
	reports []bool
}

// NewPanel builds the panel over sort(union(calendar, fact stamps)). Calendar
// stamps strictly before the earliest fact are pruned: they can only hold
// nulls and trimming restores them.
func NewPanel(calendar []time.Time, entities, fields []string, rows []Row) *Panel {
	col := make(map[string]int, len(entities))
	for i, e := range entities {
		col[e] = i
	}

	var placed []Row
	for _, r := range rows {
		if _, ok := col[r.Entity]; ok {
			placed = append(placed, r)
		}
	}

	p := &Panel{
		Entities: entities,
		Fields:   fields,
		cells:    make(map[string][]domain.Value, len(fields)),
	}
	p.Timeline = unionTimeline(calendar, placed)

	n := len(p.Timeline) * len(entities)
	for _, f := range fields {
		p.cells[f] = make([]domain.Value, n)
	}
	p.refs = make([]time.Time, n)
	p.reports = make([]bool, n)

	for _, r := range placed {
		row := p.rowOf(r.Stamp)
		idx := p.index(row, col[r.Entity])
		for _, f := range fields {
			p.cells[f][idx] = r.Values[f]
		}
		p.refs[idx] = r.Ref
		p.reports[idx] = true
	}
	return p
}

func unionTimeline(calendar []time.Time, rows []Row) []time.Time {
	if len(rows) == 0 {
		return nil
	}
	first := rows[0].Stamp
	for _, r := range rows[1:] {
		if r.Stamp.Before(first) {
			first = r.Stamp
		}
	}

	seen := make(map[int64]struct{}, len(calendar)+len(rows))
	timeline := make([]time.Time, 0, len(calendar)+len(rows))
	add := func(t time.Time) {
		if _, ok := seen[t.UnixNano()]; ok {
			return
		}
		seen[t.UnixNano()] = struct{}{}
		timeline = append(timeline, t)
	}
	for _, t := range calendar {
		if !t.Before(first) {
			add(t)
		}
	}
	for _, r := range rows {
		add(r.Stamp)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	return timeline
}

// Rows returns the timeline length
func (p *Panel) Rows() int { return len(p.Timeline) }

func (p *Panel) index(row, col int) int { return row*len(p.Entities) + col }

// rowOf returns the timeline row holding t, or -1.
func (p *Panel) rowOf(t time.Time) int {
	i := sort.Search(len(p.Timeline), func(i int) bool { return !p.Timeline[i].Before(t) })
	if i < len(p.Timeline) && p.Timeline[i].Equal(t) {
		return i
	}
	return -1
}

// At returns the value of field at (row, col)
func (p *Panel) At(field string, row, col int) domain.Value {
	return p.cells[field][p.index(row, col)]
}

// Ref returns the reference date carried at (row, col)
func (p *Panel) Ref(row, col int) time.Time {
	return p.refs[p.index(row, col)]
}
