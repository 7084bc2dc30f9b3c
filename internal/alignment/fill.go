package alignment

import (
	"time"

	"pitalign/pkg/contracts/domain"
)

// ForwardFill replaces each null with the nearest preceding non-null value
// of the same entity, independently per field and for reference dates.
func (p *Panel) ForwardFill() {
	cols := len(p.Entities)
	for _, f := range p.Fields {
		cells := p.cells[f]
		for c := 0; c < cols; c++ {
			var last domain.Value
			for r := 0; r < p.Rows(); r++ {
				i := p.index(r, c)
				if cells[i].IsNull() {
					cells[i] = last
				} else {
					last = cells[i]
				}
			}
		}
	}
	for c := 0; c < cols; c++ {
		var last time.Time
		for r := 0; r < p.Rows(); r++ {
			i := p.index(r, c)
			if p.refs[i].IsZero() {
				p.refs[i] = last
			} else {
				last = p.refs[i]
			}
		}
	}
}

// ShiftRows moves every value k rows later on the timeline: the value true
// at row i becomes visible at row i+k. The first k rows become null.
func (p *Panel) ShiftRows(k int) {
	if k <= 0 {
		return
	}
	cols := len(p.Entities)
	rows := p.Rows()
	for _, f := range p.Fields {
		cells := p.cells[f]
		for r := rows - 1; r >= 0; r-- {
			for c := 0; c < cols; c++ {
				if r >= k {
					cells[p.index(r, c)] = cells[p.index(r-k, c)]
				} else {
					cells[p.index(r, c)] = domain.Null()
				}
			}
		}
	}
	for r := rows - 1; r >= 0; r-- {
		for c := 0; c < cols; c++ {
			if r >= k {
				p.refs[p.index(r, c)] = p.refs[p.index(r-k, c)]
			} else {
				p.refs[p.index(r, c)] = time.Time{}
			}
		}
	}
}

// DelayDays moves every row's stamp k calendar days later, so a value
// known at T is first visible at T+k days.
func DelayDays(rows []Row, k int) []Row {
	if k <= 0 {
		return rows
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		r.Stamp = r.Stamp.AddDate(0, 0, k)
		out[i] = r
	}
	return out
}

// shiftFrame shifts an already trimmed [date][entity] frame k rows later.
func shiftFrame(frame [][]domain.Value, k int) [][]domain.Value {
	if k <= 0 {
		return frame
	}
	out := make([][]domain.Value, len(frame))
	for r := range frame {
		out[r] = make([]domain.Value, len(frame[r]))
		if r >= k {
			copy(out[r], frame[r-k])
		}
	}
	return out
}
