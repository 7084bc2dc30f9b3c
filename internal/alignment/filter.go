package alignment

import (
	"time"

	"pitalign/pkg/contracts/domain"
)

// ApplyMaxLag nulls every cell whose reference date is more than lag before
// the row's timestamp. Cells without a reference date are left alone.
// Returns the number of (row, entity) cells masked.
func (p *Panel) ApplyMaxLag(lag time.Duration) int {
	masked := 0
	cols := len(p.Entities)
	for r, stamp := range p.Timeline {
		for c := 0; c < cols; c++ {
			i := p.index(r, c)
			ref := p.refs[i]
			if ref.IsZero() || stamp.Sub(ref) <= lag {
				continue
			}
			hit := false
			for _, f := range p.Fields {
				if !p.cells[f][i].IsNull() {
					p.cells[f][i] = domain.Null()
					hit = true
				}
			}
			if hit {
				masked++
			}
		}
	}
	return masked
}

// ApplyPeriodOffset replaces each report's values with those of the report
// |offset| events earlier for the same group and entity. Each pass forward-
// fills across the entity's reports then shifts by one report. Rows must be
// ordered by group, entity and stamp, as Deduplicate returns them.
func ApplyPeriodOffset(rows []Row, fields []string, offset int) []Row {
	if offset >= 0 || len(rows) == 0 {
		return rows
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		values := make(map[string]domain.Value, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		r.Values = values
		out[i] = r
	}

	start := 0
	for start < len(out) {
		end := start + 1
		for end < len(out) && out[end].Group == out[start].Group && out[end].Entity == out[start].Entity {
			end++
		}
		for pass := 0; pass < -offset; pass++ {
			shiftReports(out[start:end], fields)
		}
		start = end
	}
	return out
}

func shiftReports(reports []Row, fields []string) {
	for _, f := range fields {
		filled := make([]domain.Value, len(reports))
		var last domain.Value
		for j, r := range reports {
			if v := r.Values[f]; !v.IsNull() {
				last = v
			}
			filled[j] = last
		}
		for j := range reports {
			if j == 0 {
				reports[j].Values[f] = domain.Null()
				continue
			}
			reports[j].Values[f] = filled[j-1]
		}
	}

	refs := make([]time.Time, len(reports))
	var last time.Time
	for j, r := range reports {
		if !r.Ref.IsZero() {
			last = r.Ref
		}
		refs[j] = last
	}
	for j := range reports {
		if j == 0 {
			reports[j].Ref = time.Time{}
			continue
		}
		reports[j].Ref = refs[j-1]
	}
}
