package alignment

import (
	"sort"
	"strconv"
	"strings"

	"pitalign/pkg/contracts/domain"
)

// Deduplicate keeps one row per (group, entity, stamp). The survivor has the
// greatest tie-break values, then the latest event time, then the latest
// source position. Output is ordered by group, entity and stamp.
func Deduplicate(rows []Row) []Row {
	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if !a.Stamp.Equal(b.Stamp) {
			return a.Stamp.Before(b.Stamp)
		}
		for k := 0; k < len(a.TieBreak) && k < len(b.TieBreak); k++ {
			if c := compareValues(a.TieBreak[k], b.TieBreak[k]); c != 0 {
				return c < 0
			}
		}
		if !a.Event.Equal(b.Event) {
			return a.Event.Before(b.Event)
		}
		return a.Seq < b.Seq
	})

	out := sorted[:0:0]
	for i, r := range sorted {
		if i+1 < len(sorted) && sameKey(r, sorted[i+1]) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sameKey(a, b Row) bool {
	return a.Group == b.Group && a.Entity == b.Entity && a.Stamp.Equal(b.Stamp)
}

// compareValues orders tie-break values; null sorts first.
func compareValues(a, b domain.Value) int {
	if a.IsNull() || b.IsNull() {
		switch {
		case a.IsNull() && b.IsNull():
			return 0
		case a.IsNull():
			return -1
		default:
			return 1
		}
	}

	if ta, oka, _ := asTime(a); oka {
		if tb, okb, _ := asTime(b); okb {
			return ta.Compare(tb)
		}
	}
	if fa, oka := numeric(a); oka {
		if fb, okb := numeric(b); okb {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a.String(), b.String())
}

func numeric(v domain.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if v.Kind == domain.KindString {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	}
	return 0, false
}
