package alignment

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pitalign/pkg/contracts/domain"
)

func aggregateNames(field string) []string {
	return []string{"Min" + field, "Max" + field, "Mean" + field, "Last" + field}
}

// AggregateDaily collapses intraday rows into one row per (group, entity,
// local day) holding Min, Max, Mean and Last of each raw field. Rows must be
// at full resolution; output stamps are dates. Nulls are ignored; a day
// where a field is always null yields nulls for its derived fields.
func AggregateDaily(rows []Row, fields []string) []Row {
	type dayKey struct {
		group, entity string
		day           time.Time
	}

	buckets := make(map[dayKey][]Row)
	var keys []dayKey
	for _, r := range rows {
		k := dayKey{r.Group, r.Entity, civilDate(r.Stamp)}
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], r)
	}

	out := make([]Row, 0, len(keys))
	for _, k := range keys {
		day := buckets[k]
		sort.SliceStable(day, func(i, j int) bool { return day[i].Stamp.Before(day[j].Stamp) })
		last := day[len(day)-1]

		values := make(map[string]domain.Value, 4*len(fields))
		for _, f := range fields {
			names := aggregateNames(f)
			series := make([]float64, 0, len(day))
			for _, r := range day {
				if x, ok := r.Values[f].Float(); ok {
					series = append(series, x)
				}
			}
			if len(series) == 0 {
				for _, n := range names {
					values[n] = domain.Null()
				}
				continue
			}
			values[names[0]] = domain.Number(floats.Min(series))
			values[names[1]] = domain.Number(floats.Max(series))
			values[names[2]] = domain.Number(stat.Mean(series, nil))
			values[names[3]] = domain.Number(series[len(series)-1])
		}

		out = append(out, Row{
			Entity: k.entity,
			Group:  k.group,
			Stamp:  k.day,
			Event:  last.Event,
			Ref:    k.day,
			Values: values,
			Seq:    last.Seq,
		})
	}
	return out
}
