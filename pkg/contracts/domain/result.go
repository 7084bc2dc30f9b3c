package domain

import "time"

// FieldFrame holds one field's values indexed [date][entity]
type FieldFrame struct {
	Field  string    `json:"field"`
	Values [][]Value `json:"values"`
}

// ResultGroup is one field-group (indicator code, COA code, ...) of a result.
// Key is empty for feeds without grouping.
type ResultGroup struct {
	Key    string       `json:"key"`
	Fields []FieldFrame `json:"fields"`
}

// AlignedResult is the output of every alignment call. Its extent always
// equals the target calendar's (Dates x Entities).
type AlignedResult struct {
	Feed       string        `json:"feed"`
	GroupLabel string        `json:"group_label,omitempty"`
	Dates      []time.Time   `json:"dates"`
	Entities   []string      `json:"entities"`
	Groups     []ResultGroup `json:"groups"`
}

// Frame returns the frame for (group, field) or nil.
func (r *AlignedResult) Frame(group, field string) *FieldFrame {
	for gi := range r.Groups {
		if r.Groups[gi].Key != group {
			continue
		}
		for fi := range r.Groups[gi].Fields {
			if r.Groups[gi].Fields[fi].Field == field {
				return &r.Groups[gi].Fields[fi]
			}
		}
	}
	return nil
}

// Series returns one entity's column of (group, field), or nil when either is unknown.
func (r *AlignedResult) Series(group, field, entity string) []Value {
	frame := r.Frame(group, field)
	if frame == nil {
		return nil
	}
	col := -1
	for i, e := range r.Entities {
		if e == entity {
			col = i
			break
		}
	}
	if col < 0 {
		return nil
	}
	out := make([]Value, len(frame.Values))
	for i, row := range frame.Values {
		out[i] = row[col]
	}
	return out
}

// FieldNames lists the fields of the first group in order
func (r *AlignedResult) FieldNames() []string {
	if len(r.Groups) == 0 {
		return nil
	}
	names := make([]string, len(r.Groups[0].Fields))
	for i, f := range r.Groups[0].Fields {
		names[i] = f.Field
	}
	return names
}
