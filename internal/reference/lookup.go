// Package reference serves per-entity reference data such as each
// security's exchange timezone.
package reference

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "pitalign/internal/errors"
)

// StaticLookup is a map-backed lookup: entity -> field -> value.
type StaticLookup map[string]map[string]string

// Lookup returns the requested fields for each known entity. Unknown
// entities and empty values are omitted.
func (s StaticLookup) Lookup(ctx context.Context, entities []string, fields []string) (map[string]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(entities))
	for _, e := range entities {
		row, ok := s[e]
		if !ok {
			continue
		}
		values := make(map[string]string, len(fields))
		for _, f := range fields {
			if v := row[f]; v != "" {
				values[f] = v
			}
		}
		if len(values) > 0 {
			out[e] = values
		}
	}
	return out, nil
}

// Timezones builds a lookup holding only the Timezone field.
func Timezones(zones map[string]string) StaticLookup {
	s := make(StaticLookup, len(zones))
	for entity, tz := range zones {
		s[entity] = map[string]string{"Timezone": tz}
	}
	return s
}

// FileLookup is a StaticLookup loaded from a header-first CSV master file
// with a Sid column.
type FileLookup struct {
	StaticLookup
	Path string
}

// LoadFile reads a reference CSV from path.
func LoadFile(path string) (*FileLookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open reference file", err).WithContext("path", path)
	}
	defer f.Close()

	lookup, err := Read(f)
	if err != nil {
		return nil, err
	}
	return &FileLookup{StaticLookup: lookup, Path: path}, nil
}

// Read parses reference CSV rows keyed by their Sid column.
func Read(r io.Reader) (StaticLookup, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read reference CSV", err)
	}
	if len(rows) == 0 {
		return StaticLookup{}, nil
	}

	header := rows[0]
	sid := -1
	for i, name := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if header[i] == "Sid" {
			sid = i
		}
	}
	if sid < 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("reference file has no Sid column (columns: %s)", strings.Join(header, ", ")), nil)
	}

	lookup := make(StaticLookup, len(rows)-1)
	for _, row := range rows[1:] {
		if sid >= len(row) || strings.TrimSpace(row[sid]) == "" {
			continue
		}
		values := make(map[string]string, len(header)-1)
		for i, name := range header {
			if i == sid || i >= len(row) {
				continue
			}
			values[name] = strings.TrimSpace(row[i])
		}
		lookup[strings.TrimSpace(row[sid])] = values
	}
	return lookup, nil
}
