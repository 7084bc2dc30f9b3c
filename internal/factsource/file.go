package factsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"pitalign/internal/alignment"
	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

// EntityColumn is the column holding the entity identifier in fact files
const EntityColumn = "Sid"

// LoadFile reads a CSV or XLSX fact file, choosing the reader by extension.
func LoadFile(path, eventColumn string) ([]domain.FactRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to open fact file", err).WithContext("path", path)
		}
		defer f.Close()
		return ReadCSV(f, eventColumn, path)
	case ".xlsx":
		return ReadXLSX(path, eventColumn)
	default:
		return nil, apperrors.NewStorageError("unsupported fact file type", nil).WithContext("path", path)
	}
}

// ReadCSV parses a header-first CSV stream. origin names the stream in errors.
func ReadCSV(r io.Reader, eventColumn, origin string) ([]domain.FactRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read CSV "+origin, err)
	}
	return recordsFromRows(rows, eventColumn, origin)
}

// ReadXLSX parses the first sheet of an Excel workbook.
func ReadXLSX(path, eventColumn string) ([]domain.FactRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError("workbook has no sheets: "+path, nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read sheet "+sheets[0], err)
	}
	return recordsFromRows(rows, eventColumn, path)
}

func recordsFromRows(rows [][]string, eventColumn, origin string) ([]domain.FactRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	entityIdx, eventIdx := -1, -1
	for i, name := range rows[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		header[i] = name
		switch name {
		case EntityColumn:
			entityIdx = i
		case eventColumn:
			eventIdx = i
		}
	}
	if entityIdx < 0 || eventIdx < 0 {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("%s must have %s and %s columns", origin, EntityColumn, eventColumn), nil)
	}

	records := make([]domain.FactRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		cell := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		entity := cell(entityIdx)
		if entity == "" {
			continue
		}
		event, err := alignment.ParseTime(cell(eventIdx))
		if err != nil {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("%s row %d: invalid %s %q", origin, n+2, eventColumn, cell(eventIdx)), err)
		}

		fields := make(map[string]domain.Value, len(header))
		for i, name := range header {
			if i == entityIdx || name == "" {
				continue
			}
			if v := cell(i); v != "" {
				fields[name] = domain.String(v)
			} else {
				fields[name] = domain.Null()
			}
		}
		records = append(records, domain.FactRecord{EntityID: entity, EventTime: event, Fields: fields})
	}
	return records, nil
}
