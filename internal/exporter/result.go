package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"pitalign/pkg/contracts/domain"
)

// Supported export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// ResultExporter writes aligned results in long format
type ResultExporter struct {
	csvWriter *CSVWriter
}

// NewResultExporter creates an exporter resolving relative paths against baseDir
func NewResultExporter(baseDir string) *ResultExporter {
	return &ResultExporter{
		csvWriter: NewCSVWriter(baseDir),
	}
}

// FormatFromPath maps a file extension onto an export format
func FormatFromPath(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case FormatCSV, FormatXLSX, FormatJSON:
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use .csv, .xlsx or .json)", filepath.Ext(path))
	}
}

// Export writes result to path in the format named by its extension
func (e *ResultExporter) Export(result *domain.AlignedResult, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatXLSX:
		return e.ExportXLSX(result, path)
	case FormatJSON:
		return e.ExportJSON(result, path)
	default:
		return e.ExportCSV(result, path)
	}
}

// Headers returns the long-format header row. The group column is present
// only for grouped feeds.
func Headers(result *domain.AlignedResult) []string {
	headers := make([]string, 0, len(result.Entities)+3)
	if result.GroupLabel != "" {
		headers = append(headers, result.GroupLabel)
	}
	headers = append(headers, "Field", domain.DateIndexName)
	return append(headers, result.Entities...)
}

// Rows returns the long-format body: groups, then fields, then dates
func Rows(result *domain.AlignedResult) [][]string {
	format := dateFormatter(result.Dates)
	var rows [][]string
	eachRow(result, func(group, field string, date int, cells []domain.Value) {
		row := make([]string, 0, len(cells)+3)
		if result.GroupLabel != "" {
			row = append(row, group)
		}
		row = append(row, field, format(result.Dates[date]))
		for _, c := range cells {
			row = append(row, formatValue(c))
		}
		rows = append(rows, row)
	})
	return rows
}

// eachRow visits every (group, field, date) row of result in output order
func eachRow(result *domain.AlignedResult, fn func(group, field string, date int, cells []domain.Value)) {
	for _, g := range result.Groups {
		for _, f := range g.Fields {
			for d, cells := range f.Values {
				fn(g.Key, f.Field, d, cells)
			}
		}
	}
}

// WriteCSV streams result as CSV to out, without a BOM
func (e *ResultExporter) WriteCSV(out io.Writer, result *domain.AlignedResult) error {
	return writeRows(out, Headers(result), Rows(result))
}

// ExportCSV writes result to a CSV file
func (e *ResultExporter) ExportCSV(result *domain.AlignedResult, path string) error {
	return e.csvWriter.WriteSimpleCSV(path, Headers(result), Rows(result))
}

// ExportJSON writes result as indented JSON
func (e *ResultExporter) ExportJSON(result *domain.AlignedResult, path string) error {
	fullPath := e.csvWriter.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return os.WriteFile(fullPath, data, 0644)
}

// ExportXLSX writes result to a single worksheet named after the feed.
// Numeric and boolean cells keep their type; null cells stay empty.
func (e *ResultExporter) ExportXLSX(result *domain.AlignedResult, path string) error {
	fullPath := e.csvWriter.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(result.Feed)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}

	headers := Headers(result)
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	format := dateFormatter(result.Dates)
	line := 2
	var writeErr error
	eachRow(result, func(group, field string, date int, cells []domain.Value) {
		if writeErr != nil {
			return
		}
		row := make([]interface{}, 0, len(cells)+3)
		if result.GroupLabel != "" {
			row = append(row, group)
		}
		row = append(row, field, format(result.Dates[date]))
		for _, c := range cells {
			row = append(row, cellValue(c))
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			writeErr = err
			return
		}
		if err := sw.SetRow(cell, row); err != nil {
			writeErr = fmt.Errorf("failed to write row %d: %w", line, err)
		}
		line++
	})
	if writeErr != nil {
		return writeErr
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	return f.SaveAs(fullPath)
}

// ExportEntityFiles writes one CSV per entity with a column per field
func (e *ResultExporter) ExportEntityFiles(result *domain.AlignedResult, outputDir string) error {
	fields := result.FieldNames()
	headers := make([]string, 0, len(fields)+2)
	if result.GroupLabel != "" {
		headers = append(headers, result.GroupLabel)
	}
	headers = append(headers, domain.DateIndexName)
	headers = append(headers, fields...)

	format := dateFormatter(result.Dates)
	for col, entity := range result.Entities {
		var records [][]string
		for _, g := range result.Groups {
			for d, date := range result.Dates {
				row := make([]string, 0, len(headers))
				if result.GroupLabel != "" {
					row = append(row, g.Key)
				}
				row = append(row, format(date))
				for _, f := range g.Fields {
					row = append(row, formatValue(f.Values[d][col]))
				}
				records = append(records, row)
			}
		}

		filename := fmt.Sprintf("%s_%s.csv", result.Feed, fileSafe(entity))
		if err := e.csvWriter.WriteSimpleCSV(filepath.Join(outputDir, filename), headers, records); err != nil {
			return fmt.Errorf("failed to write entity file for %s: %w", entity, err)
		}
	}
	return nil
}

// cellValue maps a value onto the excelize cell type
func cellValue(v domain.Value) interface{} {
	switch v.Kind {
	case domain.KindNumber:
		return v.Num
	case domain.KindBool:
		return v.Bool
	case domain.KindNull:
		return nil
	default:
		return formatValue(v)
	}
}

// sheetName trims name to Excel's 31 character limit and strips reserved characters
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "Data"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?* `, r) {
			return '_'
		}
		return r
	}, name)
}
