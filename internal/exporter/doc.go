// Package exporter writes aligned results to disk and to streams.
//
// CSVWriter is the low-level writer with headers, streaming and an optional
// UTF-8 BOM for Excel compatibility.
//
// ResultExporter lays an AlignedResult out in long format, one row per
// (group, field, date) with one column per entity, and writes it as CSV,
// XLSX or JSON. It can also split a result into one file per entity.
//
// Example usage:
//
//	exp := exporter.NewResultExporter("out")
//
//	// Format follows the extension: .csv, .xlsx or .json
//	err := exp.Export(result, "brain_bsi.xlsx")
//
//	// Per-entity history files
//	err = exp.ExportEntityFiles(result, "entities")
package exporter
