package tabular

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mpcal/domain/experiment"
	"mpcal/ports"
)

// RecordWriter writes result records as CSV and, optionally, an XLSX copy
// next to it with the same base name.
type RecordWriter struct {
	withXLSX bool
}

var _ ports.TableWriter = (*RecordWriter)(nil)

// NewRecordWriter creates a record writer
func NewRecordWriter(withXLSX bool) *RecordWriter {
	return &RecordWriter{withXLSX: withXLSX}
}

// RecordsTable renders records in the long-format column layout
func RecordsTable(records []experiment.Record) *Table {
	t := &Table{Headers: append([]string(nil), experiment.Columns...)}
	for _, r := range records {
		t.Rows = append(t.Rows, r.Row())
	}
	return t
}

// WriteRecords writes records to path (a .csv file)
func (w *RecordWriter) WriteRecords(ctx context.Context, path string, records []experiment.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := RecordsTable(records)
	if err := WriteCSV(path, t); err != nil {
		return err
	}
	if w.withXLSX {
		return WriteXLSX(XLSXPath(path), t)
	}
	return nil
}

// XLSXPath swaps the extension of a CSV path for .xlsx
func XLSXPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".xlsx"
}

// MergeCSVDir concatenates every *.csv file in dir (sorted by name) into one
// table whose header is the union of all headers in first-seen order. Files
// that cannot be read are returned as skipped rather than failing the merge.
func MergeCSVDir(dir string) (*Table, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := &Table{}
	column := make(map[string]int)
	var parts []*Table
	var skipped []string
	for _, name := range names {
		t, err := ReadTable(filepath.Join(dir, name))
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		for _, h := range t.Headers {
			if _, ok := column[h]; !ok {
				column[h] = len(merged.Headers)
				merged.Headers = append(merged.Headers, h)
			}
		}
		parts = append(parts, t)
	}

	for _, t := range parts {
		for _, row := range t.Rows {
			out := make([]string, len(merged.Headers))
			for i, cell := range row {
				if i < len(t.Headers) {
					out[column[t.Headers[i]]] = cell
				}
			}
			merged.Rows = append(merged.Rows, out)
		}
	}
	return merged, skipped, nil
}
