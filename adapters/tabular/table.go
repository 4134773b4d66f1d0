package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet every XLSX file is written to and read from
const SheetName = "Sheet1"

// Table is a header row plus string cells
type Table struct {
	Headers []string
	Rows    [][]string
}

// Column returns the index of a header, or -1
func (t *Table) Column(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// ReadTable reads a CSV or XLSX file chosen by extension. The first row is
// the header; cells are trimmed.
func ReadTable(path string) (*Table, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open Excel file: %w", err)
		}
		defer f.Close()
		rows, err = f.GetRows(SheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", SheetName, err)
		}
	default:
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer file.Close()
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		rows, err = reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}

	t := &Table{Headers: trimAll(rows[0])}
	for _, row := range rows[1:] {
		t.Rows = append(t.Rows, trimAll(row))
	}
	return t, nil
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}

// WriteCSV writes t to path, creating parent directories
func WriteCSV(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(t.Headers); err != nil {
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// WriteXLSX writes t to the first sheet of a new workbook
func WriteXLSX(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if idx, err := f.GetSheetIndex(SheetName); err != nil || idx == -1 {
		idx, err := f.NewSheet(SheetName)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	for i, h := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteLines writes a header line followed by one line per entry
func WriteLines(path, header string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteByte('\n')
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
