// Package loader reads the five input relations (variable catalog, flag
// matrix, main attributes, interim rules, final rules) from CSV or XLSX
// files and turns them into the validated in-memory structures the
// engine consumes. All parsing, column-name resolution and value
// normalization happens here, before the core runs.
package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a generic header-plus-rows grid, the common shape of every
// input sheet.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// ColumnIndex finds a header by name, case-insensitively and ignoring
// surrounding whitespace. Returns -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// RequireColumn is ColumnIndex that errors with the table name when the
// column is missing.
func (t *Table) RequireColumn(name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return 0, fmt.Errorf("%s: missing required column %q (have: %s)",
			t.Name, name, strings.Join(t.Headers, ", "))
	}
	return idx, nil
}

// Cell returns the trimmed value at (row, col), tolerating short rows.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// ReadTable dispatches on file extension: .csv via encoding/csv,
// .xlsx via excelize.
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, "")
	}
	return nil, fmt.Errorf("unsupported input format %q (want .csv or .xlsx)", filepath.Ext(path))
}

// ReadCSV loads a comma-separated file with a header row.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; Cell handles the rest
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file, expected a header row", path)
	}
	return &Table{
		Name:    filepath.Base(path),
		Headers: records[0],
		Rows:    records[1:],
	}, nil
}

// ReadXLSX loads one sheet of a workbook; an empty sheet name means the
// first sheet.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty, expected a header row", path, sheet)
	}
	return &Table{
		Name:    fmt.Sprintf("%s[%s]", filepath.Base(path), sheet),
		Headers: rows[0],
		Rows:    rows[1:],
	}, nil
}
