package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/leibatt/latency-visual-search/internal/errors"
)

// Table is a raw header+rows view of one input file, before any domain
// binding.
type Table struct {
	Headers []string
	Rows    [][]string
}

// FileReader handles reading XLSX and CSV files into a Table.
type FileReader struct{}

// NewFileReader creates a reader that dispatches on file extension.
func NewFileReader() *FileReader {
	return &FileReader{}
}

// ReadTable reads the file at path into a Table. Unsupported extensions
// and structurally empty files are fatal input errors.
func (r *FileReader) ReadTable(path string) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("input file not found: %s", path))
	}

	var (
		table *Table
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		table, err = r.readCSV(path)
	case ".xlsx":
		table, err = r.readXLSX(path)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported file type: %s", filepath.Ext(path)))
	}
	if err != nil {
		return nil, err
	}

	if len(table.Headers) == 0 || len(table.Rows) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("file %s must have a header row and at least one data row", path))
	}
	return table, nil
}

func (r *FileReader) readCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV file %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse CSV file %s", path)
	}
	if len(records) < 2 {
		return nil, errors.InvalidInput(fmt.Sprintf("CSV file %s must have a header row and at least one data row", path))
	}

	return &Table{Headers: trimAll(records[0]), Rows: records[1:]}, nil
}

func (r *FileReader) readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel file %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("Excel file %s has no sheets", path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheets[0])
	}
	if len(rows) < 2 {
		return nil, errors.InvalidInput(fmt.Sprintf("Excel file %s must have a header row and at least one data row", path))
	}

	// Excelize trims trailing empty cells per row; pad to header width.
	width := len(rows[0])
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		for len(row) < width {
			row = append(row, "")
		}
		data = append(data, row)
	}

	return &Table{Headers: trimAll(rows[0]), Rows: data}, nil
}

// Column returns the index of the named column, matched case-insensitively,
// or -1 when absent.
func (t *Table) Column(name string) int {
	for i, h := range t.Headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
