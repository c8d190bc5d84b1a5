package datasource

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bagofwords1/bagofwords-sub001/table"
)

// File is a read-only auxiliary file handle.
type File struct {
	Name string
	Path string
}

// Read returns the file contents.
func (f File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", f.Name, err)
	}
	return data, nil
}

// ReadCSV parses the file as CSV with a header row. Cell values are inferred
// best-effort: empty cells become null, then integers, floats and booleans are
// recognised, everything else stays a string.
func (f File) ReadCSV() (*table.Table, error) {
	data, err := f.Read()
	if err != nil {
		return nil, err
	}
	return ParseCSV(data)
}

// ParseCSV parses CSV data with a header row into a table.
func ParseCSV(data []byte) (*table.Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return table.Empty(), nil
	}

	header := records[0]
	rows := make([]table.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(table.Row, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = parseCell(rec[i])
			} else {
				row[name] = nil
			}
		}
		rows = append(rows, row)
	}

	return table.FromRecords(header, rows), nil
}

func parseCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
