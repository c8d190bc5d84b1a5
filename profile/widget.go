package profile

import "github.com/bagofwords1/bagofwords-sub001/table"

// DefaultMaxRows is used when ToWidgetPayload is given a non-positive limit.
const DefaultMaxRows = 1000

// ColumnDef is a grid column header.
type ColumnDef struct {
	HeaderName string `json:"headerName"`
	Field      string `json:"field"`
}

// WidgetPayload is the UI-ready rendition of a table.
type WidgetPayload struct {
	Columns []ColumnDef      `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Loading bool             `json:"loading"`
	Info    TableProfile     `json:"info"`
}

// ToWidgetPayload returns at most maxRows leading rows of t with cleaned
// values, plus the profile of the full table. Tables without rows get a
// zero-valued profile skeleton.
func ToWidgetPayload(t *table.Table, maxRows int) WidgetPayload {
	if t == nil {
		t = table.Empty()
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	payload := WidgetPayload{
		Columns: make([]ColumnDef, 0, len(t.Columns)),
		Rows:    []map[string]any{},
	}
	for _, col := range t.Columns {
		payload.Columns = append(payload.Columns, ColumnDef{HeaderName: col.Name, Field: col.Name})
	}

	if t.Len() == 0 {
		payload.Info = skeleton(t)
		return payload
	}

	n := min(t.Len(), maxRows)
	payload.Rows = make([]map[string]any, 0, n)
	for _, row := range t.Rows[:n] {
		payload.Rows = append(payload.Rows, cleanRow(t.Columns, row))
	}
	payload.Info = Profile(t)
	return payload
}

func cleanRow(columns []table.Column, row table.Row) map[string]any {
	out := make(map[string]any, len(columns))
	for _, col := range columns {
		out[col.Name] = Normalize(row[col.Name])
	}
	return out
}

// CleanTable returns a copy of t with every cell normalized, suitable for
// JSON encoding. A nil table stays nil.
func CleanTable(t *table.Table) *table.Table {
	if t == nil {
		return nil
	}
	out := table.New(t.Columns...)
	for _, row := range t.Rows {
		out.Append(cleanRow(t.Columns, row))
	}
	return out
}
