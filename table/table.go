package table

import (
	"sort"
	"time"
)

// Dtype labels for columns.
const (
	TypeInt      = "int64"
	TypeFloat    = "float64"
	TypeBool     = "bool"
	TypeDatetime = "datetime"
	TypeString   = "string"
	TypeObject   = "object"
)

// Column describes a named, typed column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Row maps column names to values. Missing keys are treated as null.
type Row map[string]any

// Table is an ordered set of columns and rows.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New creates a table with the given columns and no rows.
func New(columns ...Column) *Table {
	return &Table{
		Columns: append([]Column{}, columns...),
		Rows:    []Row{},
	}
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return New()
}

// Append adds rows to the table.
func (t *Table) Append(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnNames returns column names in declaration order.
func (t *Table) ColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Values returns every value of the named column in row order.
func (t *Table) Values(column string) []any {
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[column]
	}
	return values
}

// TypeOf returns the dtype label for a single value, or "" for nil.
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case bool:
		return TypeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case time.Time, *time.Time:
		return TypeDatetime
	case string:
		return TypeString
	default:
		return TypeObject
	}
}

// MergeTypes combines two dtype labels observed in the same column.
// Integers widen to floats; any other mismatch becomes object.
func MergeTypes(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "", a == b:
		return a
	case (a == TypeInt && b == TypeFloat) || (a == TypeFloat && b == TypeInt):
		return TypeFloat
	default:
		return TypeObject
	}
}

// InferType returns the dtype label of a column from its values. Columns
// with only null values are labeled object.
func InferType(values []any) string {
	dtype := ""
	for _, v := range values {
		dtype = MergeTypes(dtype, TypeOf(v))
		if dtype == TypeObject {
			break
		}
	}
	if dtype == "" {
		return TypeObject
	}
	return dtype
}

// FromRecords builds a table from row mappings and infers each column's
// dtype. Columns listed in order come first; keys found only in the records
// follow in sorted order.
func FromRecords(order []string, records []Row) *Table {
	names := append([]string{}, order...)
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		seen[name] = true
	}
	var extra []string
	for _, r := range records {
		for name := range r {
			if !seen[name] {
				seen[name] = true
				extra = append(extra, name)
			}
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	t := &Table{Columns: []Column{}, Rows: append([]Row{}, records...)}
	for _, name := range names {
		t.Columns = append(t.Columns, Column{Name: name, Type: InferType(t.Values(name))})
	}
	return t
}
