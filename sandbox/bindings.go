package sandbox

import (
	"context"
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/table"
)

// tableValue exposes a table.Table to Starlark. Iterating yields rows as
// dicts; attributes give columns, dtypes and rows.
type tableValue struct {
	t *table.Table
}

var (
	_ starlark.HasAttrs = (*tableValue)(nil)
	_ starlark.Sequence = (*tableValue)(nil)
)

func (v *tableValue) String() string {
	return fmt.Sprintf("<table %d columns, %d rows>", len(v.t.Columns), v.t.Len())
}
func (v *tableValue) Type() string          { return "table" }
func (v *tableValue) Freeze()               {}
func (v *tableValue) Truth() starlark.Bool  { return v.t.Len() > 0 }
func (v *tableValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: table") }
func (v *tableValue) Len() int              { return v.t.Len() }

func (v *tableValue) Iterate() starlark.Iterator {
	return &rowIterator{t: v.t}
}

func (v *tableValue) AttrNames() []string {
	return []string{"columns", "dtypes", "rows"}
}

func (v *tableValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		names := make([]starlark.Value, len(v.t.Columns))
		for i, c := range v.t.Columns {
			names[i] = starlark.String(c.Name)
		}
		return starlark.NewList(names), nil
	case "dtypes":
		dict := starlark.NewDict(len(v.t.Columns))
		for _, c := range v.t.Columns {
			if err := dict.SetKey(starlark.String(c.Name), starlark.String(c.Type)); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case "rows":
		rows := make([]starlark.Value, 0, v.t.Len())
		for i := range v.t.Rows {
			row, err := rowDict(v.t, i)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return starlark.NewList(rows), nil
	default:
		return nil, nil
	}
}

type rowIterator struct {
	t *table.Table
	i int
}

func (it *rowIterator) Next(p *starlark.Value) bool {
	if it.i >= it.t.Len() {
		return false
	}
	row, err := rowDict(it.t, it.i)
	if err != nil {
		return false
	}
	*p = row
	it.i++
	return true
}

func (it *rowIterator) Done() {}

// rowDict converts row i into a dict keyed in column order.
func rowDict(t *table.Table, i int) (*starlark.Dict, error) {
	row := t.Rows[i]
	dict := starlark.NewDict(len(t.Columns))
	for _, c := range t.Columns {
		sv, err := ToStarlark(row[c.Name])
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", i, c.Name, err)
		}
		if err := dict.SetKey(starlark.String(c.Name), sv); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

// tableBuiltin implements table(columns=None, rows=None). Rows are dicts, or
// lists aligned with columns.
func tableBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var columns, rows starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns?", &columns, "rows?", &rows); err != nil {
		return nil, err
	}

	var order []string
	if columns != starlark.None {
		names, err := ToGo(columns)
		if err != nil {
			return nil, fmt.Errorf("%s: columns: %w", b.Name(), err)
		}
		list, ok := names.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: columns must be a list of strings", b.Name())
		}
		for _, n := range list {
			s, ok := n.(string)
			if !ok {
				return nil, fmt.Errorf("%s: columns must be a list of strings", b.Name())
			}
			order = append(order, s)
		}
	}

	if rows == starlark.None {
		t := table.New()
		for _, name := range order {
			t.Columns = append(t.Columns, table.Column{Name: name, Type: table.TypeObject})
		}
		return &tableValue{t: t}, nil
	}

	t, err := recordsToTable(order, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return &tableValue{t: t}, nil
}

// recordsToTable converts a sequence of dicts (or of lists aligned with
// order) into a table.
func recordsToTable(order []string, seq starlark.Value) (*table.Table, error) {
	iterable, ok := seq.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("rows must be a list, got %s", seq.Type())
	}

	records := []table.Row{}
	iter := iterable.Iterate()
	defer iter.Done()

	var item starlark.Value
	for i := 0; iter.Next(&item); i++ {
		switch rec := item.(type) {
		case *starlark.Dict:
			row := make(table.Row, rec.Len())
			for _, kv := range rec.Items() {
				key, ok := kv[0].(starlark.String)
				if !ok {
					return nil, fmt.Errorf("row %d: keys must be strings, got %s", i, kv[0].Type())
				}
				if !contains(order, string(key)) {
					order = append(order, string(key))
				}
				gv, err := ToGo(kv[1])
				if err != nil {
					return nil, fmt.Errorf("row %d column %q: %w", i, string(key), err)
				}
				row[string(key)] = gv
			}
			records = append(records, row)
		case *starlark.List, starlark.Tuple:
			values, err := ToGo(rec)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			list, _ := values.([]any)
			if len(list) != len(order) {
				return nil, fmt.Errorf("row %d has %d values for %d columns", i, len(list), len(order))
			}
			row := make(table.Row, len(order))
			for j, name := range order {
				row[name] = list[j]
			}
			records = append(records, row)
		default:
			return nil, fmt.Errorf("row %d must be a dict or list, got %s", i, item.Type())
		}
	}

	return table.FromRecords(order, records), nil
}

// columnsToTable converts a dict of column name to equal-length lists.
func columnsToTable(d *starlark.Dict) (*table.Table, error) {
	var order []string
	columns := make(map[string][]any, d.Len())
	length := -1
	for _, kv := range d.Items() {
		key, ok := kv[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("column names must be strings, got %s", kv[0].Type())
		}
		gv, err := ToGo(kv[1])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", string(key), err)
		}
		values, ok := gv.([]any)
		if !ok {
			return nil, fmt.Errorf("column %q must be a list, got %s", string(key), kv[1].Type())
		}
		if length >= 0 && len(values) != length {
			return nil, fmt.Errorf("column %q has %d values, expected %d", string(key), len(values), length)
		}
		length = len(values)
		order = append(order, string(key))
		columns[string(key)] = values
	}

	records := make([]table.Row, 0, max(length, 0))
	for i := 0; i < length; i++ {
		row := make(table.Row, len(order))
		for _, name := range order {
			row[name] = columns[name][i]
		}
		records = append(records, row)
	}
	return table.FromRecords(order, records), nil
}

// toTable converts the entry point's return value into a table.
func toTable(v starlark.Value) (*table.Table, error) {
	switch val := v.(type) {
	case *tableValue:
		return val.t, nil
	case *starlark.List, starlark.Tuple:
		return recordsToTable(nil, val)
	case *starlark.Dict:
		return columnsToTable(val)
	default:
		return nil, fmt.Errorf("%s must return a table, a list of dicts or a dict of lists, got %s", EntryPoint, v.Type())
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// sourceValue exposes a datasource.Client with a query method.
type sourceValue struct {
	client datasource.Client
}

var _ starlark.HasAttrs = (*sourceValue)(nil)

func (v *sourceValue) String() string        { return fmt.Sprintf("<source %s>", v.client.Name()) }
func (v *sourceValue) Type() string          { return "source" }
func (v *sourceValue) Freeze()               {}
func (v *sourceValue) Truth() starlark.Bool  { return starlark.True }
func (v *sourceValue) Hash() (uint32, error) { return starlark.String(v.client.Name()).Hash() }

func (v *sourceValue) AttrNames() []string {
	return []string{"driver", "name", "query"}
}

func (v *sourceValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(v.client.Name()), nil
	case "driver":
		return starlark.String(v.client.Driver()), nil
	case "query":
		return starlark.NewBuiltin("query", v.query), nil
	default:
		return nil, nil
	}
}

// query implements source.query(sql, *params).
func (v *sourceValue) query(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("%s: missing sql argument", b.Name())
	}
	stmt, ok := args[0].(starlark.String)
	if !ok {
		return nil, fmt.Errorf("%s: sql must be a string, got %s", b.Name(), args[0].Type())
	}

	params := make([]any, 0, len(args)-1)
	for i, arg := range args[1:] {
		gv, err := ToGo(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: param %d: %w", b.Name(), i, err)
		}
		params = append(params, gv)
	}

	t, err := v.client.Query(threadContext(thread), string(stmt), params...)
	if err != nil {
		return nil, err
	}
	return &tableValue{t: t}, nil
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(threadContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// sourcesDict builds the frozen sources mapping in name order.
func sourcesDict(clients map[string]datasource.Client) *starlark.Dict {
	names := make([]string, 0, len(clients))
	for name := range clients {
		names = append(names, name)
	}
	sort.Strings(names)

	dict := starlark.NewDict(len(names))
	for _, name := range names {
		_ = dict.SetKey(starlark.String(name), &sourceValue{client: clients[name]})
	}
	dict.Freeze()
	return dict
}

// fileValue exposes a datasource.File with read and read_csv methods.
type fileValue struct {
	file datasource.File
}

var _ starlark.HasAttrs = (*fileValue)(nil)

func (v *fileValue) String() string        { return fmt.Sprintf("<file %s>", v.file.Name) }
func (v *fileValue) Type() string          { return "file" }
func (v *fileValue) Freeze()               {}
func (v *fileValue) Truth() starlark.Bool  { return starlark.True }
func (v *fileValue) Hash() (uint32, error) { return starlark.String(v.file.Name).Hash() }

func (v *fileValue) AttrNames() []string {
	return []string{"name", "read", "read_csv"}
}

func (v *fileValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(v.file.Name), nil
	case "read":
		return starlark.NewBuiltin("read", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			data, err := v.file.Read()
			if err != nil {
				return nil, err
			}
			return starlark.String(string(data)), nil
		}), nil
	case "read_csv":
		return starlark.NewBuiltin("read_csv", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			t, err := v.file.ReadCSV()
			if err != nil {
				return nil, err
			}
			return &tableValue{t: t}, nil
		}), nil
	default:
		return nil, nil
	}
}

func filesList(files []datasource.File) *starlark.List {
	values := make([]starlark.Value, len(files))
	for i, f := range files {
		values[i] = &fileValue{file: f}
	}
	list := starlark.NewList(values)
	list.Freeze()
	return list
}
