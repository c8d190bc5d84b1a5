package sandbox

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/table"
)

// fakeClient implements datasource.Client for testing
type fakeClient struct {
	name    string
	result  *table.Table
	err     error
	queries []string
	args    [][]any
}

func (f *fakeClient) Name() string   { return f.name }
func (f *fakeClient) Driver() string { return "fake" }

func (f *fakeClient) Query(_ context.Context, query string, args ...any) (*table.Table, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestExecutor(t *testing.T, opts ...ExecutorOption) *Executor {
	t.Helper()
	return NewExecutor(zaptest.NewLogger(t), Config{Timeout: 5 * time.Second}, opts...)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("ListOfDicts", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    return [{"a": 1, "b": "x"}, {"a": 2, "b": "y"}]
`
		res, err := e.Execute(ctx, code, Handles{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, res.Table.ColumnNames())
		assert.Equal(t, table.TypeInt, res.Table.Columns[0].Type)
		assert.Equal(t, table.TypeString, res.Table.Columns[1].Type)
		assert.Equal(t, 2, res.Table.Len())
		assert.Equal(t, int64(2), res.Table.Rows[1]["a"])
	})

	t.Run("DictOfLists", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    return {"x": [1.5, 2.5], "y": [True, None]}
`
		res, err := e.Execute(ctx, code, Handles{})
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, res.Table.ColumnNames())
		assert.Equal(t, table.TypeFloat, res.Table.Columns[0].Type)
		assert.Equal(t, table.TypeBool, res.Table.Columns[1].Type)
		assert.Nil(t, res.Table.Rows[1]["y"])
	})

	t.Run("UnevenDictOfLists", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    return {"x": [1, 2], "y": [1]}
`
		_, err := e.Execute(ctx, code, Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, `column "y" has 1 values, expected 2`)
	})

	t.Run("TableConstructor", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    return table(columns=["n", "sq"], rows=[[i, i * i] for i in range(3)])
`
		res, err := e.Execute(ctx, code, Handles{})
		require.NoError(t, err)
		assert.Equal(t, []string{"n", "sq"}, res.Table.ColumnNames())
		assert.Equal(t, int64(4), res.Table.Rows[2]["sq"])
	})

	t.Run("EmptyTableIsAccepted", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    return table(columns=["a"])
`
		res, err := e.Execute(ctx, code, Handles{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, res.Table.ColumnNames())
		assert.Equal(t, 0, res.Table.Len())
	})

	t.Run("UnsupportedReturn", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    return 42
`
		_, err := e.Execute(ctx, code, Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, "must return a table, a list of dicts or a dict of lists, got int")
	})

	t.Run("NoEntryPoint", func(t *testing.T) {
		e := newTestExecutor(t)
		_, err := e.Execute(ctx, "x = 1\n", Handles{})
		var noEntry *NoEntryPointError
		require.ErrorAs(t, err, &noEntry)
		assert.Equal(t, EntryPoint, noEntry.Name)
	})

	t.Run("EntryPointNotCallable", func(t *testing.T) {
		e := newTestExecutor(t)
		_, err := e.Execute(ctx, "generate_table = 3\n", Handles{})
		var noEntry *NoEntryPointError
		require.ErrorAs(t, err, &noEntry)
	})

	t.Run("RuntimeErrorCarriesTrace", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def helper():
    return 1 // 0

def generate_table(sources, files):
    print("before failure")
    return helper()
`
		_, err := e.Execute(ctx, code, Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, "division by zero")
		assert.Contains(t, execErr.Trace, "helper")
		assert.Equal(t, "before failure\n", execErr.Output)
	})

	t.Run("SyntaxError", func(t *testing.T) {
		e := newTestExecutor(t)
		_, err := e.Execute(ctx, "def generate_table(sources, files)\n    return []\n", Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.NotEmpty(t, execErr.Message)
	})

	t.Run("LoadIsRejected", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `load("os.star", "system")

def generate_table(sources, files):
    return []
`
		_, err := e.Execute(ctx, code, Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
	})

	t.Run("PrintIsCaptured", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    print("hello")
    print("rows:", 1)
    return []
`
		res, err := e.Execute(ctx, code, Handles{})
		require.NoError(t, err)
		assert.Equal(t, "hello\nrows: 1\n", res.Log)
		assert.Equal(t, 0, res.Table.Len())
	})

	t.Run("OutputIsTruncated", func(t *testing.T) {
		e := newTestExecutor(t, WithMaxOutputBytes(16))
		code := `
def generate_table(sources, files):
    for i in range(100):
        print("line", i)
    return []
`
		res, err := e.Execute(ctx, code, Handles{})
		require.NoError(t, err)
		assert.Contains(t, res.Log, truncationMarker)
		assert.Equal(t, 1, strings.Count(res.Log, truncationMarker))
	})

	t.Run("Timeout", func(t *testing.T) {
		e := newTestExecutor(t, WithTimeout(50*time.Millisecond))
		code := `
def generate_table(sources, files):
    while True:
        pass
`
		_, err := e.Execute(ctx, code, Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, "execution timed out")
	})

	t.Run("MaxSteps", func(t *testing.T) {
		e := newTestExecutor(t, WithMaxSteps(1000))
		code := `
def generate_table(sources, files):
    n = 0
    while True:
        n += 1
`
		_, err := e.Execute(ctx, code, Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, "too many steps")
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		e := NewExecutor(zaptest.NewLogger(t), Config{})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		code := `
def generate_table(sources, files):
    while True:
        pass
`
		_, err := e.Execute(cctx, code, Handles{})
		require.Error(t, err)
	})

	t.Run("UtilityModules", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    data = json.decode('{"v": 2}')
    return [{"root": math.sqrt(16), "v": data["v"]}]
`
		res, err := e.Execute(ctx, code, Handles{})
		require.NoError(t, err)
		assert.InDelta(t, 4.0, res.Table.Rows[0]["root"], 1e-9)
		assert.Equal(t, int64(2), res.Table.Rows[0]["v"])
	})

	t.Run("FreshInterpreterPerCall", func(t *testing.T) {
		e := newTestExecutor(t)
		first := `
counter = 1

def generate_table(sources, files):
    return [{"c": counter}]
`
		_, err := e.Execute(ctx, first, Handles{})
		require.NoError(t, err)

		second := `
def generate_table(sources, files):
    return [{"c": counter}]
`
		_, err = e.Execute(ctx, second, Handles{})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, "counter")
	})
}

func TestExecuteWithHandles(t *testing.T) {
	ctx := context.Background()

	t.Run("FakeSourceQuery", func(t *testing.T) {
		client := &fakeClient{
			name: "warehouse",
			result: &table.Table{
				Columns: []table.Column{{Name: "id", Type: table.TypeInt}},
				Rows:    []table.Row{{"id": int64(7)}, {"id": int64(8)}},
			},
		}
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    src = sources["warehouse"]
    t = src.query("SELECT id FROM items WHERE id > ?", 5)
    return [{"id": r["id"], "source": src.name} for r in t]
`
		res, err := e.Execute(ctx, code, Handles{Sources: map[string]datasource.Client{"warehouse": client}})
		require.NoError(t, err)
		assert.Equal(t, []string{"SELECT id FROM items WHERE id > ?"}, client.queries)
		assert.Equal(t, []any{int64(5)}, client.args[0])
		assert.Equal(t, 2, res.Table.Len())
		assert.Equal(t, "warehouse", res.Table.Rows[0]["source"])
	})

	t.Run("QueryErrorSurfaces", func(t *testing.T) {
		client := &fakeClient{name: "warehouse", err: assert.AnError}
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    return sources["warehouse"].query("SELECT 1")
`
		_, err := e.Execute(ctx, code, Handles{Sources: map[string]datasource.Client{"warehouse": client}})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, assert.AnError.Error())
	})

	t.Run("SourcesAreReadOnly", func(t *testing.T) {
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    sources["other"] = 1
    return []
`
		_, err := e.Execute(ctx, code, Handles{Sources: map[string]datasource.Client{}})
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Message, "frozen")
	})

	t.Run("SQLiteSource", func(t *testing.T) {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		db.SetMaxOpenConns(1)
		defer db.Close()

		_, err = db.ExecContext(ctx, `CREATE TABLE sales (region TEXT, amount REAL)`)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `INSERT INTO sales VALUES ('north', 10.5), ('south', 4.0), ('north', 1.5)`)
		require.NoError(t, err)

		client := datasource.NewSQLClient(zaptest.NewLogger(t), "shop", datasource.DriverSQLite, db)
		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    rows = sources["shop"].query("SELECT region, amount FROM sales ORDER BY region").rows
    totals = {}
    for r in rows:
        totals[r["region"]] = totals.get(r["region"], 0.0) + r["amount"]
    return {"region": list(totals.keys()), "total": list(totals.values())}
`
		res, err := e.Execute(ctx, code, Handles{Sources: map[string]datasource.Client{"shop": client}})
		require.NoError(t, err)
		assert.Equal(t, []string{"region", "total"}, res.Table.ColumnNames())
		require.Equal(t, 2, res.Table.Len())
		assert.Equal(t, "north", res.Table.Rows[0]["region"])
		assert.InDelta(t, 12.0, res.Table.Rows[0]["total"], 1e-9)
	})

	t.Run("FileHandles", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "targets.csv")
		require.NoError(t, os.WriteFile(path, []byte("region,target\nnorth,20\nsouth,5\n"), 0600))

		e := newTestExecutor(t)
		code := `
def generate_table(sources, files):
    f = files[0]
    print(f.name, len(f.read()))
    return f.read_csv()
`
		res, err := e.Execute(ctx, code, Handles{Files: []datasource.File{{Name: "targets.csv", Path: path}}})
		require.NoError(t, err)
		assert.Equal(t, []string{"region", "target"}, res.Table.ColumnNames())
		assert.Equal(t, int64(20), res.Table.Rows[0]["target"])
		assert.Equal(t, "targets.csv 31\n", res.Log)
	})
}
