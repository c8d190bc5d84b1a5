package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bagofwords1/bagofwords-sub001/table"
)

// SQLClient implements Client over a database/sql pool.
type SQLClient struct {
	name   string
	driver string
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLClient wraps an open pool. The client does not take ownership of db.
func NewSQLClient(logger *zap.Logger, name, driver string, db *sql.DB) *SQLClient {
	return &SQLClient{
		name:   name,
		driver: driver,
		db:     db,
		logger: logger,
	}
}

// Name returns the logical data-source name.
func (c *SQLClient) Name() string { return c.name }

// Driver returns the configured driver name.
func (c *SQLClient) Driver() string { return c.driver }

// Query runs a statement and collects the full result set into a table.
func (c *SQLClient) Query(ctx context.Context, query string, args ...any) (*table.Table, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Source: c.name, Query: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, &QueryError{Source: c.name, Query: query, Err: fmt.Errorf("failed to read column types: %w", err)}
	}

	names := make([]string, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
	}
	names = dedupeNames(names)

	var records []table.Row
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Source: c.name, Query: query, Err: fmt.Errorf("failed to scan row: %w", err)}
		}

		record := make(table.Row, len(names))
		for i, name := range names {
			record[name] = scannedValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Source: c.name, Query: query, Err: fmt.Errorf("error iterating rows: %w", err)}
	}

	t := table.New()
	t.Append(records...)
	for i, name := range names {
		t.Columns = append(t.Columns, table.Column{
			Name: name,
			Type: columnType(colTypes[i].DatabaseTypeName(), t.Values(name)),
		})
	}

	c.logger.Debug("query completed",
		zap.String("source", c.name),
		zap.Int("columns", len(names)),
		zap.Int("rows", len(records)))

	return t, nil
}

// dedupeNames suffixes repeated column names (id, id_1, id_2) so every
// column keeps its own key in a row.
func dedupeNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if !seen[n] {
			seen[n] = true
			out[i] = n
			continue
		}
		for k := 1; ; k++ {
			candidate := fmt.Sprintf("%s_%d", n, k)
			if !taken[candidate] {
				taken[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// scannedValue converts driver byte slices to strings.
func scannedValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// columnType prefers the dtype of the observed values and falls back to the
// declared database type when the column holds no values.
func columnType(declared string, values []any) string {
	for _, v := range values {
		if v != nil {
			return table.InferType(values)
		}
	}
	return declaredType(declared)
}

func declaredType(declared string) string {
	d := strings.ToUpper(declared)
	switch {
	case d == "":
		return table.TypeObject
	case strings.Contains(d, "INT"), d == "SERIAL":
		return table.TypeInt
	case strings.Contains(d, "BOOL"):
		return table.TypeBool
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUMERIC"), strings.Contains(d, "DECIMAL"):
		return table.TypeFloat
	case strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return table.TypeDatetime
	case strings.Contains(d, "CHAR"), strings.Contains(d, "TEXT"), strings.Contains(d, "CLOB"):
		return table.TypeString
	default:
		return table.TypeObject
	}
}
