package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/bagofwords1/bagofwords-sub001/table"
)

// Supported driver names as they appear in configuration.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// ErrUnknownDriver is returned when a configuration names an unsupported driver.
var ErrUnknownDriver = errors.New("unknown data source driver")

// Client is a live data-source handle. Implementations must be safe for
// sequential use by successive sandbox executions.
type Client interface {
	Name() string
	Driver() string
	Query(ctx context.Context, query string, args ...any) (*table.Table, error)
}

// Config describes one data source.
type Config struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// QueryError wraps a failed query with the source it ran against.
type QueryError struct {
	Source string
	Query  string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query on %s failed: %v", e.Source, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// sqlDriverName maps a configured driver to its database/sql registration.
func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite", nil
	case DriverPostgres:
		return "pgx", nil
	case DriverMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
