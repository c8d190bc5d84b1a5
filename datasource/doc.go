// Package datasource provides the live handles generated code runs against.
//
// A Client is a named connection to a data source that answers SQL queries
// with a table.Table. SQLClient implements it on top of database/sql with
// the sqlite (modernc), postgres (pgx) and mysql drivers registered. A
// Registry opens every configured source at startup and owns the pools.
//
// File handles give generated code read access to auxiliary files such as
// uploaded CSV exports.
//
// Usage:
//
//	reg, err := datasource.Open(ctx, logger, []datasource.Config{
//	    {Name: "sales", Driver: "sqlite", DSN: "file:sales.db"},
//	})
//	defer reg.Close()
//	t, err := reg.Get("sales").Query(ctx, "SELECT region, SUM(amount) FROM orders GROUP BY 1")
package datasource
