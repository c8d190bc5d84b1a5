// Package table defines the tabular value passed between the sandbox, the
// pipeline and the profiler.
//
// A Table is an ordered list of typed columns and an ordered list of rows,
// each row being a mapping from column name to value. Tables are produced
// fresh for every execution attempt and are never mutated by the pipeline.
//
// Usage:
//
//	t := table.New(table.Column{Name: "region", Type: table.TypeString})
//	t.Append(table.Row{"region": "emea"})
package table
