// Package main is the entry point for the tablerun command.
//
// tablerun runs the table pipeline from the terminal. Each positional
// argument is a Starlark program defining generate_table(sources, files);
// attempt k runs the k-th program, and the last program is reused once the
// list is exhausted. Data sources come from the same configuration file
// the MCP server reads.
//
// Usage:
//
//	tablerun run --config config.yaml --file targets=targets.csv first.star fixed.star
//	tablerun run --format json report.star
//	tablerun sources --config config.yaml
package main
