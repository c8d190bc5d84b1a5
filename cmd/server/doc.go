// Package main is the entry point for the tablegen MCP server.
//
// The tablegen server exposes a table-building pipeline over the Model
// Context Protocol. Clients submit Starlark programs that read from the
// configured SQL data sources; the server validates and runs them in a
// disposable sandbox with retries, streams progress as notifications and
// returns the produced table together with a column profile. The server
// supports both stdio and HTTP transports and can expose Prometheus
// metrics.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
