// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the table pipeline to MCP clients using
// the mark3labs/mcp-go library. An external agent supplies candidate
// Starlark programs; the server runs them through the pipeline against the
// configured data sources, forwards progress events as log notifications
// and returns the terminal payload together with a profiled widget payload.
//
// Tools:
//
//	run_table_pipeline   run candidate programs with retries and validation
//	execute_table_code   execute one program and profile the result
//	list_data_sources    list configured data sources
package mcpserver
