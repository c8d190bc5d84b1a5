// Package sandbox provides secure code execution capabilities.
//
// The sandbox package runs generated Starlark programs in a fresh,
// disposable interpreter per call. The only values reachable from inside
// a program are the injected data-source and file handles, the table()
// constructor and the math, time and json modules. Programs define a
// generate_table(sources, files) function whose return value is converted
// into a table.Table.
//
// StaticValidator inspects a program without running it and rejects code
// that could never satisfy the executor.
//
// Usage:
//
//	executor := sandbox.NewExecutor(logger, sandbox.Config{Timeout: 30 * time.Second})
//	result, err := executor.Execute(ctx, code, sandbox.Handles{
//	    Sources: registry.Clients(),
//	})
package sandbox
