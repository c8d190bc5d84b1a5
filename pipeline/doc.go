// Package pipeline drives code generation, validation and execution
// attempts to a single terminal outcome.
//
// A Controller asks a CodeGenerator for a program, optionally checks it
// with a Validator, and runs it through an Executor. Failures are recorded
// in an append-only error history and retried until the budget is spent.
// Progress is reported as a stream of events that always ends with exactly
// one done event carrying the produced table, null when every attempt
// failed, or an empty table when the run was cancelled.
//
// Usage:
//
//	ctrl := pipeline.NewController(logger, generator, nil, executor)
//	done := ctrl.Run(ctx, pipeline.Request{
//	    Handles:    handles,
//	    MaxRetries: 3,
//	}, pipeline.SinkFunc(func(e pipeline.Event) {
//	    fmt.Println(e.Type)
//	}))
package pipeline
