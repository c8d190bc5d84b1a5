package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/table"
)

// EntryPoint is the function every generated program must define. It is
// called as generate_table(sources, files).
const EntryPoint = "generate_table"

// Filename is the name generated programs are compiled under.
const Filename = "generated.star"

// threadContextKey holds the call context in thread-local storage so that
// data-source builtins can honour cancellation.
const threadContextKey = "context"

// fileOptions are the dialect options shared by the executor and the checker.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Handles are the live objects injected into a program.
type Handles struct {
	Sources map[string]datasource.Client
	Files   []datasource.File
}

// Config holds limits applied to every execution.
type Config struct {
	Timeout        time.Duration
	MaxSteps       uint64
	MaxOutputBytes int
}

// Result is the outcome of a successful execution.
type Result struct {
	Table *table.Table
	Log   string
}

// NoEntryPointError reports a program that does not define EntryPoint.
type NoEntryPointError struct {
	Name string
}

func (e *NoEntryPointError) Error() string {
	return fmt.Sprintf("entry point %s not defined: the code must define a function named %s(sources, files)", e.Name, e.Name)
}

// ExecutionError is a failure raised while running a program. Trace holds
// the Starlark backtrace when one is available and Output whatever the
// program printed before failing.
type ExecutionError struct {
	Message string
	Trace   string
	Output  string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// Executor runs generated programs.
type Executor struct {
	logger *zap.Logger
	config Config
}

// ExecutorOption defines a functional option for Executor
type ExecutorOption func(*Executor)

// WithTimeout sets the per-execution timeout
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.config.Timeout = d
	}
}

// WithMaxSteps bounds the number of interpreter steps per execution
func WithMaxSteps(n uint64) ExecutorOption {
	return func(e *Executor) {
		e.config.MaxSteps = n
	}
}

// WithMaxOutputBytes caps the captured print output
func WithMaxOutputBytes(n int) ExecutorOption {
	return func(e *Executor) {
		e.config.MaxOutputBytes = n
	}
}

// NewExecutor creates a new Executor
func NewExecutor(logger *zap.Logger, config Config, opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger: logger,
		config: config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute compiles code in a fresh interpreter, calls its entry point with
// the handles and converts the returned value into a table.
func (e *Executor) Execute(ctx context.Context, code string, handles Handles) (Result, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	out := newOutputBuffer(e.config.MaxOutputBytes)
	thread := &starlark.Thread{
		Name: EntryPoint,
		Print: func(_ *starlark.Thread, msg string) {
			out.WriteLine(msg)
		},
	}
	thread.SetLocal(threadContextKey, ctx)
	if e.config.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(e.config.MaxSteps)
	}

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	defer stop()

	sources := sourcesDict(handles.Sources)
	files := filesList(handles.Files)
	predeclared := starlark.StringDict{
		"sources": sources,
		"files":   files,
		"table":   starlark.NewBuiltin("table", tableBuiltin),
		"math":    math.Module,
		"time":    starlarktime.Module,
		"json":    json.Module,
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, Filename, code, predeclared)
	if err != nil {
		return Result{}, e.wrapError(ctx, err, out)
	}

	fn, ok := globals[EntryPoint]
	if !ok {
		return Result{}, &NoEntryPointError{Name: EntryPoint}
	}
	if _, callable := fn.(starlark.Callable); !callable {
		return Result{}, &NoEntryPointError{Name: EntryPoint}
	}

	value, err := starlark.Call(thread, fn, starlark.Tuple{sources, files}, nil)
	if err != nil {
		return Result{}, e.wrapError(ctx, err, out)
	}

	t, err := toTable(value)
	if err != nil {
		return Result{}, &ExecutionError{Message: err.Error(), Output: out.String()}
	}

	e.logger.Debug("sandbox execution completed",
		zap.Int("columns", len(t.Columns)),
		zap.Int("rows", t.Len()),
		zap.Int("output_len", out.Len()))

	return Result{Table: t, Log: out.String()}, nil
}

// wrapError converts interpreter failures into ExecutionError.
func (e *Executor) wrapError(ctx context.Context, err error, out *outputBuffer) error {
	execErr := &ExecutionError{Message: err.Error(), Output: out.String()}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		execErr.Message = evalErr.Msg
		execErr.Trace = evalErr.Backtrace()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		execErr.Message = fmt.Sprintf("execution timed out after %v", e.config.Timeout)
	}

	return execErr
}
