package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bagofwords1/bagofwords-sub001/metrics"
	"github.com/bagofwords1/bagofwords-sub001/sandbox"
	"github.com/bagofwords1/bagofwords-sub001/table"
)

// Message prefixes recorded in the error history.
const (
	generationErrorPrefix = "Code generation error: "
	validationErrorPrefix = "Code validation error: "
	executionErrorPrefix  = "Execution error: "
)

// Terminal statuses as recorded in metrics and logs.
const (
	StatusCancelled = "cancelled"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Request describes one pipeline run.
type Request struct {
	GenerationContext GenerationContext
	Handles           sandbox.Handles
	// MaxRetries bounds the number of attempts. Values below 1 mean 1.
	MaxRetries int
	// Token is polled between stages. Nil means never cancelled.
	Token CancellationToken
}

// Controller runs the generate, validate, execute loop.
type Controller struct {
	logger    *zap.Logger
	generator CodeGenerator
	validator Validator
	executor  Executor
}

// NewController creates a new Controller. validator may be nil, in which
// case the validation stage is skipped.
func NewController(logger *zap.Logger, generator CodeGenerator, validator Validator, executor Executor) *Controller {
	return &Controller{
		logger:    logger,
		generator: generator,
		validator: validator,
		executor:  executor,
	}
}

// attemptResult is the tagged outcome of a single attempt.
type attemptResult struct {
	outcome   Outcome
	cancelled bool
}

// run holds the state of a single Run call.
type run struct {
	*Controller
	logger *zap.Logger
	req    Request
	token  CancellationToken
	sink   Sink

	hist      history
	code      string
	execLog   strings.Builder
	result    *table.Table
	succeeded bool
}

// Run drives attempts until one succeeds, the budget is spent or the token
// is cancelled. Every event, ending with exactly one done event, is passed
// to sink, which may be nil. Failures of individual attempts never escape:
// they are recorded in the returned payload's error history.
func (c *Controller) Run(ctx context.Context, req Request, sink Sink) DonePayload {
	runID := uuid.NewString()
	r := &run{
		Controller: c,
		logger:     c.logger.With(zap.String("run_id", runID)),
		req:        req,
		token:      req.Token,
		sink:       sink,
	}
	if r.token == nil {
		r.token = Never
	}
	maxRetries := max(req.MaxRetries, 1)

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	r.logger.Info("pipeline run started",
		zap.Int("max_retries", maxRetries),
		zap.Bool("validator", c.validator != nil),
		zap.Int("sources", len(req.Handles.Sources)),
		zap.Int("files", len(req.Handles.Files)))

	cancelled := false
	attempt := 0
loop:
	for attempt < maxRetries {
		if r.token.IsCancelled() {
			cancelled = true
			break
		}

		res := r.attempt(ctx, attempt)
		if res.cancelled {
			cancelled = true
			break
		}
		metrics.AttemptsTotal.WithLabelValues(string(res.outcome)).Inc()

		switch res.outcome {
		case OutcomeSucceeded:
			r.succeeded = true
			break loop
		case OutcomeValidationRejected:
			attempt++
			if attempt < maxRetries {
				r.emit(progressEvent(StageValidatingRetry, attempt))
			}
		case OutcomeGenerationFailed, OutcomeValidationFailed, OutcomeExecutionFailed:
			attempt++
			if attempt < maxRetries {
				r.emit(progressEvent(StageRetry, attempt))
			}
		}
	}

	done := DonePayload{
		Code:         r.code,
		Errors:       r.hist.errorsCopy(),
		ExecutionLog: r.execLog.String(),
	}
	status := StatusSucceeded
	switch {
	case cancelled:
		done.Table = table.Empty()
		status = StatusCancelled
	case !r.succeeded && len(done.Errors) > 0:
		done.Table = nil
		status = StatusFailed
	default:
		done.Table = r.result
	}
	r.result = nil

	metrics.RunsTotal.WithLabelValues(status).Inc()
	r.logger.Info("pipeline run finished",
		zap.String("status", status),
		zap.Int("attempts", len(r.hist.attempts)),
		zap.Int("errors", len(done.Errors)))

	r.emit(Event{Type: EventDone, Payload: done})
	return done
}

// Stream runs the pipeline on a new goroutine and returns its events. The
// channel is closed after the done event. Sends block until the reader is
// ready; once ctx is done progress and stdout events are dropped, but the
// done event is always delivered, so callers must drain the channel.
func (c *Controller) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 1)
	go func() {
		defer close(events)
		c.Run(ctx, req, SinkFunc(func(e Event) {
			if e.Type == EventDone {
				events <- e
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}))
	}()
	return events
}

func (r *run) emit(e Event) {
	if r.sink != nil {
		r.sink.Emit(e)
	}
}

// fail records a failure message against the current code.
func (r *run) fail(code, message string, emitStdout bool) {
	r.hist.addError(code, message)
	if emitStdout {
		r.emit(stdoutEvent(message))
	}
}

// attempt runs one generate, validate, execute pass.
func (r *run) attempt(ctx context.Context, k int) attemptResult {
	log := r.logger.With(zap.Int("attempt", k))

	if r.token.IsCancelled() {
		return attemptResult{cancelled: true}
	}
	r.emit(progressEvent(StageGenerating, k))

	start := time.Now()
	code, err := r.generator.Generate(ctx, r.req.GenerationContext, r.hist.snapshot())
	metrics.StageDuration.WithLabelValues(string(StageGenerating)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("code generation failed", zap.Error(err))
		r.fail(r.code, generationErrorPrefix+err.Error(), true)
		return r.finish(k, r.code, OutcomeGenerationFailed)
	}
	r.code = code
	r.emit(progressEvent(StageGenerated, k))

	if r.validator != nil {
		if r.token.IsCancelled() {
			r.hist.addAttempt(Attempt{Index: k, Code: code, Outcome: OutcomeGenerated})
			return attemptResult{cancelled: true}
		}
		r.emit(progressEvent(StageValidating, k))

		start = time.Now()
		verdict, err := r.validator.Validate(ctx, code, r.req.GenerationContext)
		metrics.StageDuration.WithLabelValues(string(StageValidating)).Observe(time.Since(start).Seconds())
		if err != nil {
			log.Warn("code validation failed", zap.Error(err))
			r.fail(code, validationErrorPrefix+err.Error(), true)
			return r.finish(k, code, OutcomeValidationFailed)
		}
		if !verdict.Valid {
			log.Info("code rejected by validator", zap.String("reasoning", verdict.Reasoning))
			r.emit(validatedEvent(k, false, verdict.Reasoning))
			r.fail(code, verdict.Reasoning, false)
			return r.finish(k, code, OutcomeValidationRejected)
		}
		r.emit(validatedEvent(k, true, ""))
	}

	if r.token.IsCancelled() {
		r.hist.addAttempt(Attempt{Index: k, Code: code, Outcome: OutcomeGenerated})
		return attemptResult{cancelled: true}
	}
	r.emit(progressEvent(StageExecuting, k))

	start = time.Now()
	res, err := r.executor.Execute(ctx, code, r.req.Handles)
	metrics.StageDuration.WithLabelValues(string(StageExecuting)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("code execution failed", zap.Error(err))
		var execErr *sandbox.ExecutionError
		if errors.As(err, &execErr) {
			r.execLog.WriteString(execErr.Output)
		}
		r.fail(code, executionMessage(err), true)
		return r.finish(k, code, OutcomeExecutionFailed)
	}

	if res.Table == nil {
		res.Table = table.Empty()
	}
	r.result = res.Table
	r.execLog.WriteString(res.Log)
	if res.Log != "" {
		r.emit(stdoutEvent(res.Log))
	}
	log.Info("code execution succeeded",
		zap.Int("columns", len(res.Table.ColumnNames())),
		zap.Int("rows", res.Table.Len()))
	return r.finish(k, code, OutcomeSucceeded)
}

func (r *run) finish(k int, code string, outcome Outcome) attemptResult {
	r.hist.addAttempt(Attempt{Index: k, Code: code, Outcome: outcome})
	return attemptResult{outcome: outcome}
}

// executionMessage formats an executor failure with its trace, if any.
func executionMessage(err error) string {
	var execErr *sandbox.ExecutionError
	if errors.As(err, &execErr) {
		if execErr.Trace != "" {
			return executionErrorPrefix + execErr.Message + "\n" + execErr.Trace
		}
		return executionErrorPrefix + execErr.Message
	}
	return executionErrorPrefix + err.Error()
}
