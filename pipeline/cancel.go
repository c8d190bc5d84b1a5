package pipeline

import (
	"context"
	"sync/atomic"
)

// CancellationToken is polled between stages. Implementations must be safe
// to query from the pipeline while another goroutine requests cancellation.
type CancellationToken interface {
	IsCancelled() bool
}

// Never is a token that is never cancelled.
var Never CancellationToken = never{}

type never struct{}

func (never) IsCancelled() bool { return false }

// Flag is a token cancelled by calling Cancel. The zero value is ready to use.
type Flag struct {
	cancelled atomic.Bool
}

// Cancel requests cancellation.
func (f *Flag) Cancel() {
	f.cancelled.Store(true)
}

// IsCancelled reports whether Cancel was called.
func (f *Flag) IsCancelled() bool {
	return f != nil && f.cancelled.Load()
}

// FromContext returns a token that is cancelled once ctx is done.
func FromContext(ctx context.Context) CancellationToken {
	return contextToken{ctx: ctx}
}

type contextToken struct {
	ctx context.Context
}

func (t contextToken) IsCancelled() bool {
	return t.ctx.Err() != nil
}
