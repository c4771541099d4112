// Package emitter turns a plan request into a stream of events. Two
// strategies share the Emitter contract: a deterministic keyword based mock
// and a model backed one; Resolver picks between them per request.
package emitter

import (
	"context"
	"errors"
	"time"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

// Sink receives events in order. A non-nil error stops the emitter.
type Sink func(plan.StreamEvent) error

// Emitter produces events for req, finishing with exactly one event whose
// IsComplete is set when it returns nil.
type Emitter interface {
	Emit(ctx context.Context, req plan.PlanRequest, sink Sink) error
}

var (
	// ErrProviderUnavailable means no model is configured, usually because
	// credentials are missing.
	ErrProviderUnavailable = errors.New("model provider unavailable")
	// ErrProviderFailed wraps errors returned by the model provider.
	ErrProviderFailed = errors.New("model provider failed")
)

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
