package emitter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

type Strategy string

const (
	StrategyModel Strategy = "model"
	StrategyMock  Strategy = "mock"
)

// Fallback reasons reported in Report.FallbackReason.
const (
	ReasonNoProvider    = "no_provider"
	ReasonProviderError = "provider_error"
)

// Report describes how a request was served.
type Report struct {
	Strategy       Strategy
	FallbackReason string
	// Interrupted is set when the provider failed after events had already
	// been forwarded and the stream was closed early.
	Interrupted bool
	Events      int
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeUnavailable
	outcomeBroken
	outcomeStopped
)

// Resolver tries the provider first and falls back to the mock strategy
// when the provider cannot produce anything for the request.
type Resolver struct {
	provider Emitter
	fallback *Mock
	logger   *slog.Logger
}

// NewResolver returns a Resolver. provider may be nil, in which case every
// request is served by fallback.
func NewResolver(provider Emitter, fallback *Mock, logger *slog.Logger) *Resolver {
	if fallback == nil {
		fallback = NewMock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, fallback: fallback, logger: logger}
}

func (r *Resolver) Emit(ctx context.Context, req plan.PlanRequest, sink Sink) error {
	_, err := r.Resolve(ctx, req, sink)
	return err
}

// guard forwards events until the first terminal one and remembers what
// happened on the way.
type guard struct {
	sink     Sink
	events   int
	done     bool
	sinkFail error
}

func (g *guard) send(ev plan.StreamEvent) error {
	if g.done {
		return nil
	}
	if err := g.sink(ev); err != nil {
		g.sinkFail = err
		return err
	}
	g.events++
	if ev.IsComplete {
		g.done = true
	}
	return nil
}

// Resolve serves req and reports which strategy produced the stream.
func (r *Resolver) Resolve(ctx context.Context, req plan.PlanRequest, sink Sink) (Report, error) {
	g := &guard{sink: sink}

	oc, err := r.attempt(ctx, req, g)
	report := Report{Strategy: StrategyModel}

	switch oc {
	case outcomeOK:
	case outcomeStopped:
		report.Events = g.events
		return report, err
	case outcomeUnavailable:
		report.Strategy = StrategyMock
		report.FallbackReason = ReasonProviderError
		if errors.Is(err, ErrProviderUnavailable) {
			report.FallbackReason = ReasonNoProvider
			r.logger.Debug("no model provider configured, using mock replies")
		} else {
			r.logger.Warn("model provider failed before streaming, using mock replies", "error", err)
		}
		if err := r.fallback.Emit(ctx, req, g.send); err != nil {
			report.Events = g.events
			return report, err
		}
	case outcomeBroken:
		report.Interrupted = true
		r.logger.Error("model provider failed mid-stream", "error", err, "events", g.events)
		if err := g.send(plan.StreamEvent{IsComplete: true}); err != nil {
			report.Events = g.events
			return report, err
		}
	}

	if !g.done {
		if err := g.send(plan.StreamEvent{IsComplete: true}); err != nil {
			report.Events = g.events
			return report, err
		}
	}
	report.Events = g.events
	return report, nil
}

func (r *Resolver) attempt(ctx context.Context, req plan.PlanRequest, g *guard) (outcome, error) {
	if r.provider == nil {
		return outcomeUnavailable, ErrProviderUnavailable
	}

	err := r.provider.Emit(ctx, req, g.send)
	switch {
	case err == nil:
		return outcomeOK, nil
	case g.sinkFail != nil:
		return outcomeStopped, g.sinkFail
	case ctx.Err() != nil:
		return outcomeStopped, ctx.Err()
	case g.events == 0:
		return outcomeUnavailable, err
	default:
		return outcomeBroken, err
	}
}
