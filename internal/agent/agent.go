// Package agent runs the bounded tool-calling loop: request a turn from a
// provider, execute the tools it asks for, append the results and repeat.
package agent

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/provider"
	"github.com/dotcommander/unai/internal/stream"
	"github.com/dotcommander/unai/internal/tools"
)

// DefaultMaxIterations bounds a run when Config leaves it unset.
const DefaultMaxIterations = 10

// Config tunes a run.
type Config struct {
	// MaxIterations is the number of provider calls a run may make.
	MaxIterations int
	// Concurrency bounds tool executions within one turn. Zero means no
	// bound.
	Concurrency int
	// Stream requests turns through RequestStream.
	Stream bool
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTransitionHook calls fn on every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(a *Agent) { a.onTransition = fn }
}

// WithChunkHook calls fn for every chunk of a streamed turn, in arrival
// order.
func WithChunkHook(fn func(proto.StreamChunk)) Option {
	return func(a *Agent) { a.onChunk = fn }
}

// WithToolHook calls fn for every executed tool call, in call order, once
// the whole turn has finished executing.
func WithToolHook(fn func(proto.ToolCall, proto.ToolResult)) Option {
	return func(a *Agent) { a.onTool = fn }
}

// Agent drives runs against one client and one registry.
type Agent struct {
	client   provider.Client
	registry *tools.Registry
	cfg      Config
	logger   *slog.Logger

	onTransition func(from, to State)
	onChunk      func(proto.StreamChunk)
	onTool       func(proto.ToolCall, proto.ToolResult)
}

// New creates an agent. A nil registry offers no tools.
func New(client provider.Client, registry *tools.Registry, cfg Config, opts ...Option) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if registry == nil {
		registry, _ = tools.NewRegistry()
	}
	a := &Agent{client: client, registry: registry, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run drives conv to a terminal state. The returned Result is always
// populated; err is non-nil unless the run Completed.
//
// Tool calls left unanswered in conv are executed before the first request.
func (a *Agent) Run(ctx context.Context, conv proto.Context) (Result, error) {
	r := &run{agent: a, res: Result{State: Idle, Context: conv}}
	return r.loop(ctx)
}

type run struct {
	agent *Agent
	res   Result
}

func (r *run) loop(ctx context.Context) (Result, error) {
	if pending := r.res.Context.Pending(); len(pending) > 0 {
		if err := r.execute(ctx, pending); err != nil {
			return r.fail(ctx, err)
		}
	}

	specs := r.agent.registry.Specs()
	for {
		if err := r.res.Context.Validate(); err != nil {
			return r.fail(ctx, errs.NewProviderError(r.agent.client.Name(), errs.ErrProtocol, err))
		}
		r.transition(ctx, Requesting)
		r.res.Iterations++

		resp, err := r.request(ctx, specs)
		r.res.Response = resp
		r.res.Usage = r.res.Usage.Add(resp.Usage)
		if err != nil {
			return r.fail(ctx, err)
		}
		r.res.Context = r.res.Context.Append(resp.Messages...)

		r.transition(ctx, EvaluatingTools)
		calls := resp.ToolCalls()
		if len(calls) == 0 {
			r.transition(ctx, Completed)
			return r.res, nil
		}
		if r.res.Iterations >= r.agent.cfg.MaxIterations {
			r.res.Pending = calls
			r.res.Err = &IterationExceededError{Limit: r.agent.cfg.MaxIterations, Pending: calls}
			r.transition(ctx, IterationExceeded)
			return r.res, r.res.Err
		}
		if err := r.execute(ctx, calls); err != nil {
			return r.fail(ctx, err)
		}
	}
}

func (r *run) request(ctx context.Context, specs []proto.ToolSpec) (proto.Response, error) {
	client := r.agent.client
	if r.agent.cfg.Stream {
		s := client.RequestStream(ctx, r.res.Context, specs)
		r.transition(ctx, Streaming)
		return stream.Collect(s, r.agent.onChunk)
	}

	resp, err := client.Request(ctx, r.res.Context, specs)
	if err != nil {
		return resp, err
	}
	r.transition(ctx, Responding)
	if err := resp.Validate(); err != nil {
		return resp, errs.NewProviderError(client.Name(), errs.ErrProtocol, err)
	}
	return resp, nil
}

// execute runs calls under the concurrency bound and appends one tool
// message holding the results in call order.
func (r *run) execute(ctx context.Context, calls []proto.ToolCall) error {
	r.transition(ctx, ExecutingTools)

	results := make([]proto.ToolResult, len(calls))
	var g errgroup.Group
	if n := r.agent.cfg.Concurrency; n > 0 {
		g.SetLimit(n)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = r.agent.registry.Execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	if r.agent.onTool != nil {
		for i, call := range calls {
			r.agent.onTool(call, results[i])
		}
	}
	r.res.Context = r.res.Context.Append(proto.ToolResults(results...))

	if err := ctx.Err(); err != nil {
		return errs.Cancelled(err)
	}
	return nil
}

func (r *run) fail(ctx context.Context, err error) (Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && errs.KindOf(err) != errs.KindCancelled {
		err = errs.Cancelled(err)
	}
	r.res.Err = err
	r.transition(ctx, Failed)
	return r.res, err
}

func (r *run) transition(ctx context.Context, to State) {
	from := r.res.State
	r.res.State = to
	r.agent.logger.DebugContext(ctx, "agent transition",
		"from", from, "to", to, "iteration", r.res.Iterations, "messages", r.res.Context.Len())
	if r.agent.onTransition != nil {
		r.agent.onTransition(from, to)
	}
}
