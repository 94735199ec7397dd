package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
)

// ErrUnknownTool is reported, as tool result content, for calls to names
// that are not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds tool definitions. Registration happens before a run;
// Execute is safe for concurrent use. The zero value is an empty registry
// logging to slog.Default.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Definition
	order  []string
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{tools: map[string]Definition{}, logger: slog.Default()}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetLogger sets the logger used for handler failures.
func (r *Registry) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// Register adds def. It fails with *errs.DuplicateToolError when the name is
// taken.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if def.Handler == nil {
		return fmt.Errorf("register tool %q: nil handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return &errs.DuplicateToolError{Name: def.Name}
	}
	if r.tools == nil {
		r.tools = map[string]Definition{}
	}
	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Specs returns the tool specs in registration order.
func (r *Registry) Specs() []proto.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]proto.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Execute runs the handler for call. Handler errors, panics and unknown tool
// names are never returned: they become a ToolResult with IsError set.
func (r *Registry) Execute(ctx context.Context, call proto.ToolCall) proto.ToolResult {
	result := proto.ToolResult{CallID: call.ID, Name: call.Name}

	def, ok := r.Lookup(call.Name)
	if !ok {
		result.IsError = true
		result.Content = errorContent(fmt.Errorf("%w: %s", ErrUnknownTool, call.Name))
		return result
	}

	content, err := r.invoke(ctx, def, call)
	if err != nil {
		r.mu.RLock()
		logger := r.logger
		r.mu.RUnlock()
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)

		result.IsError = true
		result.Content = errorContent(err)
		return result
	}
	result.Content = content
	return result
}

func (r *Registry) invoke(ctx context.Context, def Definition, call proto.ToolCall) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.DebugContext(ctx, "tool handler panicked", "tool", call.Name, "stack", string(debug.Stack()))
			err = &errs.ToolError{Name: call.Name, CallID: call.ID, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", &errs.ToolError{Name: call.Name, CallID: call.ID, Err: err}
	}
	content, err = def.Handler(ctx, call.Arguments)
	if err != nil {
		return "", &errs.ToolError{Name: call.Name, CallID: call.ID, Err: err}
	}
	return content, nil
}

func errorContent(err error) string {
	var terr *errs.ToolError
	if errors.As(err, &terr) {
		err = terr.Err
	}
	return "Error: " + err.Error()
}
