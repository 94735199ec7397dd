package agent

import (
	"fmt"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
)

// State is a step of an agent run.
type State string

// States.
const (
	Idle              State = "idle"
	Requesting        State = "requesting"
	Responding        State = "responding"
	Streaming         State = "streaming"
	EvaluatingTools   State = "evaluating_tools"
	ExecutingTools    State = "executing_tools"
	Completed         State = "completed"
	IterationExceeded State = "iteration_exceeded"
	Failed            State = "failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	switch s {
	case Completed, IterationExceeded, Failed:
		return true
	default:
		return false
	}
}

// Result is the outcome of a run.
type Result struct {
	State      State
	Context    proto.Context
	Response   proto.Response
	Usage      proto.Usage
	Iterations int
	// Pending holds the tool calls left unexecuted when the iteration limit
	// was reached.
	Pending []proto.ToolCall
	Err     error
}

// IterationExceededError reports a run stopped by the iteration limit while
// the model still asked for tools.
type IterationExceededError struct {
	Limit   int
	Pending []proto.ToolCall
}

func (e *IterationExceededError) Error() string {
	return fmt.Sprintf("stopped after %d iterations with %d pending tool calls", e.Limit, len(e.Pending))
}

func (e *IterationExceededError) Unwrap() error { return errs.ErrIterationExceeded }
