// Package errs defines the error taxonomy shared by providers, the stream
// aggregator, the tool registry and the agent, plus the user-facing Error
// wrapper rendered by the CLI.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// UserErrorf is a user-facing error.
// This helper exists mostly to avoid linters complaining about errors starting
// with a capitalized letter.
func UserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Error wraps an underlying error with a user-facing reason.
//
// When Err is nil, Error() falls back to Reason. Hint is an optional next
// step printed after the details.
type Error struct {
	Err    error
	Reason string
	Hint   string
}

// Wrap creates an Error with the given underlying error and user-facing reason.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf creates an Error with a formatted reason.
func Wrapf(err error, format string, a ...any) Error {
	return Error{Err: err, Reason: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error {
	return e.Err
}

// Kind is the taxonomy tag of an error.
type Kind string

// Kinds.
const (
	KindUnknown           Kind = "unknown"
	KindAuth              Kind = "auth"
	KindRateLimit         Kind = "rate_limit"
	KindNetwork           Kind = "network"
	KindProtocol          Kind = "protocol"
	KindAggregation       Kind = "aggregation"
	KindToolExecution     Kind = "tool_execution"
	KindDuplicateTool     Kind = "duplicate_tool"
	KindIterationExceeded Kind = "iteration_exceeded"
	KindCancelled         Kind = "cancelled"
)

// Sentinels for errors.Is. Typed errors in this package unwrap to one of
// these.
var (
	ErrAuth              = errors.New("authentication failed")
	ErrRateLimit         = errors.New("rate limited")
	ErrNetwork           = errors.New("network error")
	ErrProtocol          = errors.New("provider protocol error")
	ErrAggregation       = errors.New("stream aggregation error")
	ErrToolExecution     = errors.New("tool execution failed")
	ErrDuplicateTool     = errors.New("duplicate tool")
	ErrIterationExceeded = errors.New("iteration limit exceeded")
	ErrCancelled         = errors.New("cancelled")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrCancelled, KindCancelled},
	{context.Canceled, KindCancelled},
	{ErrAuth, KindAuth},
	{ErrRateLimit, KindRateLimit},
	{ErrNetwork, KindNetwork},
	{context.DeadlineExceeded, KindNetwork},
	{ErrProtocol, KindProtocol},
	{ErrAggregation, KindAggregation},
	{ErrToolExecution, KindToolExecution},
	{ErrDuplicateTool, KindDuplicateTool},
	{ErrIterationExceeded, KindIterationExceeded},
}

// KindOf returns the taxonomy tag for err. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Cancelled wraps a context error so it matches ErrCancelled while keeping
// the cause.
func Cancelled(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
