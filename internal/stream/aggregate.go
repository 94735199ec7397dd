package stream

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
)

// Aggregator folds chunks, in receipt order, into a Response.
//
// The zero value is ready to use. An Aggregator is not safe for concurrent
// use.
type Aggregator struct {
	messages []proto.Message
	usage    proto.Usage
	reason   proto.FinishReason
	ended    bool
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Apply folds c into the response. Chunks that address missing or finished
// parts, arrive out of order, or follow the terminal chunk return an
// *errs.AggregationError and leave the response untouched. An error chunk
// returns the error it carries.
func (a *Aggregator) Apply(c proto.StreamChunk) error {
	if a.ended {
		return aggErr(c, "chunk after end of stream")
	}

	switch c.Kind {
	case proto.ChunkMessageStart:
		if c.Message != len(a.messages) {
			return aggErr(c, fmt.Sprintf("message opened out of order, expected index %d", len(a.messages)))
		}
		a.messages = append(a.messages, proto.Message{Role: roleOrAssistant(c.Role)})

	case proto.ChunkPartStart:
		if c.Content == nil {
			return aggErr(c, "part opened without content")
		}
		if c.Message == len(a.messages) {
			if c.Part != 0 {
				return aggErr(c, "part opened out of order, expected index 0")
			}
			a.messages = append(a.messages, proto.Message{Role: roleOrAssistant(c.Role)})
		}
		if c.Message < 0 || c.Message >= len(a.messages) {
			return aggErr(c, "message index out of range")
		}
		msg := &a.messages[c.Message]
		if c.Part != len(msg.Parts) {
			return aggErr(c, fmt.Sprintf("part opened out of order, expected index %d", len(msg.Parts)))
		}
		msg.Parts = append(msg.Parts, open(c.Content))

	case proto.ChunkPartDelta:
		part, err := a.part(c)
		if err != nil {
			return err
		}
		if part.IsFinished() {
			return aggErr(c, "delta for finished part")
		}
		switch p := part.(type) {
		case proto.Text:
			p.Text += c.Delta
			a.set(c, p)
		case proto.Reasoning:
			p.Text += c.Delta
			a.set(c, p)
		case proto.ToolCall:
			p.Arguments = append(slices.Clip(p.Arguments), c.Delta...)
			a.set(c, p)
		default:
			return aggErr(c, fmt.Sprintf("%s part does not accept deltas", part.Kind()))
		}

	case proto.ChunkPartEnd:
		part, err := a.part(c)
		if err != nil {
			return err
		}
		if part.IsFinished() {
			return aggErr(c, "part already finished")
		}
		if err := checkArguments(c.Message, c.Part, part); err != nil {
			return err
		}
		a.set(c, proto.Finish(part))

	case proto.ChunkUsage:
		if c.Usage != nil {
			a.usage = a.usage.Add(*c.Usage)
		}

	case proto.ChunkEnd:
		if c.Usage != nil {
			a.usage = a.usage.Add(*c.Usage)
		}
		a.reason = c.FinishReason
		a.ended = true
		return a.finishOpen(true)

	case proto.ChunkError:
		a.ended = true
		a.reason = proto.FinishUnfinished
		_ = a.finishOpen(false)
		if c.Err == nil {
			return errs.NewProviderError("", errs.ErrNetwork, ErrUnexpectedEnd)
		}
		return c.Err

	default:
		return aggErr(c, fmt.Sprintf("unknown chunk kind %q", c.Kind))
	}
	return nil
}

// Ended reports whether a terminal chunk was applied.
func (a *Aggregator) Ended() bool { return a.ended }

// Response returns a snapshot of the response built so far. A stream that
// never opened a message yields a single empty assistant message.
func (a *Aggregator) Response() proto.Response {
	msgs := make([]proto.Message, 0, max(len(a.messages), 1))
	for _, m := range a.messages {
		msgs = append(msgs, m.Clone())
	}
	if len(msgs) == 0 {
		msgs = append(msgs, proto.Message{Role: proto.RoleAssistant})
	}
	return proto.Response{Messages: msgs, Usage: a.usage, FinishReason: a.reason}
}

// finishOpen forces every open part finished. With validate set, tool call
// arguments that are not valid JSON fail the stream.
func (a *Aggregator) finishOpen(validate bool) error {
	var first error
	for i := range a.messages {
		for j, p := range a.messages[i].Parts {
			if p.IsFinished() {
				continue
			}
			if validate && first == nil {
				first = checkArguments(i, j, p)
			}
			a.messages[i].Parts[j] = proto.Finish(p)
		}
	}
	return first
}

func (a *Aggregator) part(c proto.StreamChunk) (proto.Part, error) {
	if c.Message < 0 || c.Message >= len(a.messages) {
		return nil, aggErr(c, "message index out of range")
	}
	parts := a.messages[c.Message].Parts
	if c.Part < 0 || c.Part >= len(parts) {
		return nil, aggErr(c, "part index out of range")
	}
	return parts[c.Part], nil
}

func (a *Aggregator) set(c proto.StreamChunk, p proto.Part) {
	a.messages[c.Message].Parts[c.Part] = p
}

func open(p proto.Part) proto.Part {
	switch p := p.(type) {
	case proto.Text:
		p.Finished = false
		return p
	case proto.Reasoning:
		p.Finished = false
		return p
	case proto.ToolCall:
		p.Finished = false
		p.Arguments = slices.Clone(p.Arguments)
		return p
	default:
		return p
	}
}

func checkArguments(msg, part int, p proto.Part) error {
	call, ok := p.(proto.ToolCall)
	if !ok || len(call.Arguments) == 0 || json.Valid(call.Arguments) {
		return nil
	}
	return &errs.AggregationError{Message: msg, Part: part, Reason: fmt.Sprintf("arguments of tool call %q are not valid JSON", call.ID)}
}

func roleOrAssistant(r proto.Role) proto.Role {
	if r == "" {
		return proto.RoleAssistant
	}
	return r
}

func aggErr(c proto.StreamChunk, reason string) error {
	return &errs.AggregationError{Message: c.Message, Part: c.Part, Reason: reason}
}

// Collect drains s into a Response, calling onChunk (when set) for every
// chunk before it is applied. On failure it returns the partial Response
// together with the error. Collect always closes s.
func Collect(s Stream, onChunk func(proto.StreamChunk)) (proto.Response, error) {
	defer s.Close() //nolint:errcheck

	agg := NewAggregator()
	for s.Next() {
		c := s.Current()
		if onChunk != nil {
			onChunk(c)
		}
		if err := agg.Apply(c); err != nil {
			return agg.Response(), err
		}
		if agg.Ended() {
			return agg.Response(), nil
		}
	}
	return agg.Response(), errs.NewProviderError("", errs.ErrNetwork, ErrUnexpectedEnd)
}
