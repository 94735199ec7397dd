package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ChunkKind identifies what a StreamChunk does to the response being built.
type ChunkKind string

// Chunk kinds.
const (
	// ChunkMessageStart opens message Message with role Role.
	ChunkMessageStart ChunkKind = "message_start"
	// ChunkPartStart opens part Part of message Message with Content. A
	// message at index len(messages) is opened implicitly.
	ChunkPartStart ChunkKind = "part_start"
	// ChunkPartDelta appends Delta to an open text, reasoning or tool call
	// part.
	ChunkPartDelta ChunkKind = "part_delta"
	// ChunkPartEnd marks a part finished.
	ChunkPartEnd ChunkKind = "part_end"
	// ChunkUsage adds Usage to the running totals.
	ChunkUsage ChunkKind = "usage"
	// ChunkEnd terminates the stream successfully.
	ChunkEnd ChunkKind = "end"
	// ChunkError terminates the stream with Err.
	ChunkError ChunkKind = "error"
)

// StreamChunk is an incremental update addressing the eventual Response by
// message and part index.
type StreamChunk struct {
	Kind         ChunkKind
	Message      int
	Part         int
	Role         Role
	Content      Part
	Delta        string
	FinishReason FinishReason
	Usage        *Usage
	Err          error
}

// IsTerminal reports whether c ends the stream.
func (c StreamChunk) IsTerminal() bool {
	return c.Kind == ChunkEnd || c.Kind == ChunkError
}

// StartMessage opens a message.
func StartMessage(msg int, role Role) StreamChunk {
	return StreamChunk{Kind: ChunkMessageStart, Message: msg, Role: role}
}

// StartPart opens a part.
func StartPart(msg, part int, content Part) StreamChunk {
	return StreamChunk{Kind: ChunkPartStart, Message: msg, Part: part, Content: content}
}

// Delta appends text to an open part.
func Delta(msg, part int, delta string) StreamChunk {
	return StreamChunk{Kind: ChunkPartDelta, Message: msg, Part: part, Delta: delta}
}

// EndPart finishes a part.
func EndPart(msg, part int) StreamChunk {
	return StreamChunk{Kind: ChunkPartEnd, Message: msg, Part: part}
}

// UsageChunk reports usage.
func UsageChunk(u Usage) StreamChunk {
	return StreamChunk{Kind: ChunkUsage, Usage: &u}
}

// End terminates a stream.
func End(reason FinishReason) StreamChunk {
	return StreamChunk{Kind: ChunkEnd, FinishReason: reason}
}

// ErrorChunk terminates a stream with err.
func ErrorChunk(err error) StreamChunk {
	return StreamChunk{Kind: ChunkError, Err: err}
}

type chunkJSON struct {
	Kind         ChunkKind       `json:"kind"`
	Message      int             `json:"message"`
	Part         int             `json:"part"`
	Role         Role            `json:"role,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	FinishReason FinishReason    `json:"finish_reason,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	Err          string          `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler. Errors are encoded as their message.
func (c StreamChunk) MarshalJSON() ([]byte, error) {
	v := chunkJSON{
		Kind:         c.Kind,
		Message:      c.Message,
		Part:         c.Part,
		Role:         c.Role,
		Delta:        c.Delta,
		FinishReason: c.FinishReason,
		Usage:        c.Usage,
	}
	if c.Content != nil {
		bts, err := MarshalPart(c.Content)
		if err != nil {
			return nil, err
		}
		v.Content = bts
	}
	if c.Err != nil {
		v.Err = c.Err.Error()
	}
	return json.Marshal(v) //nolint:wrapcheck
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *StreamChunk) UnmarshalJSON(data []byte) error {
	var v chunkJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal chunk: %w", err)
	}
	*c = StreamChunk{
		Kind:         v.Kind,
		Message:      v.Message,
		Part:         v.Part,
		Role:         v.Role,
		Delta:        v.Delta,
		FinishReason: v.FinishReason,
		Usage:        v.Usage,
	}
	if len(v.Content) > 0 {
		p, err := UnmarshalPart(v.Content)
		if err != nil {
			return err
		}
		c.Content = p
	}
	if v.Err != "" {
		c.Err = errors.New(v.Err)
	}
	return nil
}
