// Package proto holds the canonical message model shared by providers, the
// stream aggregator, the tool registry and the agent.
package proto

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Role is the author of a Message.
type Role string

// Roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a role-tagged ordered sequence of parts.
type Message struct {
	Role  Role
	Parts []Part
}

// NewMessage returns a message with the given parts.
func NewMessage(role Role, parts ...Part) Message {
	return Message{Role: role, Parts: parts}
}

// SystemText returns a system message with a single text part.
func SystemText(text string) Message {
	return NewMessage(RoleSystem, Text{Text: text, Finished: true})
}

// UserText returns a user message with a single text part.
func UserText(text string) Message {
	return NewMessage(RoleUser, Text{Text: text, Finished: true})
}

// AssistantText returns an assistant message with a single text part.
func AssistantText(text string) Message {
	return NewMessage(RoleAssistant, Text{Text: text, Finished: true})
}

// ToolResults returns a tool message carrying the given results.
func ToolResults(results ...ToolResult) Message {
	parts := make([]Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, r)
	}
	return Message{Role: RoleTool, Parts: parts}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the message's tool call parts in order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if c, ok := p.(ToolCall); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// Clone returns a copy of m that shares no part slice with it.
func (m Message) Clone() Message {
	return Message{Role: m.Role, Parts: slices.Clone(m.Parts)}
}

type messageJSON struct {
	Role  Role              `json:"role"`
	Parts []json.RawMessage `json:"parts"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	v := messageJSON{Role: m.Role, Parts: make([]json.RawMessage, 0, len(m.Parts))}
	for _, p := range m.Parts {
		bts, err := MarshalPart(p)
		if err != nil {
			return nil, err
		}
		v.Parts = append(v.Parts, bts)
	}
	return json.Marshal(v) //nolint:wrapcheck
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var v messageJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	m.Role = v.Role
	m.Parts = make([]Part, 0, len(v.Parts))
	for _, raw := range v.Parts {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, p)
	}
	return nil
}
