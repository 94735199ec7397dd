package proto

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Context is the ordered conversation history submitted to a provider.
//
// A Context is never mutated in place: Append returns a new Context and the
// receiver keeps seeing the messages it had.
type Context struct {
	messages []Message
}

// NewContext returns a Context holding msgs.
func NewContext(msgs ...Message) Context {
	return Context{messages: slices.Clone(msgs)}
}

// Append returns c extended with msgs.
func (c Context) Append(msgs ...Message) Context {
	if len(msgs) == 0 {
		return c
	}
	return Context{messages: append(slices.Clip(c.messages), msgs...)}
}

// WithSystem returns c with a leading system message holding text, unless
// text is empty or c already starts with a system message.
func (c Context) WithSystem(text string) Context {
	if text == "" || (len(c.messages) > 0 && c.messages[0].Role == RoleSystem) {
		return c
	}
	msgs := make([]Message, 0, len(c.messages)+1)
	msgs = append(msgs, SystemText(text))
	return Context{messages: append(msgs, c.messages...)}
}

// Len returns the number of messages.
func (c Context) Len() int { return len(c.messages) }

// At returns the i-th message.
func (c Context) At(i int) Message { return c.messages[i] }

// Last returns the last message, if any.
func (c Context) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages returns a copy of the messages.
func (c Context) Messages() []Message {
	return slices.Clone(c.messages)
}

// Pending returns tool calls that have no matching tool result, in order.
//
// Calls are paired with results per turn: a run of assistant messages and the
// messages that follow it up to the next assistant message. Providers may
// reuse call ids across turns.
func (c Context) Pending() []ToolCall {
	var pending []ToolCall
	c.eachTurn(func(_ int, msgs []Message) {
		answered := map[string]struct{}{}
		for _, m := range msgs {
			for _, p := range m.Parts {
				if r, ok := p.(ToolResult); ok {
					answered[r.CallID] = struct{}{}
				}
			}
		}
		for _, m := range msgs {
			for _, call := range m.ToolCalls() {
				if _, ok := answered[call.ID]; !ok {
					pending = append(pending, call)
				}
			}
		}
	})
	return pending
}

// Validate checks that every tool call is paired with exactly one tool result
// from its own turn and every tool result answers a call of its turn.
func (c Context) Validate() error {
	var err error
	c.eachTurn(func(offset int, msgs []Message) {
		if err != nil {
			return
		}
		calls := map[string]int{}
		for i, m := range msgs {
			for _, p := range m.Parts {
				switch p := p.(type) {
				case ToolCall:
					if _, dup := calls[p.ID]; dup {
						err = fmt.Errorf("message %d: duplicate tool call id %q", offset+i, p.ID)
						return
					}
					calls[p.ID] = 0
				case ToolResult:
					n, ok := calls[p.CallID]
					if !ok {
						err = fmt.Errorf("message %d: tool result for unknown call %q", offset+i, p.CallID)
						return
					}
					if n > 0 {
						err = fmt.Errorf("message %d: tool call %q answered twice", offset+i, p.CallID)
						return
					}
					calls[p.CallID] = n + 1
				}
			}
		}
	})
	if err != nil {
		return err
	}
	if pending := c.Pending(); len(pending) > 0 {
		ids := make([]string, 0, len(pending))
		for _, call := range pending {
			ids = append(ids, call.ID)
		}
		return fmt.Errorf("unmatched tool calls: %s", strings.Join(ids, ", "))
	}
	return nil
}

// eachTurn calls fn for every turn of c with the index of its first message.
// A new turn starts at each assistant message that follows a non-assistant
// one.
func (c Context) eachTurn(fn func(offset int, msgs []Message)) {
	start := 0
	for i := 1; i < len(c.messages); i++ {
		if c.messages[i].Role == RoleAssistant && c.messages[i-1].Role != RoleAssistant {
			fn(start, c.messages[start:i])
			start = i
		}
	}
	if start < len(c.messages) {
		fn(start, c.messages[start:])
	}
}

// MarshalJSON encodes the context as a message array.
func (c Context) MarshalJSON() ([]byte, error) {
	if c.messages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.messages) //nolint:wrapcheck
}

// UnmarshalJSON decodes a message array.
func (c *Context) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("unmarshal context: %w", err)
	}
	c.messages = msgs
	return nil
}

// String renders the context as markdown.
func (c Context) String() string {
	var sb strings.Builder
	for _, m := range c.messages {
		switch m.Role {
		case RoleSystem:
			sb.WriteString("**System**: ")
		case RoleUser:
			sb.WriteString("**Prompt**: ")
		case RoleAssistant:
			sb.WriteString("**Assistant**: ")
		case RoleTool:
			sb.WriteString("**Tool**: ")
		}
		for i, p := range m.Parts {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			writePart(&sb, p)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func writePart(sb *strings.Builder, p Part) {
	switch p := p.(type) {
	case Text:
		sb.WriteString(p.Text)
	case Reasoning:
		sb.WriteString("> ")
		sb.WriteString(strings.ReplaceAll(p.Text, "\n", "\n> "))
	case Image:
		fmt.Fprintf(sb, "![image](%s)", p.Ref)
	case File:
		name := p.Name
		if name == "" {
			name = p.MIMEType
		}
		if p.URI != "" {
			fmt.Fprintf(sb, "[%s](%s)", name, p.URI)
		} else {
			fmt.Fprintf(sb, "`%s` (attached)", name)
		}
	case ToolCall:
		fmt.Fprintf(sb, "> Ran: `%s`\n\n```json\n%s\n```", p.Name, p.Arguments)
	case ToolResult:
		status := "Result"
		if p.IsError {
			status = "Failed"
		}
		fmt.Fprintf(sb, "> %s: `%s`\n\n```\n%s\n```", status, p.Name, p.Content)
	}
}
