package proto

import (
	"encoding/json"
	"errors"
)

// FinishReason reports why a model turn ended.
type FinishReason string

// Finish reasons.
const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishUnfinished    FinishReason = "unfinished"
)

// Usage holds token counts for a turn.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int64 { return u.PromptTokens + u.CompletionTokens }

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
	}
}

// Response is the result of one model turn.
type Response struct {
	Messages     []Message    `json:"messages"`
	Usage        Usage        `json:"usage"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// ErrEmptyResponse is returned when a response carries no messages.
var ErrEmptyResponse = errors.New("response has no messages")

// Validate reports whether r is a well-formed response.
func (r Response) Validate() error {
	if len(r.Messages) == 0 {
		return ErrEmptyResponse
	}
	return nil
}

// ToolCalls returns every tool call in the response, in order.
func (r Response) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, m := range r.Messages {
		calls = append(calls, m.ToolCalls()...)
	}
	return calls
}

// Text concatenates the text of all messages.
func (r Response) Text() string {
	var out string
	for _, m := range r.Messages {
		out += m.Text()
	}
	return out
}

// ToolSpec is the provider-facing description of a tool.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}
