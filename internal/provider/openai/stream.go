package openai

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
)

// translator turns chat completion chunks into StreamChunks. Each choice
// becomes one message, numbered in order of first appearance.
type translator struct {
	name     string
	choices  map[int]*choiceState
	usage    *proto.Usage
	reason   proto.FinishReason
	finished bool
}

type choiceState struct {
	msg      int
	parts    int
	open     int
	openKind proto.PartKind
	tools    map[int]int
	lastTool int
	ended    bool
}

func newTranslator(name string) *translator {
	return &translator{name: name, choices: map[int]*choiceState{}, reason: proto.FinishUnfinished}
}

// event translates one SSE payload.
func (t *translator) event(data []byte) ([]proto.StreamChunk, error) {
	var chunk chatChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, errs.NewProviderError(t.name, errs.ErrProtocol, fmt.Errorf("decode stream chunk: %w", err))
	}
	if chunk.Error != nil {
		return nil, &errs.ProviderError{Provider: t.name, Kind: errs.ErrNetwork, Message: chunk.Error.Message}
	}
	if chunk.Usage != nil {
		t.usage = &proto.Usage{PromptTokens: chunk.Usage.PromptTokens, CompletionTokens: chunk.Usage.CompletionTokens}
	}

	var out []proto.StreamChunk
	for _, ch := range chunk.Choices {
		cs, ok := t.choices[ch.Index]
		if !ok {
			cs = &choiceState{msg: len(t.choices), open: -1, tools: map[int]int{}, lastTool: -1}
			t.choices[ch.Index] = cs
			out = append(out, proto.StartMessage(cs.msg, proto.RoleAssistant))
		}
		if cs.ended {
			continue
		}
		if ch.Delta.ReasoningContent != "" {
			out = t.textDelta(out, cs, proto.KindReasoning, ch.Delta.ReasoningContent)
		}
		if ch.Delta.Content != "" {
			out = t.textDelta(out, cs, proto.KindText, string(ch.Delta.Content))
		}
		for _, tc := range ch.Delta.ToolCalls {
			out = t.toolDelta(out, cs, tc)
		}
		if ch.FinishReason != "" {
			out = t.finish(out, cs, finishReason(ch.FinishReason))
		}
	}
	return out, nil
}

func (t *translator) textDelta(out []proto.StreamChunk, cs *choiceState, kind proto.PartKind, s string) []proto.StreamChunk {
	if cs.open < 0 || cs.openKind != kind {
		out = closeOpen(out, cs)
		var content proto.Part = proto.Text{}
		if kind == proto.KindReasoning {
			content = proto.Reasoning{}
		}
		cs.open, cs.openKind = cs.parts, kind
		cs.parts++
		out = append(out, proto.StartPart(cs.msg, cs.open, content))
	}
	return append(out, proto.Delta(cs.msg, cs.open, s))
}

func (t *translator) toolDelta(out []proto.StreamChunk, cs *choiceState, tc wireToolCall) []proto.StreamChunk {
	key := cs.lastTool
	switch {
	case tc.Index != nil:
		key = *tc.Index
	case tc.ID != "" || key < 0:
		key = len(cs.tools)
	}
	part, ok := cs.tools[key]
	if !ok {
		out = closeOpen(out, cs)
		id := tc.ID
		if id == "" {
			id = newCallID()
		}
		part = cs.parts
		cs.parts++
		cs.tools[key] = part
		out = append(out, proto.StartPart(cs.msg, part, proto.ToolCall{ID: id, Name: tc.Function.Name}))
	}
	cs.lastTool = key
	if tc.Function.Arguments != "" {
		out = append(out, proto.Delta(cs.msg, part, tc.Function.Arguments))
	}
	return out
}

func (t *translator) finish(out []proto.StreamChunk, cs *choiceState, reason proto.FinishReason) []proto.StreamChunk {
	out = closeOpen(out, cs)
	for _, part := range slices.Sorted(maps.Values(cs.tools)) {
		out = append(out, proto.EndPart(cs.msg, part))
	}
	cs.ended = true
	if !t.finished || cs.msg == 0 {
		t.reason = reason
	}
	t.finished = true
	return out
}

// close ends every open choice and emits the terminal chunk.
func (t *translator) close() []proto.StreamChunk {
	var out []proto.StreamChunk
	states := slices.SortedFunc(maps.Values(t.choices), func(a, b *choiceState) int { return a.msg - b.msg })
	for _, cs := range states {
		if !cs.ended {
			out = t.finish(out, cs, t.reason)
		}
	}
	if t.usage != nil {
		out = append(out, proto.UsageChunk(*t.usage))
	}
	return append(out, proto.End(t.reason))
}

func closeOpen(out []proto.StreamChunk, cs *choiceState) []proto.StreamChunk {
	if cs.open < 0 {
		return out
	}
	out = append(out, proto.EndPart(cs.msg, cs.open))
	cs.open = -1
	return out
}
