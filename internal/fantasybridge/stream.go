package fantasybridge

import (
	"fmt"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/unai/internal/proto"
)

// translator maps fantasy stream parts onto StreamChunks for a single
// assistant message. Fantasy identifies text, reasoning and tool input
// blocks by id; each block becomes one part.
type translator struct {
	started  bool
	next     int
	blocks   map[string]*block
	warnings map[string]struct{}
	warn     func(string)
}

type block struct {
	part   int
	sent   int
	closed bool
}

func newTranslator(warn func(string)) *translator {
	return &translator{blocks: map[string]*block{}, warnings: map[string]struct{}{}, warn: warn}
}

// translate returns the chunks for part and whether part ended the response.
func (t *translator) translate(part fantasy.StreamPart) ([]proto.StreamChunk, bool) {
	var out []proto.StreamChunk
	if !t.started {
		t.started = true
		out = append(out, proto.StartMessage(0, proto.RoleAssistant))
	}

	switch part.Type {
	case fantasy.StreamPartTypeTextStart:
		out = t.open(out, "text:"+part.ID, proto.Text{})
	case fantasy.StreamPartTypeTextDelta:
		out = t.delta(out, "text:"+part.ID, proto.Text{}, part.Delta)
	case fantasy.StreamPartTypeTextEnd:
		out = t.close(out, "text:"+part.ID)
	case fantasy.StreamPartTypeReasoningStart:
		out = t.open(out, "reasoning:"+part.ID, proto.Reasoning{})
	case fantasy.StreamPartTypeReasoningDelta:
		out = t.delta(out, "reasoning:"+part.ID, proto.Reasoning{}, part.Delta)
	case fantasy.StreamPartTypeReasoningEnd:
		out = t.close(out, "reasoning:"+part.ID)
	case fantasy.StreamPartTypeToolInputStart:
		if !part.ProviderExecuted {
			out = t.open(out, "tool:"+part.ID, proto.ToolCall{ID: part.ID, Name: part.ToolCallName})
		}
	case fantasy.StreamPartTypeToolInputDelta:
		if b, ok := t.blocks["tool:"+part.ID]; ok && !b.closed && part.Delta != "" {
			b.sent += len(part.Delta)
			out = append(out, proto.Delta(0, b.part, part.Delta))
		}
	case fantasy.StreamPartTypeToolCall:
		if part.ProviderExecuted {
			break
		}
		key := "tool:" + part.ID
		b, ok := t.blocks[key]
		if !ok {
			out = t.open(out, key, proto.ToolCall{ID: part.ID, Name: part.ToolCallName})
			b = t.blocks[key]
		}
		if b.closed {
			break
		}
		if b.sent == 0 && part.ToolCallInput != "" {
			out = append(out, proto.Delta(0, b.part, part.ToolCallInput))
		}
		out = t.close(out, key)
	case fantasy.StreamPartTypeWarnings:
		t.warnOnce(part.Warnings)
	case fantasy.StreamPartTypeFinish:
		u := proto.Usage{PromptTokens: part.Usage.InputTokens, CompletionTokens: part.Usage.OutputTokens}
		if u != (proto.Usage{}) {
			out = append(out, proto.UsageChunk(u))
		}
		return append(out, proto.End(finishReason(part.FinishReason))), true
	case fantasy.StreamPartTypeToolInputEnd,
		fantasy.StreamPartTypeToolResult,
		fantasy.StreamPartTypeSource,
		fantasy.StreamPartTypeError:
	}
	return out, false
}

func (t *translator) open(out []proto.StreamChunk, key string, content proto.Part) []proto.StreamChunk {
	if _, ok := t.blocks[key]; ok {
		return out
	}
	b := &block{part: t.next}
	t.next++
	t.blocks[key] = b
	return append(out, proto.StartPart(0, b.part, content))
}

func (t *translator) delta(out []proto.StreamChunk, key string, content proto.Part, s string) []proto.StreamChunk {
	out = t.open(out, key, content)
	b := t.blocks[key]
	if b.closed || s == "" {
		return out
	}
	b.sent += len(s)
	return append(out, proto.Delta(0, b.part, s))
}

func (t *translator) close(out []proto.StreamChunk, key string) []proto.StreamChunk {
	b, ok := t.blocks[key]
	if !ok || b.closed {
		return out
	}
	b.closed = true
	return append(out, proto.EndPart(0, b.part))
}

func (t *translator) warnOnce(warnings []fantasy.CallWarning) {
	for _, w := range warnings {
		text := strings.TrimSpace(w.Message)
		if text == "" {
			text = strings.TrimSpace(w.Details)
		}
		if text == "" && w.Setting != "" {
			text = fmt.Sprintf("unsupported setting: %s", w.Setting)
		}
		if text == "" {
			text = "provider warning"
		}
		key := string(w.Type) + ":" + text
		if _, seen := t.warnings[key]; seen {
			continue
		}
		t.warnings[key] = struct{}{}
		if t.warn != nil {
			t.warn(text)
		}
	}
}

func finishReason(r fantasy.FinishReason) proto.FinishReason {
	switch r {
	case fantasy.FinishReasonStop:
		return proto.FinishStop
	case fantasy.FinishReasonLength:
		return proto.FinishLength
	case fantasy.FinishReasonContentFilter:
		return proto.FinishContentFilter
	case fantasy.FinishReasonToolCalls:
		return proto.FinishToolCalls
	case fantasy.FinishReasonError, fantasy.FinishReasonUnknown:
		return proto.FinishUnfinished
	default:
		return proto.FinishStop
	}
}
