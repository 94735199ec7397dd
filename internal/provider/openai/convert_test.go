package openai

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/proto"
)

func TestToWireMessages(t *testing.T) {
	conv := proto.NewContext(
		proto.SystemText("sys"),
		proto.NewMessage(proto.RoleUser,
			proto.Text{Text: "what is this?", Finished: true},
			proto.Image{Ref: "data:image/png;base64,AAAA", MIMEType: "image/png"},
		),
		proto.NewMessage(proto.RoleAssistant,
			proto.Reasoning{Text: "hidden", Finished: true},
			proto.ToolCall{ID: "c1", Name: "look", Finished: true},
			proto.ToolCall{ID: "c2", Name: "add", Arguments: json.RawMessage(`{"a":1}`), Finished: true},
		),
		proto.ToolResults(
			proto.ToolResult{CallID: "c1", Name: "look", Content: "a cat"},
			proto.ToolResult{CallID: "c2", Name: "add", Content: "Error: missing b", IsError: true},
		),
		proto.AssistantText("A cat."),
	)

	msgs := toWireMessages(conv)
	require.Len(t, msgs, 6)

	require.Equal(t, wireMessage{Role: "system", Content: "sys"}, msgs[0])

	parts, ok := msgs[1].Content.([]wireContentPart)
	require.True(t, ok)
	require.Equal(t, []wireContentPart{
		{Type: "text", Text: "what is this?"},
		{Type: "image_url", ImageURL: &wireImageURL{URL: "data:image/png;base64,AAAA"}},
	}, parts)

	require.Nil(t, msgs[2].Content)
	require.Equal(t, []wireToolCall{
		{ID: "c1", Type: "function", Function: wireFunction{Name: "look", Arguments: "{}"}},
		{ID: "c2", Type: "function", Function: wireFunction{Name: "add", Arguments: `{"a":1}`}},
	}, msgs[2].ToolCalls)

	require.Equal(t, wireMessage{Role: "tool", ToolCallID: "c1", Content: "a cat"}, msgs[3])
	require.Equal(t, wireMessage{Role: "tool", ToolCallID: "c2", Content: "Error: missing b"}, msgs[4])
	require.Equal(t, wireMessage{Role: "assistant", Content: "A cat."}, msgs[5])

	bts, err := json.Marshal(msgs[2])
	require.NoError(t, err)
	require.Contains(t, string(bts), `"content":null`)
}

func TestToWireMessagesFiles(t *testing.T) {
	msgs := toWireMessages(proto.NewContext(proto.NewMessage(proto.RoleUser,
		proto.File{Data: "c2VjcmV0", MIMEType: "text/plain", Name: "notes.txt"},
		proto.File{URI: "data:application/pdf;base64,JVBERi0="},
		proto.File{URI: "file-abc123"},
		proto.Text{Text: "summarize", Finished: true},
	)))
	require.Len(t, msgs, 1)

	bts, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	require.JSONEq(t, `{
		"role": "user",
		"content": [
			{"type": "file", "file": {"filename": "notes.txt", "file_data": "data:text/plain;base64,c2VjcmV0"}},
			{"type": "file", "file": {"file_data": "data:application/pdf;base64,JVBERi0="}},
			{"type": "file", "file": {"file_id": "file-abc123"}},
			{"type": "text", "text": "summarize"}
		]
	}`, string(bts))
}

func TestFinishReason(t *testing.T) {
	tests := map[string]proto.FinishReason{
		"":               proto.FinishUnfinished,
		"stop":           proto.FinishStop,
		"length":         proto.FinishLength,
		"content_filter": proto.FinishContentFilter,
		"tool_calls":     proto.FinishToolCalls,
		"function_call":  proto.FinishToolCalls,
		"eos":            proto.FinishStop,
	}
	for in, want := range tests {
		require.Equal(t, want, finishReason(in), in)
	}
}

func TestWireTextArray(t *testing.T) {
	var msg wireReceived
	require.NoError(t, json.Unmarshal([]byte(`{"content":[{"type":"text","text":"a"},{"type":"image_url"},{"type":"text","text":"b"}]}`), &msg))
	require.Equal(t, wireText("ab"), msg.Content)
}

func TestSSEReader(t *testing.T) {
	body := ": keep-alive\n\n" +
		"event: message\r\ndata: {\"a\":1}\r\n\r\n" +
		"data: line one\ndata: line two\n\n" +
		"data: [DONE]"
	r := newSSEReader(strings.NewReader(body))

	var got []string
	for {
		data, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(data))
	}
	require.Equal(t, []string{`{"a":1}`, "line one\nline two", "[DONE]"}, got)
}
