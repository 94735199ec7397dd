package proto

import (
	"encoding/json"
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/require"
)

func addConversation() Context {
	return NewContext(
		SystemText("be brief"),
		UserText("2+2?"),
		NewMessage(RoleAssistant, ToolCall{
			ID:        "call_1",
			Name:      "add",
			Arguments: json.RawMessage(`{"a":2,"b":2}`),
			Finished:  true,
		}),
		ToolResults(ToolResult{CallID: "call_1", Name: "add", Content: "4"}),
		AssistantText("4"),
	)
}

func TestContextJSON(t *testing.T) {
	bts, err := json.MarshalIndent(addConversation(), "", "  ")
	require.NoError(t, err)
	golden.RequireEqual(t, bts)

	compact, err := json.Marshal(addConversation())
	require.NoError(t, err)
	var decoded Context
	require.NoError(t, json.Unmarshal(compact, &decoded))
	require.Equal(t, addConversation().Messages(), decoded.Messages())
}

func TestAttachmentsJSON(t *testing.T) {
	conv := NewContext(NewMessage(RoleUser,
		File{Data: "c2VjcmV0", MIMEType: "text/plain", Name: "notes.txt"},
		File{URI: "https://example.com/report.pdf", MIMEType: "application/pdf"},
		Image{Ref: "data:image/png;base64,AAAA", MIMEType: "image/png"},
		Text{Text: "What is the password?", Finished: true},
	))
	bts, err := json.MarshalIndent(conv, "", "  ")
	require.NoError(t, err)
	golden.RequireEqual(t, bts)

	var decoded Context
	require.NoError(t, json.Unmarshal(bts, &decoded))
	require.Equal(t, conv.Messages(), decoded.Messages())

	out := conv.String()
	require.Contains(t, out, "`notes.txt` (attached)")
	require.Contains(t, out, "[application/pdf](https://example.com/report.pdf)")
}

func TestContextAppendDoesNotAlias(t *testing.T) {
	base := NewContext(UserText("one"))
	left := base.Append(AssistantText("left"))
	right := base.Append(AssistantText("right"))

	require.Equal(t, 1, base.Len())
	require.Equal(t, "left", left.At(1).Text())
	require.Equal(t, "right", right.At(1).Text())
}

func TestContextPending(t *testing.T) {
	call := func(id string) ToolCall {
		return ToolCall{ID: id, Name: "echo", Arguments: json.RawMessage(`{}`), Finished: true}
	}

	tests := map[string]struct {
		ctx     Context
		pending []string
		valid   bool
	}{
		"no tools": {
			ctx:   NewContext(UserText("hi"), AssistantText("hello")),
			valid: true,
		},
		"answered": {
			ctx:   addConversation(),
			valid: true,
		},
		"unanswered": {
			ctx: NewContext(
				UserText("hi"),
				NewMessage(RoleAssistant, call("a"), call("b")),
				ToolResults(ToolResult{CallID: "a", Content: "ok"}),
			),
			pending: []string{"b"},
		},
		"orphan result": {
			ctx: NewContext(ToolResults(ToolResult{CallID: "x"})),
		},
		"id reused in a later turn": {
			ctx: NewContext(
				UserText("hi"),
				NewMessage(RoleAssistant, call("call_0")),
				ToolResults(ToolResult{CallID: "call_0", Content: "one"}),
				NewMessage(RoleAssistant, call("call_0")),
				ToolResults(ToolResult{CallID: "call_0", Content: "two"}),
				AssistantText("done"),
			),
			valid: true,
		},
		"reused id still pending": {
			ctx: NewContext(
				UserText("hi"),
				NewMessage(RoleAssistant, call("call_0")),
				ToolResults(ToolResult{CallID: "call_0", Content: "one"}),
				NewMessage(RoleAssistant, call("call_0")),
			),
			pending: []string{"call_0"},
		},
		"duplicate id in one turn": {
			ctx: NewContext(
				NewMessage(RoleAssistant, call("a"), call("a")),
				ToolResults(ToolResult{CallID: "a"}),
			),
		},
		"result for an earlier turn": {
			ctx: NewContext(
				NewMessage(RoleAssistant, call("a")),
				ToolResults(ToolResult{CallID: "a"}),
				NewMessage(RoleAssistant, call("b")),
				ToolResults(ToolResult{CallID: "b"}, ToolResult{CallID: "a"}),
			),
		},
		"calls split over assistant messages": {
			ctx: NewContext(
				NewMessage(RoleAssistant, Text{Text: "let me check", Finished: true}),
				NewMessage(RoleAssistant, call("a")),
				ToolResults(ToolResult{CallID: "a"}),
			),
			valid: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var ids []string
			for _, c := range tc.ctx.Pending() {
				ids = append(ids, c.ID)
			}
			require.Equal(t, tc.pending, ids)
			if tc.valid {
				require.NoError(t, tc.ctx.Validate())
			} else {
				require.Error(t, tc.ctx.Validate())
			}
		})
	}
}

func TestChunkJSON(t *testing.T) {
	in := StartPart(0, 1, ToolCall{ID: "c", Name: "add"})
	bts, err := json.Marshal(in)
	require.NoError(t, err)

	var out StreamChunk
	require.NoError(t, json.Unmarshal(bts, &out))
	require.Equal(t, in, out)

	bts, err = json.Marshal(ErrorChunk(ErrEmptyResponse))
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"error","message":0,"part":0,"error":"response has no messages"}`, string(bts))
}

func TestContextString(t *testing.T) {
	out := addConversation().String()
	require.Contains(t, out, "**Prompt**: 2+2?")
	require.Contains(t, out, "> Ran: `add`")
	require.Contains(t, out, "**Assistant**: 4")
}

func TestFinish(t *testing.T) {
	require.True(t, Finish(Text{Text: "x"}).IsFinished())
	require.True(t, Finish(ToolCall{ID: "x"}).IsFinished())
	require.True(t, Finish(Reasoning{}).IsFinished())
	require.Equal(t, Image{Ref: "u"}, Finish(Image{Ref: "u"}))
	require.True(t, Finish(File{Data: "eA=="}).IsFinished())
}

func TestContextWithSystem(t *testing.T) {
	c := NewContext(UserText("hi"))
	require.Equal(t, c, c.WithSystem(""))

	withSys := c.WithSystem("be brief")
	require.Equal(t, 2, withSys.Len())
	require.Equal(t, RoleSystem, withSys.At(0).Role)
	require.Equal(t, "be brief", withSys.At(0).Text())
	require.Equal(t, 1, c.Len())

	require.Equal(t, withSys, withSys.WithSystem("ignored"))
}
