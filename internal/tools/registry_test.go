package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
)

type addArgs struct {
	A int `json:"a" jsonschema:"description=first addend"`
	B int `json:"b"`
}

func addTool() Definition {
	return NewTyped("add", "Adds two integers", func(_ context.Context, args addArgs) (any, error) {
		return args.A + args.B, nil
	})
}

func call(name, args string) proto.ToolCall {
	return proto.ToolCall{ID: "call_" + name, Name: name, Arguments: json.RawMessage(args), Finished: true}
}

func TestRegister(t *testing.T) {
	r, err := NewRegistry(addTool())
	require.NoError(t, err)

	err = r.Register(addTool())
	var dup *errs.DuplicateToolError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "add", dup.Name)
	require.Equal(t, errs.KindDuplicateTool, errs.KindOf(err))

	require.Error(t, r.Register(Definition{Name: "", Handler: func(context.Context, json.RawMessage) (string, error) { return "", nil }}))
	require.Error(t, r.Register(Definition{Name: "nil"}))
	require.Equal(t, 1, r.Len())

	_, err = NewRegistry(addTool(), addTool())
	require.ErrorIs(t, err, errs.ErrDuplicateTool)
}

func TestZeroRegistry(t *testing.T) {
	var r Registry
	require.Empty(t, r.Specs())
	require.True(t, r.Execute(context.Background(), call("add", `{}`)).IsError)

	require.NoError(t, r.Register(addTool()))
	require.Equal(t, 1, r.Len())
	require.Equal(t, "3", r.Execute(context.Background(), call("add", `{"a":1,"b":2}`)).Content)

	failing := New("fail", "", nil, func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("nope")
	})
	require.NoError(t, r.Register(failing))
	require.True(t, r.Execute(context.Background(), call("fail", `{}`)).IsError)
}

func TestLookupAndSpecs(t *testing.T) {
	echo := New("echo", "Echoes input", nil, func(_ context.Context, args json.RawMessage) (string, error) {
		return string(args), nil
	})
	r, err := NewRegistry(echo, addTool())
	require.NoError(t, err)

	def, ok := r.Lookup("echo")
	require.True(t, ok)
	require.JSONEq(t, `{"type":"object","properties":{}}`, string(def.Schema))

	_, ok = r.Lookup("missing")
	require.False(t, ok)

	specs := r.Specs()
	require.Len(t, specs, 2)
	require.Equal(t, "echo", specs[0].Name)
	require.Equal(t, "add", specs[1].Name)
	require.Equal(t, "Adds two integers", specs[1].Description)
}

func TestSchemaFor(t *testing.T) {
	var schema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(SchemaFor[addArgs](), &schema))
	require.Equal(t, "object", schema.Type)
	require.Equal(t, "integer", schema.Properties["a"]["type"])
	require.Equal(t, "first addend", schema.Properties["a"]["description"])
	require.ElementsMatch(t, []string{"a", "b"}, schema.Required)
}

func TestExecute(t *testing.T) {
	failing := New("fail", "", nil, func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("disk on fire")
	})
	panicking := New("panic", "", nil, func(context.Context, json.RawMessage) (string, error) {
		panic("unreachable")
	})
	r, err := NewRegistry(addTool(), failing, panicking)
	require.NoError(t, err)

	tests := map[string]struct {
		call    proto.ToolCall
		content string
		isError bool
	}{
		"success": {
			call:    call("add", `{"a":2,"b":2}`),
			content: "4",
		},
		"handler error": {
			call:    call("fail", `{}`),
			content: "Error: disk on fire",
			isError: true,
		},
		"panic": {
			call:    call("panic", `{}`),
			content: "Error: panic: unreachable",
			isError: true,
		},
		"bad arguments": {
			call:    call("add", `{"a":"two"}`),
			isError: true,
		},
		"unknown tool": {
			call:    call("nope", `{}`),
			content: "Error: unknown tool: nope",
			isError: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			res := r.Execute(context.Background(), tc.call)
			require.Equal(t, tc.call.ID, res.CallID)
			require.Equal(t, tc.call.Name, res.Name)
			require.Equal(t, tc.isError, res.IsError)
			if tc.content != "" {
				require.Equal(t, tc.content, res.Content)
			}
		})
	}
}

func TestExecuteCancelled(t *testing.T) {
	r, err := NewRegistry(addTool())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Execute(ctx, call("add", `{"a":1,"b":1}`))
	require.True(t, res.IsError)
	require.Equal(t, "Error: context canceled", res.Content)
}

func TestExecuteConcurrent(t *testing.T) {
	r, err := NewRegistry(addTool())
	require.NoError(t, err)

	results := make([]proto.ToolResult, 32)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Execute(context.Background(), call("add", `{"a":20,"b":22}`))
		}()
	}
	wg.Wait()
	for _, res := range results {
		require.Equal(t, "42", res.Content)
	}
}

func TestFormat(t *testing.T) {
	tests := map[string]struct {
		in  any
		out string
	}{
		"nil":    {nil, ""},
		"string": {"plain", "plain"},
		"bytes":  {[]byte("raw"), "raw"},
		"map":    {map[string]int{"sum": 4}, `{"sum":4}`},
		"number": {4, "4"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := Format(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.out, out)
		})
	}
}
