package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/tools"
)

type fakePeer struct {
	tools     []mcp.Tool
	resources []mcp.Resource
	prompts   []mcp.Prompt
	result    *mcp.CallToolResult
	callErr   error

	lastCall   mcp.CallToolRequest
	lastRead   string
	lastPrompt mcp.GetPromptRequest
	closed     bool
}

func (p *fakePeer) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: p.tools}, nil
}

func (p *fakePeer) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p.lastCall = req
	return p.result, p.callErr
}

func (p *fakePeer) ListResources(context.Context, mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
	return &mcp.ListResourcesResult{Resources: p.resources}, nil
}

func (p *fakePeer) ReadResource(_ context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	p.lastRead = req.Params.URI
	return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{
		mcp.TextResourceContents{URI: req.Params.URI, Text: "contents of " + req.Params.URI},
	}}, nil
}

func (p *fakePeer) ListPrompts(context.Context, mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
	return &mcp.ListPromptsResult{Prompts: p.prompts}, nil
}

func (p *fakePeer) GetPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	p.lastPrompt = req
	return &mcp.GetPromptResult{Description: req.Params.Name}, nil
}

func (p *fakePeer) Close() error {
	p.closed = true
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

func TestBridgeRegister(t *testing.T) {
	peer := &fakePeer{
		tools: []mcp.Tool{
			{
				Name:        "search",
				Description: "search docs",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]any{"query": map[string]any{"type": "string"}},
					Required:   []string{"query"},
				},
			},
			{Name: "raw", RawInputSchema: json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer"}}}`)},
			{Name: "bare"},
		},
		result: textResult("found it"),
	}
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, NewBridge("docs", peer).Register(context.Background(), reg))
	require.Equal(t, 3, reg.Len())

	def, ok := reg.Lookup("docs_search")
	require.True(t, ok)
	require.Equal(t, "search docs", def.Description)
	require.JSONEq(t, `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`, string(def.Schema))

	raw, ok := reg.Lookup("docs_raw")
	require.True(t, ok)
	require.JSONEq(t, `{"type":"object","properties":{"n":{"type":"integer"}}}`, string(raw.Schema))

	bare, ok := reg.Lookup("docs_bare")
	require.True(t, ok)
	require.JSONEq(t, `{"type":"object","properties":{}}`, string(bare.Schema))

	res := reg.Execute(context.Background(), proto.ToolCall{
		ID: "c1", Name: "docs_search", Arguments: json.RawMessage(`{"query":"agents"}`), Finished: true,
	})
	require.False(t, res.IsError)
	require.JSONEq(t, `{"content":"found it"}`, res.Content)
	require.Equal(t, "search", peer.lastCall.Params.Name)
	require.Equal(t, map[string]any{"query": "agents"}, peer.lastCall.Params.Arguments)

	t.Run("duplicate registration", func(t *testing.T) {
		require.Error(t, NewBridge("docs", peer).Register(context.Background(), reg))
	})
}

func TestBridgeCallFailures(t *testing.T) {
	tests := map[string]struct {
		peer *fakePeer
		args string
		want string
	}{
		"transport error": {
			peer: &fakePeer{callErr: errors.New("broken pipe")},
			want: "broken pipe",
		},
		"tool error result": {
			peer: &fakePeer{result: &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "no such file"}}}},
			want: "no such file",
		},
		"invalid arguments": {
			peer: &fakePeer{result: textResult("unused")},
			args: `[1,2]`,
			want: "arguments for read",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewBridge("fs", tc.peer).Call(context.Background(), "read", json.RawMessage(tc.args))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestCallOutput(t *testing.T) {
	tests := map[string]struct {
		result *mcp.CallToolResult
		want   string
	}{
		"empty": {
			result: &mcp.CallToolResult{},
			want:   `{"status":"success"}`,
		},
		"structured object wins": {
			result: &mcp.CallToolResult{
				StructuredContent: map[string]any{"sum": 4},
				Content:           []mcp.Content{mcp.TextContent{Type: "text", Text: "ignored"}},
			},
			want: `{"sum":4}`,
		},
		"structured scalar is wrapped": {
			result: &mcp.CallToolResult{StructuredContent: 4},
			want:   `{"result":4}`,
		},
		"single text": {
			result: textResult("hello"),
			want:   `{"content":"hello"}`,
		},
		"several items": {
			result: &mcp.CallToolResult{Content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: "a"},
				mcp.TextContent{Type: "text", Text: "b"},
			}},
			want: `{"content":[{"content":"a"},{"content":"b"}]}`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := callOutput(tc.result)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, out)
		})
	}

	t.Run("image", func(t *testing.T) {
		out, err := callOutput(&mcp.CallToolResult{Content: []mcp.Content{
			mcp.ImageContent{Type: "image", Data: "aGk=", MIMEType: "image/png"},
		}})
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Equal(t, "image", got["type"])
		content, ok := got["content"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "image/png", content["mimeType"])
	})
}

func newTestService(t *testing.T, servers map[string]*fakePeer, disable ...string) *Service {
	t.Helper()
	cfg := &config.Config{Settings: config.Settings{
		MCPServers: map[string]config.MCPServerConfig{},
		MCPDisable: disable,
		MCPTimeout: time.Second,
	}}
	for name := range servers {
		cfg.MCPServers[name] = config.MCPServerConfig{Command: name}
	}
	svc := New(cfg)
	svc.SetDialer(func(_ context.Context, _ *config.Config, server config.MCPServerConfig) (Peer, error) {
		return servers[server.Command], nil
	})
	return svc
}

func TestServiceEnabledServers(t *testing.T) {
	svc := newTestService(t, map[string]*fakePeer{"a": {}, "b": {}, "c": {}}, "b")
	var names []string
	for name := range svc.EnabledServers() {
		names = append(names, name)
	}
	require.Equal(t, []string{"a", "c"}, names)

	all := newTestService(t, map[string]*fakePeer{"a": {}}, "*")
	require.False(t, all.IsEnabled("a"))
}

func TestServiceRegisterAndRoute(t *testing.T) {
	docs := &fakePeer{
		tools:     []mcp.Tool{{Name: "search"}},
		resources: []mcp.Resource{{URI: "docs://readme", Name: "readme"}},
		prompts:   []mcp.Prompt{{Name: "summarize"}},
		result:    textResult("ok"),
	}
	fs := &fakePeer{
		tools:     []mcp.Tool{{Name: "read"}, {Name: "write"}},
		resources: []mcp.Resource{{URI: "file:///tmp/a", Name: "a"}},
		prompts:   []mcp.Prompt{{Name: "review"}},
	}
	skipped := &fakePeer{tools: []mcp.Tool{{Name: "x"}}}
	svc := newTestService(t, map[string]*fakePeer{"docs": docs, "fs": fs, "off": skipped}, "off")
	ctx := context.Background()

	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, svc.Register(ctx, reg))
	require.Equal(t, 3, reg.Len())
	_, ok := reg.Lookup("off_x")
	require.False(t, ok)
	require.Len(t, svc.Bridges(), 2)

	resources, err := svc.Resources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 2)
	require.Equal(t, "docs", resources[0].Server)
	require.Equal(t, "fs", resources[1].Server)

	read, err := svc.ReadResource(ctx, "file:///tmp/a")
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	require.Equal(t, "file:///tmp/a", fs.lastRead)
	require.Empty(t, docs.lastRead)

	_, err = svc.ReadResource(ctx, "file:///missing")
	require.ErrorIs(t, err, ErrNotFound)

	prompts, err := svc.Prompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	got, err := svc.GetPrompt(ctx, "review", map[string]string{"lang": "go"})
	require.NoError(t, err)
	require.Equal(t, "review", got.Description)
	require.Equal(t, map[string]string{"lang": "go"}, fs.lastPrompt.Params.Arguments)

	_, err = svc.GetPrompt(ctx, "missing", nil)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Close())
	require.True(t, docs.closed)
	require.True(t, fs.closed)
	require.False(t, skipped.closed)
	require.Empty(t, svc.Bridges())
}

func TestServiceConnectFailure(t *testing.T) {
	good := &fakePeer{}
	cfg := &config.Config{Settings: config.Settings{
		MCPServers: map[string]config.MCPServerConfig{
			"good": {Command: "good"},
			"bad":  {Command: "bad"},
		},
		MCPTimeout: time.Second,
	}}
	svc := New(cfg)
	svc.SetDialer(func(_ context.Context, _ *config.Config, server config.MCPServerConfig) (Peer, error) {
		if server.Command == "bad" {
			return nil, errors.New("exec: not found")
		}
		return good, nil
	})

	err := svc.Connect(context.Background())
	require.ErrorContains(t, err, "exec: not found")
	require.Empty(t, svc.Bridges())
}

func TestServiceConnectTimeout(t *testing.T) {
	cfg := &config.Config{Settings: config.Settings{
		MCPServers: map[string]config.MCPServerConfig{"slow": {Command: "slow"}},
		MCPTimeout: 10 * time.Millisecond,
	}}
	svc := New(cfg)
	svc.SetDialer(func(ctx context.Context, _ *config.Config, _ config.MCPServerConfig) (Peer, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	err := svc.Connect(context.Background())
	require.ErrorContains(t, err, `timeout while connecting to "slow"`)
}

func TestDialUnsupportedType(t *testing.T) {
	_, err := dialClient(context.Background(), nil, config.MCPServerConfig{Type: "carrier-pigeon"})
	require.ErrorContains(t, err, "unsupported MCP server type")
}
