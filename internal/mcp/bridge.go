package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/unai/internal/tools"
)

// Separator joins a server name and a remote tool name into the name the
// model sees.
const Separator = "_"

// Bridge exposes one MCP peer's tools as registry definitions and its
// resources and prompts as direct calls.
type Bridge struct {
	name string
	peer Peer
}

// NewBridge wraps peer under the given server name.
func NewBridge(name string, peer Peer) *Bridge {
	return &Bridge{name: name, peer: peer}
}

// Name returns the server name.
func (b *Bridge) Name() string { return b.name }

// Tools lists the peer's tools.
func (b *Bridge) Tools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := b.peer.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", b.name, err)
	}
	return res.Tools, nil
}

// Definitions wraps every remote tool as a definition named
// <server>_<tool> whose handler forwards to the peer.
func (b *Bridge) Definitions(ctx context.Context) ([]tools.Definition, error) {
	remote, err := b.Tools(ctx)
	if err != nil {
		return nil, err
	}
	defs := make([]tools.Definition, 0, len(remote))
	for _, t := range remote {
		schema, err := inputSchema(t)
		if err != nil {
			return nil, fmt.Errorf("schema for %s%s%s: %w", b.name, Separator, t.Name, err)
		}
		defs = append(defs, tools.New(b.name+Separator+t.Name, t.Description, schema, b.handler(t.Name)))
	}
	return defs, nil
}

// Register adds the peer's tools to reg.
func (b *Bridge) Register(ctx context.Context, reg *tools.Registry) error {
	defs, err := b.Definitions(ctx)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) handler(tool string) tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		return b.Call(ctx, tool, args)
	}
}

// Call invokes a remote tool by its unprefixed name.
func (b *Bridge) Call(ctx context.Context, tool string, args json.RawMessage) (string, error) {
	var params map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("arguments for %s: %w", tool, err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = params
	res, err := b.peer.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", tool, b.name, err)
	}
	return callOutput(res)
}

// Resources lists the peer's resources.
func (b *Bridge) Resources(ctx context.Context) ([]mcp.Resource, error) {
	res, err := b.peer.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, fmt.Errorf("list resources on %s: %w", b.name, err)
	}
	return res.Resources, nil
}

// ReadResource reads one resource by URI.
func (b *Bridge) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	res, err := b.peer.ReadResource(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("read %s on %s: %w", uri, b.name, err)
	}
	return res, nil
}

// Prompts lists the peer's prompts.
func (b *Bridge) Prompts(ctx context.Context) ([]mcp.Prompt, error) {
	res, err := b.peer.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list prompts on %s: %w", b.name, err)
	}
	return res.Prompts, nil
}

// GetPrompt renders a prompt with the given arguments.
func (b *Bridge) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := b.peer.GetPrompt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get prompt %s on %s: %w", name, b.name, err)
	}
	return res, nil
}

// Close ends the peer session.
func (b *Bridge) Close() error {
	return b.peer.Close()
}

func inputSchema(t mcp.Tool) (json.RawMessage, error) {
	if len(t.RawInputSchema) > 0 {
		return t.RawInputSchema, nil
	}
	if t.InputSchema.Type == "" {
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	}
	bts, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, err
	}
	return bts, nil
}
