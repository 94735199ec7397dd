package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// callOutput renders a tool result as the JSON text handed back to the
// model. Structured content is returned as-is (wrapped under "result" when
// it is not an object); otherwise each content item becomes one entry.
func callOutput(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return `{"status":"success"}`, nil
	}
	if result.IsError {
		return "", errors.New(errorText(result))
	}

	if result.StructuredContent != nil {
		out := result.StructuredContent
		if _, ok := out.(map[string]any); !ok {
			out = map[string]any{"result": out}
		}
		return marshal(out)
	}

	values := make([]any, 0, len(result.Content))
	for _, c := range result.Content {
		if v, ok := contentValue(c); ok {
			values = append(values, v)
		}
	}
	switch len(values) {
	case 0:
		return `{"status":"success"}`, nil
	case 1:
		return marshal(values[0])
	default:
		return marshal(map[string]any{"content": values})
	}
}

func contentValue(c mcp.Content) (any, bool) {
	switch c := c.(type) {
	case mcp.TextContent:
		return map[string]any{"content": c.Text}, true
	case *mcp.TextContent:
		return map[string]any{"content": c.Text}, true
	case mcp.ImageContent:
		return map[string]any{"type": "image", "content": c, "annotations": c.Annotations}, true
	case *mcp.ImageContent:
		return map[string]any{"type": "image", "content": c, "annotations": c.Annotations}, true
	case mcp.EmbeddedResource:
		return map[string]any{"type": "resource", "content": c.Resource, "annotations": c.Annotations}, true
	case *mcp.EmbeddedResource:
		return map[string]any{"type": "resource", "content": c.Resource, "annotations": c.Annotations}, true
	default:
		return nil, false
	}
}

func errorText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch c := c.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	if len(parts) == 0 {
		return "tool reported an error"
	}
	return strings.Join(parts, "\n")
}

func marshal(v any) (string, error) {
	bts, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(bts), nil
}
