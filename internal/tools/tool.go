// Package tools maps tool names to handlers and their declared schemas.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/dotcommander/unai/internal/proto"
)

// Handler executes a tool call with its raw JSON arguments and returns the
// result content sent back to the model.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Definition is a registered tool.
type Definition struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Handler     Handler
}

// Spec returns the provider-facing description of d.
func (d Definition) Spec() proto.ToolSpec {
	return proto.ToolSpec{Name: d.Name, Description: d.Description, Schema: d.Schema}
}

var emptyObject = json.RawMessage(`{"type":"object","properties":{}}`)

// New builds a tool definition from plain data and a function. A nil schema
// declares a tool without parameters.
func New(name, description string, schema json.RawMessage, handler Handler) Definition {
	if len(schema) == 0 {
		schema = emptyObject
	}
	return Definition{Name: name, Description: description, Schema: schema, Handler: handler}
}

// NewTyped builds a tool whose arguments decode into T. The schema is
// reflected from T's json tags; the result is sent as-is when it is a string
// and JSON-encoded otherwise.
func NewTyped[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) Definition {
	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
		}
		out, err := fn(ctx, args)
		if err != nil {
			return "", err
		}
		return Format(out)
	}
	return New(name, description, SchemaFor[T](), handler)
}

// SchemaFor reflects a JSON schema for T.
func SchemaFor[T any]() json.RawMessage {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(T))
	s.Version = ""
	bts, err := json.Marshal(s)
	if err != nil {
		return emptyObject
	}
	return bts
}

// Format renders a handler result as tool result content.
func Format(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	bts, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(bts), nil
}
