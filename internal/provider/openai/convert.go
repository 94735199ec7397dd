package openai

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
)

func (c *Client) buildRequest(conv proto.Context, tools []proto.ToolSpec, streaming bool) chatRequest {
	opts := c.cfg.Options
	req := chatRequest{
		Model:       opts.Model,
		Messages:    toWireMessages(conv.WithSystem(opts.System)),
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		TopK:        opts.TopK,
		MaxTokens:   opts.MaxTokens,
		User:        opts.User,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, wireTool{
			Type: "function",
			Function: wireFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	if streaming {
		req.Stream = true
		req.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return req
}

func toWireMessages(conv proto.Context) []wireMessage {
	out := make([]wireMessage, 0, conv.Len())
	for _, msg := range conv.Messages() {
		switch msg.Role {
		case proto.RoleSystem:
			out = append(out, wireMessage{Role: "system", Content: msg.Text()})
		case proto.RoleUser:
			out = append(out, wireMessage{Role: "user", Content: userContent(msg)})
		case proto.RoleAssistant:
			out = append(out, assistantMessage(msg))
		case proto.RoleTool:
			for _, p := range msg.Parts {
				if r, ok := p.(proto.ToolResult); ok {
					out = append(out, wireMessage{Role: "tool", ToolCallID: r.CallID, Content: r.Content})
				}
			}
		}
	}
	return out
}

func userContent(msg proto.Message) any {
	hasMedia := slices.ContainsFunc(msg.Parts, func(p proto.Part) bool {
		return p.Kind() == proto.KindImage || p.Kind() == proto.KindFile
	})
	if !hasMedia {
		return msg.Text()
	}
	parts := make([]wireContentPart, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p := p.(type) {
		case proto.Text:
			parts = append(parts, wireContentPart{Type: "text", Text: p.Text})
		case proto.Image:
			parts = append(parts, wireContentPart{Type: "image_url", ImageURL: &wireImageURL{URL: p.Ref}})
		case proto.File:
			parts = append(parts, wireContentPart{Type: "file", File: wireFileFrom(p)})
		}
	}
	return parts
}

// wireFileFrom sends inline data as a data URI. A URI that is not a data URI
// names a file uploaded to the vendor beforehand.
func wireFileFrom(f proto.File) *wireFile {
	out := &wireFile{Filename: f.Name}
	switch {
	case f.Data != "":
		out.FileData = "data:" + f.MIMEType + ";base64," + f.Data
	case strings.HasPrefix(f.URI, "data:"):
		out.FileData = f.URI
	default:
		out.FileID = f.URI
	}
	return out
}

func assistantMessage(msg proto.Message) wireMessage {
	out := wireMessage{Role: "assistant"}
	var text strings.Builder
	for _, p := range msg.Parts {
		switch p := p.(type) {
		case proto.Text:
			text.WriteString(p.Text)
		case proto.ToolCall:
			args := string(p.Arguments)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, wireToolCall{
				ID:       p.ID,
				Type:     "function",
				Function: wireFunction{Name: p.Name, Arguments: args},
			})
		}
	}
	if text.Len() > 0 || len(out.ToolCalls) == 0 {
		out.Content = text.String()
	}
	return out
}

func (c *Client) fromWireResponse(resp chatResponse) (proto.Response, error) {
	if len(resp.Choices) == 0 {
		return proto.Response{}, errs.NewProviderError(c.name, errs.ErrProtocol, fmt.Errorf("response has no choices"))
	}
	choices := slices.Clone(resp.Choices)
	slices.SortStableFunc(choices, func(a, b wireChoice) int { return a.Index - b.Index })

	out := proto.Response{FinishReason: finishReason(choices[0].FinishReason)}
	for _, ch := range choices {
		msg := proto.Message{Role: proto.RoleAssistant}
		if ch.Message.ReasoningContent != "" {
			msg.Parts = append(msg.Parts, proto.Reasoning{Text: ch.Message.ReasoningContent, Finished: true})
		}
		if ch.Message.Content != "" || len(ch.Message.ToolCalls) == 0 {
			msg.Parts = append(msg.Parts, proto.Text{Text: string(ch.Message.Content), Finished: true})
		}
		for _, tc := range ch.Message.ToolCalls {
			call := proto.ToolCall{ID: tc.ID, Name: tc.Function.Name, Finished: true}
			if call.ID == "" {
				call.ID = newCallID()
			}
			if tc.Function.Arguments != "" {
				if !json.Valid([]byte(tc.Function.Arguments)) {
					return proto.Response{}, errs.NewProviderError(c.name, errs.ErrProtocol,
						fmt.Errorf("tool call %q has invalid arguments", tc.Function.Name))
				}
				call.Arguments = json.RawMessage(tc.Function.Arguments)
			}
			msg.Parts = append(msg.Parts, call)
		}
		out.Messages = append(out.Messages, msg)
	}
	if resp.Usage != nil {
		out.Usage = proto.Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	}
	return out, nil
}

func finishReason(s string) proto.FinishReason {
	switch s {
	case "":
		return proto.FinishUnfinished
	case "length":
		return proto.FinishLength
	case "content_filter":
		return proto.FinishContentFilter
	case "tool_calls", "function_call":
		return proto.FinishToolCalls
	default:
		return proto.FinishStop
	}
}

func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
