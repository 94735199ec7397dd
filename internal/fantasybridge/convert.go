package fantasybridge

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"charm.land/fantasy"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"

	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/provider"
)

func toFantasyPrompt(conv proto.Context) (fantasy.Prompt, error) {
	prompt := make(fantasy.Prompt, 0, conv.Len())
	for i, msg := range conv.Messages() {
		var (
			role  fantasy.MessageRole
			parts []fantasy.MessagePart
		)
		switch msg.Role {
		case proto.RoleSystem:
			role = fantasy.MessageRoleSystem
		case proto.RoleUser:
			role = fantasy.MessageRoleUser
		case proto.RoleAssistant:
			role = fantasy.MessageRoleAssistant
		case proto.RoleTool:
			role = fantasy.MessageRoleTool
		default:
			return nil, fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}

		for _, p := range msg.Parts {
			switch p := p.(type) {
			case proto.Text:
				if p.Text != "" {
					parts = append(parts, fantasy.TextPart{Text: p.Text})
				}
			case proto.Image:
				file, err := imagePart(p)
				if err != nil {
					return nil, fmt.Errorf("message %d: %w", i, err)
				}
				parts = append(parts, file)
			case proto.File:
				file, err := filePart(p)
				if err != nil {
					return nil, fmt.Errorf("message %d: %w", i, err)
				}
				parts = append(parts, file)
			case proto.ToolCall:
				input := string(p.Arguments)
				if input == "" {
					input = "{}"
				}
				parts = append(parts, fantasy.ToolCallPart{ToolCallID: p.ID, ToolName: p.Name, Input: input})
			case proto.ToolResult:
				var output fantasy.ToolResultOutputContent = fantasy.ToolResultOutputContentText{Text: p.Content}
				if p.IsError {
					output = fantasy.ToolResultOutputContentError{Error: errors.New(p.Content)}
				}
				parts = append(parts, fantasy.ToolResultPart{ToolCallID: p.CallID, Output: output})
			case proto.Reasoning:
				// Reasoning is not replayed.
			}
		}
		if len(parts) > 0 {
			prompt = append(prompt, fantasy.Message{Role: role, Content: parts})
		}
	}
	return prompt, nil
}

// imagePart converts a data URI image. Remote references cannot be sent
// through fantasy file parts.
func imagePart(img proto.Image) (fantasy.FilePart, error) {
	rest, ok := strings.CutPrefix(img.Ref, "data:")
	if !ok {
		return fantasy.FilePart{}, fmt.Errorf("image %q: only data URIs are supported", img.Ref)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return fantasy.FilePart{}, fmt.Errorf("image: malformed data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fantasy.FilePart{}, fmt.Errorf("image: %w", err)
	}
	mediaType := strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = img.MIMEType
	}
	return fantasy.FilePart{Data: data, MediaType: mediaType}, nil
}

// filePart converts an inline file. URI-only files are accepted when the URI
// is a data URI.
func filePart(f proto.File) (fantasy.FilePart, error) {
	if f.Data == "" {
		img, err := imagePart(proto.Image{Ref: f.URI, MIMEType: f.MIMEType})
		if err != nil {
			return fantasy.FilePart{}, fmt.Errorf("file %s: %w", f.Name, err)
		}
		img.Filename = f.Name
		return img, nil
	}
	data, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return fantasy.FilePart{}, fmt.Errorf("file %s: %w", f.Name, err)
	}
	return fantasy.FilePart{Filename: f.Name, Data: data, MediaType: f.MIMEType}, nil
}

func toFantasyTools(specs []proto.ToolSpec) ([]fantasy.Tool, error) {
	tools := make([]fantasy.Tool, 0, len(specs))
	for _, spec := range specs {
		schema := map[string]any{"type": "object", "properties": map[string]any{}}
		if len(spec.Schema) > 0 {
			if err := json.Unmarshal(spec.Schema, &schema); err != nil {
				return nil, fmt.Errorf("tool %q: invalid schema: %w", spec.Name, err)
			}
		}
		tools = append(tools, fantasy.FunctionTool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

func buildCall(api string, opts provider.Options, prompt fantasy.Prompt, tools []fantasy.Tool) fantasy.Call {
	call := fantasy.Call{
		Prompt:          prompt,
		MaxOutputTokens: opts.MaxTokens,
		Temperature:     opts.Temperature,
		TopP:            opts.TopP,
		TopK:            opts.TopK,
		Tools:           tools,
		ProviderOptions: fantasy.ProviderOptions{},
	}
	if len(tools) > 0 {
		choice := fantasy.ToolChoiceAuto
		call.ToolChoice = &choice
	}
	applyProviderOptions(&call, providerAPI(api), opts)
	return call
}

func applyProviderOptions(call *fantasy.Call, api string, opts provider.Options) {
	if opts.User != "" {
		user := opts.User
		switch api {
		case apiOpenAI, apiAzure:
			call.ProviderOptions[fopenai.Name] = &fopenai.ProviderOptions{User: &user}
		case apiAnthropic, apiGoogle, apiOpenRouter, apiVercel, apiBedrock:
		default:
			call.ProviderOptions[fopenaicompat.Name] = &fopenaicompat.ProviderOptions{User: &user}
		}
	}

	if api == apiGoogle && opts.ThinkingBudget > 0 {
		call.ProviderOptions[fgoogle.Name] = &fgoogle.ProviderOptions{
			ThinkingConfig: &fgoogle.ThinkingConfig{
				ThinkingBudget: fantasy.Opt(int64(opts.ThinkingBudget)),
			},
		}
	}
}
