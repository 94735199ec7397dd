package proto

import (
	"encoding/json"
	"fmt"
)

// PartKind identifies the variant of a Part.
type PartKind string

// Part kinds.
const (
	KindText       PartKind = "text"
	KindImage      PartKind = "image"
	KindFile       PartKind = "file"
	KindToolCall   PartKind = "tool_call"
	KindToolResult PartKind = "tool_result"
	KindReasoning  PartKind = "reasoning"
)

// Part is one typed unit of content within a Message.
//
// The set of implementations is closed: Text, Image, File, ToolCall,
// ToolResult and Reasoning.
type Part interface {
	Kind() PartKind
	// IsFinished reports whether the part can still receive streamed
	// fragments.
	IsFinished() bool
	isPart()
}

// Text is plain model or user text.
type Text struct {
	Text     string
	Finished bool
}

// Image references an image by URL or data URI.
type Image struct {
	Ref      string
	MIMEType string
}

// File is a document attached inline as base64 Data or by URI. Adapters
// prefer Data when both are set.
type File struct {
	Data     string
	MIMEType string
	URI      string
	Name     string
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Finished  bool
}

// ToolResult carries the outcome of a ToolCall back to the model.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Reasoning is model "thinking" output. Adapters that cannot send it back to
// the vendor drop it from outbound requests.
type Reasoning struct {
	Text      string
	Signature string
	Finished  bool
}

func (Text) Kind() PartKind       { return KindText }
func (Image) Kind() PartKind      { return KindImage }
func (File) Kind() PartKind       { return KindFile }
func (ToolCall) Kind() PartKind   { return KindToolCall }
func (ToolResult) Kind() PartKind { return KindToolResult }
func (Reasoning) Kind() PartKind  { return KindReasoning }

func (p Text) IsFinished() bool      { return p.Finished }
func (Image) IsFinished() bool       { return true }
func (File) IsFinished() bool        { return true }
func (p ToolCall) IsFinished() bool  { return p.Finished }
func (ToolResult) IsFinished() bool  { return true }
func (p Reasoning) IsFinished() bool { return p.Finished }

func (Text) isPart()       {}
func (Image) isPart()      {}
func (File) isPart()       {}
func (ToolCall) isPart()   {}
func (ToolResult) isPart() {}
func (Reasoning) isPart()  {}

// Finish returns p marked as complete.
func Finish(p Part) Part {
	switch p := p.(type) {
	case Text:
		p.Finished = true
		return p
	case ToolCall:
		p.Finished = true
		return p
	case Reasoning:
		p.Finished = true
		return p
	default:
		return p
	}
}

type partJSON struct {
	Type      PartKind        `json:"type"`
	Text      string          `json:"text,omitempty"`
	Ref       string          `json:"ref,omitempty"`
	Data      string          `json:"data,omitempty"`
	URI       string          `json:"uri,omitempty"`
	MIMEType  string          `json:"mime_type,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Signature string          `json:"signature,omitempty"`
	Finished  bool            `json:"finished,omitempty"`
}

// MarshalPart encodes a Part with a "type" discriminator.
func MarshalPart(p Part) ([]byte, error) {
	var v partJSON
	switch p := p.(type) {
	case Text:
		v = partJSON{Type: KindText, Text: p.Text, Finished: p.Finished}
	case Image:
		v = partJSON{Type: KindImage, Ref: p.Ref, MIMEType: p.MIMEType}
	case File:
		v = partJSON{Type: KindFile, Data: p.Data, URI: p.URI, MIMEType: p.MIMEType, Name: p.Name}
	case ToolCall:
		v = partJSON{Type: KindToolCall, ID: p.ID, Name: p.Name, Arguments: p.Arguments, Finished: p.Finished}
	case ToolResult:
		v = partJSON{Type: KindToolResult, CallID: p.CallID, Name: p.Name, Content: p.Content, IsError: p.IsError}
	case Reasoning:
		v = partJSON{Type: KindReasoning, Text: p.Text, Signature: p.Signature, Finished: p.Finished}
	default:
		return nil, fmt.Errorf("marshal part: unknown part %T", p)
	}
	return json.Marshal(v)
}

// UnmarshalPart decodes a Part written by MarshalPart.
func UnmarshalPart(data []byte) (Part, error) {
	var v partJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal part: %w", err)
	}
	switch v.Type {
	case KindText:
		return Text{Text: v.Text, Finished: v.Finished}, nil
	case KindImage:
		return Image{Ref: v.Ref, MIMEType: v.MIMEType}, nil
	case KindFile:
		return File{Data: v.Data, MIMEType: v.MIMEType, URI: v.URI, Name: v.Name}, nil
	case KindToolCall:
		return ToolCall{ID: v.ID, Name: v.Name, Arguments: v.Arguments, Finished: v.Finished}, nil
	case KindToolResult:
		return ToolResult{CallID: v.CallID, Name: v.Name, Content: v.Content, IsError: v.IsError}, nil
	case KindReasoning:
		return Reasoning{Text: v.Text, Signature: v.Signature, Finished: v.Finished}, nil
	default:
		return nil, fmt.Errorf("unmarshal part: unknown type %q", v.Type)
	}
}
