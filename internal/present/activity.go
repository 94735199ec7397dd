package present

import (
	"fmt"
	"strings"

	"github.com/dotcommander/unai/internal/proto"
)

const toolPreviewLen = 60

// TextDeltas extracts the assistant text from a sequence of stream chunks,
// skipping reasoning and tool call arguments. Responses after the first are
// separated by a blank line.
type TextDeltas struct {
	kinds   map[[2]int]proto.PartKind
	written bool
	pending bool
}

// Text returns the printable text carried by c, if any.
func (d *TextDeltas) Text(c proto.StreamChunk) string {
	if d.kinds == nil {
		d.kinds = map[[2]int]proto.PartKind{}
	}
	key := [2]int{c.Message, c.Part}
	switch c.Kind {
	case proto.ChunkPartStart:
		d.kinds[key] = c.Content.Kind()
		if t, ok := c.Content.(proto.Text); ok {
			return d.emit(t.Text)
		}
	case proto.ChunkPartDelta:
		if d.kinds[key] == proto.KindText {
			return d.emit(c.Delta)
		}
	case proto.ChunkEnd, proto.ChunkError:
		clear(d.kinds)
		d.pending = d.written
	case proto.ChunkMessageStart, proto.ChunkPartEnd, proto.ChunkUsage:
	}
	return ""
}

func (d *TextDeltas) emit(s string) string {
	if s == "" {
		return ""
	}
	if d.pending {
		d.pending = false
		s = "\n\n" + s
	}
	d.written = true
	return s
}

// ToolLine renders one executed tool call as a single status line.
func ToolLine(s Styles, call proto.ToolCall, result proto.ToolResult) string {
	status := s.ToolOK.Render("ok")
	if result.IsError {
		status = s.ToolFailed.Render("failed")
	}
	return fmt.Sprintf("%s %s %s %s",
		s.Comment.Render("tool"),
		s.ToolName.Render(call.Name),
		status,
		s.Comment.Render(preview(result.Content)),
	)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > toolPreviewLen {
		return string(r[:toolPreviewLen-1]) + "…"
	}
	return s
}
