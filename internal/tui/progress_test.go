package tui

import (
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/agent"
	"github.com/dotcommander/unai/internal/proto"
)

func newTestProgress(quiet bool) *Progress {
	return NewProgress(lipgloss.NewRenderer(io.Discard), 80, "", quiet)
}

func feed(m *Progress, msgs ...tea.Msg) {
	for _, msg := range msgs {
		_, _ = m.Update(msg)
	}
}

func TestProgressCollectsText(t *testing.T) {
	m := newTestProgress(true)
	feed(m,
		StateMsg{From: agent.Requesting, To: agent.Streaming},
		ChunkMsg{proto.StartMessage(0, proto.RoleAssistant)},
		ChunkMsg{proto.StartPart(0, 0, proto.Reasoning{})},
		ChunkMsg{proto.Delta(0, 0, "hidden")},
		ChunkMsg{proto.StartPart(0, 1, proto.Text{})},
		ChunkMsg{proto.Delta(0, 1, "# Title")},
	)
	require.Equal(t, "# Title", m.Output())

	feed(m, tea.WindowSizeMsg{Width: 80, Height: 40}, renderOutputMsg{})
	require.Contains(t, m.View(), "Title")
	require.NotContains(t, m.View(), "hidden")
}

func TestProgressStatus(t *testing.T) {
	tests := map[string]struct {
		label string
		state agent.State
		want  string
	}{
		"requesting":       {state: agent.Requesting, want: "Generating..."},
		"executing tools":  {state: agent.ExecutingTools, want: "Running tools..."},
		"custom label":     {label: "Pondering", state: agent.Streaming, want: "Pondering"},
		"tools beat label": {label: "Pondering", state: agent.ExecutingTools, want: "Running tools..."},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m := NewProgress(lipgloss.NewRenderer(io.Discard), 80, tc.label, false)
			feed(m, StateMsg{To: tc.state})
			require.Contains(t, m.View(), tc.want)
		})
	}
}

func TestProgressQuiet(t *testing.T) {
	m := newTestProgress(true)
	require.Nil(t, m.Init())
	feed(m, StateMsg{To: agent.Requesting})
	require.Empty(t, m.View())

	_, cmd := m.Update(ToolMsg{Call: proto.ToolCall{Name: "add"}, Result: proto.ToolResult{Content: "4"}})
	require.Nil(t, cmd)
}

func TestProgressDone(t *testing.T) {
	m := newTestProgress(false)
	_, cmd := m.Update(DoneMsg{})
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
	require.Empty(t, m.View())
}
