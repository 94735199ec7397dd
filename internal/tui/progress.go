// Package tui renders a running agent on an interactive terminal: a spinner
// while the model is thinking, tool activity as it happens and the answer
// formatted as markdown.
package tui

import (
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/unai/internal/agent"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/proto"
)

const (
	tabWidth       = 4
	renderInterval = 33 * time.Millisecond
)

// StateMsg reports an agent state transition.
type StateMsg struct{ From, To agent.State }

// ChunkMsg carries a streamed chunk.
type ChunkMsg struct{ Chunk proto.StreamChunk }

// ToolMsg reports an executed tool call.
type ToolMsg struct {
	Call   proto.ToolCall
	Result proto.ToolResult
}

// DoneMsg ends the program.
type DoneMsg struct{}

type renderOutputMsg struct{}

// Progress is the Bubble Tea model that follows an agent run. The run itself
// happens elsewhere; its hooks feed the program with the messages above.
type Progress struct {
	Styles present.Styles

	quiet    bool
	label    string
	state    agent.State
	spinner  spinner.Model
	renderer *lipgloss.Renderer
	glam     *glamour.TermRenderer
	viewport viewport.Model
	deltas   present.TextDeltas
	output   strings.Builder

	glamOutput      string
	glamHeight      int
	width, height   int
	dirty           bool
	renderScheduled bool
	done            bool
}

// NewProgress creates the model. label replaces the default status text.
func NewProgress(r *lipgloss.Renderer, wordWrap int, label string, quiet bool) *Progress {
	styles := present.MakeStyles(r)
	gr, _ := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(wordWrap),
	)
	vp := viewport.New(0, 0)
	vp.GotoBottom()
	return &Progress{
		Styles:   styles,
		quiet:    quiet,
		label:    label,
		state:    agent.Idle,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
		renderer: r,
		glam:     gr,
		viewport: vp,
	}
}

// Output returns the raw assistant text received so far.
func (m *Progress) Output() string { return m.output.String() }

// Init implements tea.Model.
func (m *Progress) Init() tea.Cmd {
	if m.quiet {
		return nil
	}
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case StateMsg:
		m.state = msg.To
	case ChunkMsg:
		if s := m.deltas.Text(msg.Chunk); s != "" {
			m.output.WriteString(s)
			m.dirty = true
			if !m.renderScheduled {
				m.renderScheduled = true
				cmds = append(cmds, tea.Tick(renderInterval, func(time.Time) tea.Msg {
					return renderOutputMsg{}
				}))
			}
		}
	case ToolMsg:
		if !m.quiet {
			cmds = append(cmds, tea.Println(present.ToolLine(m.Styles, msg.Call, msg.Result)))
		}
	case renderOutputMsg:
		m.renderScheduled = false
		if m.dirty {
			m.render()
		}
	case DoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = m.width
		m.viewport.Height = m.height
		if m.output.Len() > 0 {
			m.render()
		}
		return m, nil
	case spinner.TickMsg:
		if m.quiet {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	if m.glamHeight > m.height {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Progress) View() string {
	if m.done {
		return ""
	}
	if m.output.Len() > 0 && m.state == agent.Streaming {
		if m.glamHeight > m.height {
			return m.viewport.View()
		}
		return m.glamOutput
	}
	if m.quiet {
		return ""
	}
	return m.spinner.View() + " " + m.Styles.Comment.Render(m.status())
}

func (m *Progress) status() string {
	if m.label != "" && m.state != agent.ExecutingTools {
		return m.label
	}
	switch m.state {
	case agent.ExecutingTools:
		return "Running tools..."
	default:
		return "Generating..."
	}
}

func (m *Progress) render() {
	wasAtBottom := m.viewport.ScrollPercent() == 1.0
	oldHeight := m.glamHeight
	out := m.output.String()
	if m.glam != nil {
		if rendered, err := m.glam.Render(out); err == nil {
			out = rendered
		}
	}
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	out = strings.ReplaceAll(out, "\t", strings.Repeat(" ", tabWidth))
	m.glamHeight = lipgloss.Height(out)
	m.glamOutput = out + "\n"
	if m.width > 0 {
		m.viewport.SetContent(m.renderer.NewStyle().MaxWidth(m.width).Render(m.glamOutput))
	} else {
		m.viewport.SetContent(m.glamOutput)
	}
	if oldHeight < m.glamHeight && wasAtBottom {
		m.viewport.GotoBottom()
	}
	m.dirty = false
}
