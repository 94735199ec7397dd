package cmd

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dotcommander/unai/internal/agent"
	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/tui"
)

// output prints a run. On a terminal it drives the progress view on stderr
// and prints the rendered answer when the run ends. Otherwise streamed text
// goes straight to stdout.
type output struct {
	cfg    *config.Config
	echo   string
	stdout io.Writer
	stderr io.Writer

	deltas  present.TextDeltas
	printed bool

	program *tea.Program
	done    chan error
}

func newOutput(cfg *config.Config, echo string) *output {
	o := &output{cfg: cfg, echo: echo, stdout: os.Stdout, stderr: os.Stderr}
	if cfg.Raw || !present.IsOutputTTY() {
		return o
	}
	m := tui.NewProgress(present.StderrRenderer(), cfg.WordWrap, "", cfg.Quiet)
	o.program = tea.NewProgram(m,
		tea.WithOutput(os.Stderr),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	o.done = make(chan error, 1)
	go func() {
		_, err := o.program.Run()
		o.done <- err
	}()
	return o
}

func (o *output) options() []agent.Option {
	if o.program != nil {
		return []agent.Option{
			agent.WithTransitionHook(func(from, to agent.State) {
				o.program.Send(tui.StateMsg{From: from, To: to})
			}),
			agent.WithChunkHook(func(c proto.StreamChunk) {
				o.program.Send(tui.ChunkMsg{Chunk: c})
			}),
			agent.WithToolHook(func(call proto.ToolCall, result proto.ToolResult) {
				o.program.Send(tui.ToolMsg{Call: call, Result: result})
			}),
		}
	}

	styles := present.StderrStyles()
	return []agent.Option{
		agent.WithChunkHook(func(c proto.StreamChunk) {
			text := o.deltas.Text(c)
			if text == "" {
				return
			}
			if !o.printed {
				text = o.echo + text
				o.printed = true
			}
			_, _ = io.WriteString(o.stdout, text)
		}),
		agent.WithToolHook(func(call proto.ToolCall, result proto.ToolResult) {
			if !o.cfg.Quiet {
				fmt.Fprintln(o.stderr, present.ToolLine(styles, call, result))
			}
		}),
	}
}

// finish stops the progress view and prints whatever the hooks did not. The
// assistant text is taken from the messages after the first start ones.
func (o *output) finish(res agent.Result, start int) error {
	if o.program != nil {
		o.program.Send(tui.DoneMsg{})
		if err := <-o.done; err != nil {
			return fmt.Errorf("progress view: %w", err)
		}
	}

	text := assistantText(res.Context, start)
	if o.program == nil {
		switch {
		case o.printed:
			_, _ = io.WriteString(o.stdout, "\n")
		case text != "":
			_, _ = io.WriteString(o.stdout, o.echo+text+"\n")
		}
		return nil
	}
	if text == "" {
		return nil
	}
	rendered, err := present.RenderMarkdownForTTY(text, o.cfg.WordWrap)
	if err != nil {
		rendered = text + "\n"
	}
	_, _ = io.WriteString(o.stdout, o.echo+rendered)
	return nil
}
