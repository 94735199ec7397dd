package present

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// terminal lazily inspects one standard stream. Every field is computed at
// most once.
type terminal struct {
	isTTY    func() bool
	renderer func() *lipgloss.Renderer
	styles   func() Styles
}

func newTerminal(f *os.File) terminal {
	t := terminal{
		isTTY: sync.OnceValue(func() bool {
			return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}),
		renderer: sync.OnceValue(func() *lipgloss.Renderer {
			return lipgloss.NewRenderer(f, termenv.WithColorCache(true))
		}),
	}
	t.styles = sync.OnceValue(func() Styles { return MakeStyles(t.renderer()) })
	return t
}

var (
	stdin  = newTerminal(os.Stdin)
	stdout = newTerminal(os.Stdout)
	stderr = newTerminal(os.Stderr)
)

// IsInputTTY reports whether stdin is a TTY.
func IsInputTTY() bool { return stdin.isTTY() }

// IsOutputTTY reports whether stdout is a TTY.
func IsOutputTTY() bool { return stdout.isTTY() }

// IsInteractive reports whether both stdin and stdout are TTYs, which is
// required before showing a form or a picker.
func IsInteractive() bool { return IsInputTTY() && IsOutputTTY() }

// StdoutRenderer returns a lipgloss renderer bound to stdout.
func StdoutRenderer() *lipgloss.Renderer { return stdout.renderer() }

// StdoutStyles returns shared styles bound to stdout.
func StdoutStyles() Styles { return stdout.styles() }

// StderrRenderer returns a lipgloss renderer bound to stderr. Streaming
// progress and tool activity are drawn here so stdout stays pipeable.
func StderrRenderer() *lipgloss.Renderer { return stderr.renderer() }

// StderrStyles returns shared styles bound to stderr.
func StderrStyles() Styles { return stderr.styles() }
