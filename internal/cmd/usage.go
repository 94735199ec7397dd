package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/dotcommander/unai/internal/present"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

type flagGroup struct {
	title string
	names []string
}

// flagGroups orders the help output. Flags not listed here end up under
// "Other".
var flagGroups = []flagGroup{
	{"Model", []string{"model", "ask-model", "api", "http-proxy", "request-timeout", "max-tokens", "temp", "topp", "topk", "no-limit"}},
	{"Agent", []string{"role", "system", "stream", "max-iterations", "tool-concurrency", "no-tools", "mcp-disable"}},
	{"Conversation", []string{"continue", "continue-last", "title", "no-cache", "editor"}},
	{"Output", []string{"format", "format-as", "raw", "prompt", "prompt-args", "word-wrap", "theme", "quiet"}},
}

func useLine() string {
	appName := filepath.Base(os.Args[0])
	if present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		appName = present.MakeGradientText(present.StdoutStyles().AppName, appName)
	}
	return fmt.Sprintf(
		"%s %s",
		appName,
		present.StdoutStyles().CliArgs.Render("[OPTIONS] [PREFIX TERM]"),
	)
}

func usageFunc(cmd *cobra.Command) error {
	writeUsage(os.Stdout, present.StdoutStyles(), useLine(), cmd)
	return nil
}

func writeUsage(w io.Writer, s present.Styles, use string, cmd *cobra.Command) {
	fmt.Fprintf(w, "Usage:\n  %s\n", use)

	if cmds := visibleCommands(cmd); len(cmds) > 0 {
		fmt.Fprintln(w, "\nCommands:")
		width := 0
		for _, c := range cmds {
			width = max(width, len(c.Name()))
		}
		for _, c := range cmds {
			fmt.Fprintf(w, "  %s %s\n", s.Flag.Render(fmt.Sprintf("%-*s", width, c.Name())), s.FlagDesc.Render(c.Short))
		}
	}

	for _, group := range groupFlags(cmd) {
		fmt.Fprintf(w, "\n%s:\n", group.title)
		for _, f := range group.flags {
			writeFlag(w, s, f)
		}
	}

	if cmd.HasExample() {
		fmt.Fprintf(
			w,
			"\nExample:\n  %s\n  %s\n",
			s.Comment.Render("# "+cmd.Example),
			cheapHighlighting(s, examples[cmd.Example]),
		)
	}
}

func writeFlag(w io.Writer, s present.Styles, f *flag.Flag) {
	if f.Shorthand == "" {
		fmt.Fprintf(w, "  %-44s %s\n", s.Flag.Render("--"+f.Name), s.FlagDesc.Render(f.Usage))
		return
	}
	fmt.Fprintf(
		w,
		"  %s%s %-40s %s\n",
		s.Flag.Render("-"+f.Shorthand),
		s.FlagComma,
		s.Flag.Render("--"+f.Name),
		s.FlagDesc.Render(f.Usage),
	)
}

type renderedGroup struct {
	title string
	flags []*flag.Flag
}

// groupFlags sorts the visible flags of cmd, persistent ones included, into
// flagGroups in the order listed there. Empty groups are skipped.
func groupFlags(cmd *cobra.Command) []renderedGroup {
	groupOf := map[string]int{}
	position := map[string]int{}
	for i, g := range flagGroups {
		for j, name := range g.names {
			groupOf[name] = i
			position[name] = j
		}
	}

	groups := make([]renderedGroup, len(flagGroups)+1)
	for i, g := range flagGroups {
		groups[i].title = g.title
	}
	other := len(flagGroups)
	groups[other].title = "Other"

	seen := map[string]bool{}
	visit := func(f *flag.Flag) {
		if f.Hidden || seen[f.Name] {
			return
		}
		seen[f.Name] = true
		i, ok := groupOf[f.Name]
		if !ok {
			i = other
		}
		groups[i].flags = append(groups[i].flags, f)
	}
	cmd.LocalFlags().VisitAll(visit)
	cmd.InheritedFlags().VisitAll(visit)

	out := groups[:0]
	for _, g := range groups {
		if len(g.flags) == 0 {
			continue
		}
		slices.SortStableFunc(g.flags, func(a, b *flag.Flag) int {
			return position[a.Name] - position[b.Name]
		})
		out = append(out, g)
	}
	return out
}

func visibleCommands(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			out = append(out, c)
		}
	}
	return out
}
