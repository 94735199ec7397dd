package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/present"
)

// Exit statuses.
const (
	exitFailure = 1
	// exitPending means the run stopped at the iteration limit and can be
	// resumed with --continue.
	exitPending     = 3
	exitInterrupted = 130
)

// Execute wires commands and runs Cobra.
func Execute(build BuildInfo, cfg config.Config, cfgErr error) {
	root := NewRootCmd(build, cfg, cfgErr)
	if err := root.Execute(); err != nil {
		drainStdin()
		handleError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.KindCancelled:
		return exitInterrupted
	case errs.KindIterationExceeded:
		return exitPending
	default:
		return exitFailure
	}
}

// handleError prints err as a block of paragraphs: the reason, the
// underlying error, its kind and retry hint when it came from a provider,
// and the next step the user can take.
func handleError(w io.Writer, err error) {
	styles := present.StderrStyles()

	var ferr flagParseError
	if errors.As(err, &ferr) {
		fmt.Fprintf(w, "\n%s\n\nCheck out %s %s\n\n",
			fmt.Sprintf(ferr.ReasonFormat(), styles.InlineCode.Render(ferr.Flag())),
			styles.InlineCode.Render("unai -h"),
			styles.Comment.Render("for help."),
		)
		return
	}

	var uerr errs.Error
	if !errors.As(err, &uerr) {
		uerr = errs.Error{Err: err}
	}

	var blocks []string
	if uerr.Reason != "" {
		blocks = append(blocks, styles.ErrPadding.Render(styles.ErrorHeader.String(), uerr.Reason))
	}
	if uerr.Err != nil && !errors.Is(uerr.Err, huh.ErrUserAborted) {
		blocks = append(blocks, styles.ErrPadding.Render(styles.ErrorDetails.Render(uerr.Err.Error())))
	}

	var notes []string
	switch kind := errs.KindOf(err); kind {
	case errs.KindUnknown, errs.KindCancelled:
	default:
		notes = append(notes, "kind: "+string(kind))
	}
	if d, ok := errs.RetryAfter(err); ok && !strings.Contains(uerr.Reason, d.String()) {
		notes = append(notes, "retry after "+d.String())
	}
	if len(notes) > 0 {
		blocks = append(blocks, styles.ErrPadding.Render(styles.Comment.Render(strings.Join(notes, ", "))))
	}
	if uerr.Hint != "" {
		blocks = append(blocks, styles.ErrPadding.Render(uerr.Hint))
	}

	fmt.Fprintf(w, "\n%s\n\n", strings.Join(blocks, "\n\n"))
}
