package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/editor"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/present"
)

// readStdin returns piped input, bounded by MaxInputChars unless NoLimit is
// set. It returns "" when stdin is a terminal.
func readStdin(cfg *config.Config, in io.Reader) (string, error) {
	if present.IsInputTTY() {
		return "", nil
	}
	return readInput(cfg, in)
}

func readInput(cfg *config.Config, in io.Reader) (string, error) {
	reader := io.Reader(bufio.NewReader(in))
	limited := !cfg.NoLimit && cfg.MaxInputChars > 0
	if limited {
		// one extra byte tells whether the input was cut
		reader = io.LimitReader(reader, cfg.MaxInputChars+1)
	}
	bts, err := io.ReadAll(reader)
	if err != nil {
		return "", errs.Wrap(err, "Unable to read stdin.")
	}
	if limited && int64(len(bts)) > cfg.MaxInputChars {
		bts = bts[:cfg.MaxInputChars]
		// drain the rest so the writer does not block on a full pipe
		_, _ = io.Copy(io.Discard, in)
	}
	return removeWhitespace(string(bts)), nil
}

// composePrompt joins the prompt arguments and piped input, trimming the
// result to the model's input budget.
func composePrompt(prefix, stdin string, maxChars int64, noLimit bool) string {
	var parts []string
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	if s := strings.TrimSpace(stdin); s != "" {
		parts = append(parts, stdin)
	}
	prompt := strings.Join(parts, "\n\n")
	if !noLimit && maxChars > 0 && int64(len(prompt)) > maxChars {
		prompt = prompt[:maxChars]
	}
	return prompt
}

// echoPrompt returns what --prompt-args and --prompt ask to repeat ahead of
// the response.
func echoPrompt(cfg *config.Config, stdin string) string {
	var sb strings.Builder
	if cfg.IncludePromptArgs && cfg.Prefix != "" {
		sb.WriteString(cfg.Prefix + "\n\n")
	}
	if cfg.IncludePrompt != 0 && stdin != "" {
		lines := strings.Split(stdin, "\n")
		if cfg.IncludePrompt > 0 && len(lines) > cfg.IncludePrompt {
			lines = lines[:cfg.IncludePrompt]
		}
		sb.WriteString(strings.Join(lines, "\n") + "\n\n")
	}
	return sb.String()
}

// systemPrompt assembles the system text from the configured system prompt,
// the selected role and the format instructions.
func systemPrompt(ctx context.Context, cfg *config.Config, loader config.Loader) (string, error) {
	var parts []string
	if cfg.System != "" {
		msg, err := loader.Load(ctx, cfg.System)
		if err != nil {
			return "", errs.Wrap(err, "Could not load the system prompt.")
		}
		parts = append(parts, msg)
	}
	if cfg.Role != "" {
		setup, ok := cfg.Roles[cfg.Role]
		if !ok {
			return "", errs.Error{
				Reason: fmt.Sprintf("Role %q does not exist.", cfg.Role),
				Err:    errs.UserErrorf("Available roles: %s", strings.Join(roleNames(cfg, ""), ", ")),
			}
		}
		for _, msg := range setup {
			content, err := loader.Load(ctx, msg)
			if err != nil {
				return "", errs.Wrapf(err, "Could not load role %q.", cfg.Role)
			}
			parts = append(parts, content)
		}
	}
	if cfg.Format {
		if text := cfg.FormatText[cfg.FormatAs]; text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func prefixFromEditor(appName string) (string, error) {
	f, err := os.CreateTemp("", "prompt")
	if err != nil {
		return "", fmt.Errorf("could not create temporary file: %w", err)
	}
	_ = f.Close()
	defer func() { _ = os.Remove(f.Name()) }()

	c, err := editor.Cmd(appName, f.Name())
	if err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stderr = os.Stderr
	c.Stdout = os.Stdout
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	prompt, err := os.ReadFile(f.Name())
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return string(prompt), nil
}

// removeWhitespace empties s when it holds nothing but whitespace.
func removeWhitespace(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func drainStdin() {
	if present.IsInputTTY() {
		return
	}
	_, _ = io.Copy(io.Discard, os.Stdin)
}
