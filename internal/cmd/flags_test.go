package cmd

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/provider"
)

func TestFlagParseError(t *testing.T) {
	tests := map[string]struct {
		in     string
		flag   string
		reason string
	}{
		"unknown": {
			in:     "unknown flag: --nope",
			flag:   "--nope",
			reason: "Flag %s is missing.",
		},
		"missing argument": {
			in:     "flag needs an argument: --title",
			flag:   "--title",
			reason: "Flag %s needs an argument.",
		},
		"missing shorthand argument": {
			in:     "flag needs an argument: 'c' in -c",
			flag:   "-c",
			reason: "Flag %s needs an argument.",
		},
		"unknown shorthand": {
			in:     "unknown shorthand flag: 'z' in -z",
			flag:   "-z",
			reason: "Short flag %s is missing.",
		},
		"invalid duration": {
			in:     `invalid argument "20dd" for "--request-timeout" flag: time: unknown unit "dd" in duration "20dd"`,
			flag:   "--request-timeout",
			reason: "Flag %s have an invalid argument.",
		},
		"invalid int": {
			in:     `invalid argument "sdfjasdl" for "--max-tokens" flag: strconv.ParseInt: parsing "sdfjasdl": invalid syntax`,
			flag:   "--max-tokens",
			reason: "Flag %s have an invalid argument.",
		},
		"invalid bool": {
			in:     `invalid argument "nope" for "-r, --raw" flag: strconv.ParseBool: parsing "nope": invalid syntax`,
			flag:   "-r, --raw",
			reason: "Flag %s have an invalid argument.",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := newFlagParseError(errors.New(tc.in))
			require.Equal(t, tc.flag, err.Flag())
			require.Equal(t, tc.reason, err.ReasonFormat())
			require.Equal(t, tc.in, err.Error())
		})
	}
}

func TestRootFlags(t *testing.T) {
	tests := map[string]struct {
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		"agent limits": {
			args: []string{"--max-iterations", "3", "--tool-concurrency", "2", "--no-tools"},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, 3, cfg.MaxIterations)
				require.Equal(t, 2, cfg.ToolConcurrency)
				require.True(t, cfg.DisableTools)
			},
		},
		"request timeout in days": {
			args: []string{"--request-timeout", "2d"},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, 48*time.Hour, cfg.RequestTimeout)
			},
		},
		"prompt without value": {
			args: []string{"-P"},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, -1, cfg.IncludePrompt)
			},
		},
		"repeated mcp-disable": {
			args: []string{"--mcp-disable", "github", "--mcp-disable", "fs"},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, []string{"github", "fs"}, cfg.MCPDisable)
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cmd := &cobra.Command{Use: "unai"}
			initRootFlags(cmd, &cfg)
			require.NoError(t, cmd.ParseFlags(tc.args))
			tc.check(t, &cfg)
		})
	}
}

func TestContinueFlagsAreExclusive(t *testing.T) {
	cmd := NewRootCmd(BuildInfo{}, config.Default(), nil)
	cmd.SetArgs([]string{"--continue", "abcd", "--continue-last"})
	require.Error(t, cmd.Execute())
}

func TestManPage(t *testing.T) {
	root := NewRootCmd(BuildInfo{}, config.Default(), nil)
	page, err := manPage(root)
	require.NoError(t, err)
	require.Contains(t, page, "UNAI_MAX_ITERATIONS")
	require.Contains(t, page, "OPENAI_API_KEY")
	require.Contains(t, page, "index.jsonl")
	require.Contains(t, page, "max-iterations")
}

func TestUsageGroups(t *testing.T) {
	root := NewRootCmd(BuildInfo{}, config.Default(), nil)
	var sb strings.Builder
	writeUsage(&sb, present.MakeStyles(lipgloss.NewRenderer(io.Discard)), "unai [OPTIONS]", root)
	out := sb.String()

	sections := []string{"Usage:", "Commands:", "Model:", "Agent:", "Conversation:", "Output:", "Other:"}
	last := -1
	for _, section := range sections {
		i := strings.Index(out, "\n"+section+"\n")
		if section == "Usage:" {
			i = strings.Index(out, section)
		}
		require.Greater(t, i, last, section)
		last = i
	}

	between := func(flag, from, to string) {
		t.Helper()
		i := strings.Index(out, "--"+flag)
		require.Greater(t, i, strings.Index(out, "\n"+from+":\n"), flag)
		require.Less(t, i, strings.Index(out, "\n"+to+":\n"), flag)
	}
	between("model", "Model", "Agent")
	between("max-iterations", "Agent", "Conversation")
	between("mcp-disable", "Agent", "Conversation")
	between("continue-last", "Conversation", "Output")
	between("word-wrap", "Output", "Other")
	require.Greater(t, strings.Index(out, "--log-level"), strings.Index(out, "\nOther:\n"))

	require.Contains(t, out, "config")
	require.Less(t, strings.Index(out, "--model"), strings.Index(out, "--ask-model"))
}

func TestVersionTemplate(t *testing.T) {
	v := versionTemplate(BuildInfo{Version: "v1.2.0", CommitSHA: "0123456789abcdef"}, []provider.Backend{provider.BackendFantasy, provider.BackendOpenAI})
	require.True(t, strings.HasPrefix(v, "{{.Name}} {{.Version}} (01234567)"))
	require.True(t, strings.HasSuffix(v, "\nbackends: fantasy, openai\n"))

	require.NotContains(t, versionTemplate(BuildInfo{CommitSHA: "abc"}, nil), "backends")
	require.Contains(t, provider.Backends(), provider.BackendOpenAI)
}
