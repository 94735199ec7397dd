package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/present"
)

func initRootFlags(cmd *cobra.Command, cfg *config.Config) {
	desc := func(name string) string { return present.StdoutStyles().FlagDesc.Render(helpText[name]) }

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Model, "model", "m", cfg.Model, desc("model"))
	flags.BoolVarP(&cfg.AskModel, "ask-model", "M", cfg.AskModel, desc("ask-model"))
	flags.StringVarP(&cfg.API, "api", "a", cfg.API, desc("api"))
	flags.StringVarP(&cfg.HTTPProxy, "http-proxy", "x", cfg.HTTPProxy, desc("http-proxy"))
	flags.BoolVarP(&cfg.Format, "format", "f", cfg.Format, desc("format"))
	flags.StringVar(&cfg.FormatAs, "format-as", cfg.FormatAs, desc("format-as"))
	flags.BoolVarP(&cfg.Raw, "raw", "r", cfg.Raw, desc("raw"))
	flags.IntVarP(&cfg.IncludePrompt, "prompt", "P", cfg.IncludePrompt, desc("prompt"))
	flags.BoolVarP(&cfg.IncludePromptArgs, "prompt-args", "p", cfg.IncludePromptArgs, desc("prompt-args"))
	flags.StringVarP(&cfg.Continue, "continue", "c", "", desc("continue"))
	flags.BoolVarP(&cfg.ContinueLast, "continue-last", "C", false, desc("continue-last"))
	flags.StringVarP(&cfg.Title, "title", "t", cfg.Title, desc("title"))
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, desc("quiet"))
	flags.BoolVarP(&cfg.ShowHelp, "help", "h", false, desc("help"))
	flags.BoolVarP(&cfg.Version, "version", "v", false, desc("version"))
	flags.BoolVar(&cfg.Stream, "stream", cfg.Stream, desc("stream"))
	flags.IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, desc("max-iterations"))
	flags.IntVar(&cfg.ToolConcurrency, "tool-concurrency", cfg.ToolConcurrency, desc("tool-concurrency"))
	flags.BoolVar(&cfg.DisableTools, "no-tools", false, desc("no-tools"))
	flags.BoolVar(&cfg.NoLimit, "no-limit", cfg.NoLimit, desc("no-limit"))
	flags.Int64Var(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, desc("max-tokens"))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, desc("word-wrap"))
	flags.Float64Var(&cfg.Temperature, "temp", cfg.Temperature, desc("temp"))
	flags.Float64Var(&cfg.TopP, "topp", cfg.TopP, desc("topp"))
	flags.Int64Var(&cfg.TopK, "topk", cfg.TopK, desc("topk"))
	flags.Var(newDurationFlag(cfg.RequestTimeout, &cfg.RequestTimeout), "request-timeout", desc("request-timeout"))
	flags.BoolVar(&cfg.NoCache, "no-cache", cfg.NoCache, desc("no-cache"))
	flags.StringVarP(&cfg.Role, "role", "R", cfg.Role, desc("role"))
	flags.StringVarP(&cfg.System, "system", "s", cfg.System, desc("system"))
	flags.StringVar(&cfg.Theme, "theme", "charm", desc("theme"))
	flags.BoolVarP(&cfg.OpenEditor, "editor", "e", false, desc("editor"))
	flags.StringArrayVar(&cfg.MCPDisable, "mcp-disable", cfg.MCPDisable, desc("mcp-disable"))
	flags.Lookup("prompt").NoOptDefVal = "-1"

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, desc("log-level"))
	persistent.BoolVarP(&cfg.Verbose, "verbose", "V", false, desc("verbose"))
	flags.SortFlags = false

	_ = cmd.RegisterFlagCompletionFunc("continue", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return runCompletions(cfg, toComplete), cobra.ShellCompDirectiveDefault
	})
	_ = cmd.RegisterFlagCompletionFunc("role", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return roleNames(cfg, toComplete), cobra.ShellCompDirectiveDefault
	})
	_ = cmd.RegisterFlagCompletionFunc("mcp-disable", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return mcpServerNames(cfg, toComplete), cobra.ShellCompDirectiveDefault
	})

	cmd.MarkFlagsMutuallyExclusive("continue", "continue-last")
}
