package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/dotcommander/unai/internal/agent"
	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/provider"
	"github.com/dotcommander/unai/internal/storage"
)

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{build: normalizeBuildInfo(build), cfg: cfg, cfgErr: cfgErr}

	rootCmd := &cobra.Command{
		Use:           "unai",
		Short:         "Agents on the command line, over any LLM provider.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       randomExample(),
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogger(rt.cfg.LogLevel, rt.cfg.Verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return rt.runGenerate(cmd, args)
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build, provider.Backends()))

	initRootFlags(rootCmd, &rt.cfg)

	rootCmd.AddCommand(newHistoryCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newMCPCmd(rt))
	rootCmd.AddCommand(newRolesCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))

	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

func (rt *runtime) runGenerate(cmd *cobra.Command, args []string) error {
	cfg := &rt.cfg
	cfg.Prefix = removeWhitespace(strings.Join(args, " "))
	if os.Getenv("VIMRUNTIME") != "" {
		cfg.Quiet = true
	}

	if cfg.ShowHelp {
		drainStdin()
		if err := cmd.Usage(); err != nil {
			return fmt.Errorf("usage: %w", err)
		}
		return nil
	}

	if cfg.OpenEditor && cfg.Prefix == "" && present.IsInputTTY() {
		prompt, err := prefixFromEditor("unai")
		if err != nil {
			return err
		}
		cfg.Prefix = removeWhitespace(prompt)
	}

	stdin, err := readStdin(cfg, os.Stdin)
	if err != nil {
		return err
	}

	if (cfg.AskModel || (cfg.Prefix == "" && stdin == "" && !isContinuing(cfg))) && present.IsInputTTY() {
		if err := promptForAPIAndModel(cfg); errors.Is(err, huh.ErrUserAborted) {
			return errs.Error{Err: err, Reason: "User canceled."}
		} else if err != nil {
			return errs.Error{Err: err, Reason: "Prompt failed."}
		}
	}

	store, err := openConversationStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open conversation store.")
	}
	defer store.Close() //nolint:errcheck

	pl, err := planConversation(cfg, store.DB)
	if err != nil {
		return err
	}
	cfg.API, cfg.Model = pl.API, pl.Model

	var history proto.Context
	if !cfg.NoCache && pl.ReadID != "" {
		if history, err = loadConversation(store, pl.ReadID); err != nil {
			return err
		}
	}

	hasPrompt := cfg.Prefix != "" || stdin != ""
	switch {
	case !hasPrompt && len(history.Pending()) == 0:
		return errs.Error{
			Reason: "You haven't provided any prompt input.",
			Err: errs.UserErrorf(
				"You can give your prompt as arguments and/or pipe it from STDIN.\nExample: %s",
				present.StdoutStyles().InlineCode.Render("unai [prompt]"),
			),
		}
	case hasPrompt && len(history.Pending()) > 0:
		return errs.Error{
			Reason: "The conversation stopped with tool calls still pending.",
			Err: errs.UserErrorf(
				"Resume it without a prompt first: %s",
				present.StdoutStyles().InlineCode.Render("unai --continue "+storage.ShortID(pl.ReadID)),
			),
		}
	}

	res, err := rt.generate(cmd.Context(), &pl, history, cfg.Prefix, stdin)
	if err != nil && !errors.Is(err, errs.ErrIterationExceeded) {
		return err
	}
	if saveErr := saveConversation(cfg, store, pl, res); saveErr != nil {
		return saveErr
	}
	if err != nil {
		e := agent.Describe(err, pl.API, pl.Model)
		if !cfg.NoCache {
			e.Hint = fmt.Sprintf(
				"%d tool calls are pending. Resume the run with %s",
				len(res.Pending),
				present.StderrStyles().InlineCode.Render("unai --continue "+storage.ShortID(pl.WriteID)),
			)
		}
		return e
	}
	return nil
}

func isContinuing(cfg *config.Config) bool {
	return cfg.ContinueLast || cfg.Continue != ""
}

func promptForAPIAndModel(cfg *config.Config) error {
	apis := make([]huh.Option[string], 0, len(cfg.APIs))
	opts := map[string][]huh.Option[string]{}
	for _, api := range cfg.APIs {
		apis = append(apis, huh.NewOption(api.Name, api.Name))
		names := make([]string, 0, len(api.Models))
		for name, model := range api.Models {
			names = append(names, name)
			if !cfg.AskModel &&
				(cfg.API == "" || cfg.API == api.Name) &&
				(cfg.Model == name || slices.Contains(model.Aliases, cfg.Model)) {
				cfg.API = api.Name
				cfg.Model = name
			}
		}
		slices.Sort(names)
		for _, name := range names {
			opts[api.Name] = append(opts[api.Name], huh.NewOption(name, name))
		}
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the API:").
				Options(apis...).
				Value(&cfg.API),
			huh.NewSelect[string]().
				TitleFunc(func() string {
					return fmt.Sprintf("Choose the model for '%s':", cfg.API)
				}, &cfg.API).
				OptionsFunc(func() []huh.Option[string] {
					return opts[cfg.API]
				}, &cfg.API).
				Value(&cfg.Model),
		),
		huh.NewGroup(
			huh.NewText().
				TitleFunc(func() string {
					return fmt.Sprintf("Enter a prompt for %s/%s:", cfg.API, cfg.Model)
				}, &cfg.Model).
				Value(&cfg.Prefix),
		).WithHideFunc(func() bool {
			return cfg.Prefix != ""
		}),
	).
		WithTheme(themeFrom(cfg.Theme)).
		Run(); err != nil {
		return fmt.Errorf("prompt form: %w", err)
	}
	return nil
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
