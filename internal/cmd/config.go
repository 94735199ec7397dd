package cmd

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/provider"
	"github.com/spf13/cobra"
)

var dirNames = []string{"config", "roles", "cache", "conversations"}

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		RunE: func(_ *cobra.Command, _ []string) error {
			// Allow opening settings even when config parsing failed.
			return editSettings(&rt.cfg)
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open settings in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return editSettings(&rt.cfg)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset settings to defaults, keeping a backup",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return resetSettings(&rt.cfg)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:       "dirs [" + strings.Join(dirNames, "|") + "]",
		Short:     "Print the directories unai reads and writes",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: dirNames,
		RunE: func(_ *cobra.Command, args []string) error {
			printDirs(os.Stdout, &rt.cfg, args)
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "apis",
		Short: "List configured APIs, their models and where each key comes from",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			printAPIs(os.Stdout, present.StdoutStyles(), &rt.cfg)
			return nil
		},
	})

	return configCmd
}

func editSettings(cfg *config.Config) error {
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	c, err := editor.Cmd(filepath.Base(os.Args[0]), cfg.SettingsPath)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not edit your settings file."}
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Error{Err: err, Reason: fmt.Sprintf(
			"Missing %s.",
			present.StderrStyles().InlineCode.Render("$EDITOR"),
		)}
	}

	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr, present.Confirmation(present.StderrStyles(), "wrote", cfg.SettingsPath))
	}
	return nil
}

// resetSettings moves the settings file aside to a .bak file and writes the
// default template in its place.
func resetSettings(cfg *config.Config) error {
	backup := cfg.SettingsPath + ".bak"
	if err := os.Rename(cfg.SettingsPath, backup); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't back up the settings file."}
	}
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return errs.Error{Err: err, Reason: "Couldn't write new settings file."}
	}

	if !cfg.Quiet {
		styles := present.StderrStyles()
		fmt.Fprintln(os.Stderr, present.Confirmation(styles, "reset", "Settings restored to defaults."))
		fmt.Fprintf(
			os.Stderr,
			"\n  %s %s\n\n",
			styles.Comment.Render("Your old settings have been saved to:"),
			styles.Link.Render(backup),
		)
	}
	return nil
}

// printDirs prints one directory when which names it, otherwise all of them
// aligned on their labels.
func printDirs(w io.Writer, cfg *config.Config, which []string) {
	dirs := map[string]string{
		"config":        filepath.Dir(cfg.SettingsPath),
		"roles":         cfg.RolesDir(),
		"cache":         cfg.CachePath,
		"conversations": cfg.ConversationsDir(),
	}
	if len(which) > 0 {
		if dir, ok := dirs[which[0]]; ok {
			fmt.Fprintln(w, dir)
			return
		}
	}

	width := 0
	for _, name := range dirNames {
		width = max(width, len(name))
	}
	for _, name := range dirNames {
		fmt.Fprintf(w, "%*s: %s\n", width, name, dirs[name])
	}
}

// printAPIs lists every configured API with its backend, endpoint, key source
// and models. The API and model selected by the current settings are marked.
func printAPIs(w io.Writer, s present.Styles, cfg *config.Config) {
	current, _, _ := cfg.ResolveModel()
	for _, api := range cfg.APIs {
		vendor, _ := provider.LookupVendor(api.Name)
		backend := api.Backend
		if backend == "" {
			backend = string(vendor.Backend)
		}
		baseURL := api.BaseURL
		if baseURL == "" {
			baseURL = vendor.BaseURL
		}
		source := provider.KeySource(provider.Config{
			APIKey:    api.APIKey,
			APIKeyEnv: api.APIKeyEnv,
			APIKeyCmd: api.APIKeyCmd,
		}, vendor)
		if source == "" {
			source = "missing"
		}

		line := s.Flag.Render(api.Name)
		if api.Name == current.Name {
			line += s.Timeago.Render(" (current)")
		}
		fmt.Fprintln(w, line)
		for _, kv := range [][2]string{
			{"backend", backend},
			{"base url", baseURL},
			{"key", source},
		} {
			if kv[1] != "" {
				fmt.Fprintf(w, "  %s %s\n", s.Comment.Render(kv[0]+":"), kv[1])
			}
		}

		for _, name := range slices.Sorted(maps.Keys(api.Models)) {
			model := api.Models[name]
			entry := "  - " + name
			if api.Name == current.Name && (name == cfg.Model || slices.Contains(model.Aliases, cfg.Model)) {
				entry = "  * " + s.SHA.Render(name)
			}
			if len(model.Aliases) > 0 {
				entry += " " + s.Comment.Render("("+strings.Join(model.Aliases, ", ")+")")
			}
			fmt.Fprintln(w, entry)
		}
	}
}
