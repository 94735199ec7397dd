package cmd

import (
	"fmt"
	"os"
	"strings"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"

	"github.com/dotcommander/unai/internal/config"
)

func newManCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:                   "man",
		Short:                 "Generates manpages",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Hidden:                true,
		Args:                  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			page, err := manPage(root)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprint(os.Stdout, page); err != nil {
				return fmt.Errorf("write man page: %w", err)
			}
			return nil
		},
	}
}

// manPage renders the command tree plus the settings overrides and the files
// unai reads and writes.
func manPage(root *cobra.Command) (string, error) {
	page, err := mcobra.NewManPage(1, root)
	if err != nil {
		return "", fmt.Errorf("build man page: %w", err)
	}
	vars, err := config.EnvVars()
	if err != nil {
		return "", err
	}
	page = page.
		WithSection("Environment", fmt.Sprintf(
			"Every setting has an override: %s. "+
				"API keys come from api-key, api-key-cmd or api-key-env in the settings, "+
				"then from the vendor's usual variable such as OPENAI_API_KEY.",
			strings.Join(vars, ", "),
		)).
		WithSection("Files",
			"~/.config/unai/unai.yml holds the settings and roles/ next to it holds role files. "+
				"The cache directory (see unai config dirs) keeps index.jsonl, the run index, "+
				"and conversations/, one transcript per run.",
		)
	return page.Build(roff.NewDocument()), nil
}
