package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/present"
)

func listConversations(cfg *config.Config, raw bool) error {
	store, err := openConversationStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open conversation store.")
	}
	defer store.Close() //nolint:errcheck

	runs := store.DB.List()
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "No conversations found.")
		return nil
	}

	if present.IsInteractive() && !raw {
		selectFromList(runs)
		return nil
	}
	printList(runs)
	return nil
}

// showConversation prints a saved transcript. An empty in selects the most
// recent run.
func showConversation(cfg *config.Config, in string) error {
	store, err := openConversationStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open conversation store.")
	}
	defer store.Close() //nolint:errcheck

	run, err := findReadConversation(store.DB, in)
	if err != nil {
		return errs.Wrap(err, "Could not find the conversation.")
	}
	conv, err := loadConversation(store, run.ID)
	if err != nil {
		return err
	}

	out := conv.String()
	if present.IsOutputTTY() && !cfg.Raw {
		if rendered, err := present.RenderMarkdownForTTY(out, cfg.WordWrap); err == nil {
			out = rendered
		}
	}
	fmt.Print(out)
	return nil
}

func deleteConversations(cfg *config.Config, targets []string) error {
	store, err := openConversationStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Couldn't delete conversation.")
	}
	defer store.Close() //nolint:errcheck

	for _, del := range targets {
		run, err := store.DB.Find(del)
		if err != nil {
			return errs.Wrap(err, "Couldn't find conversation to delete.")
		}
		if err := deleteConversationByID(cfg, store, run.ID); err != nil {
			return err
		}
	}
	return nil
}

func deleteConversationsOlderThan(cfg *config.Config, olderThan time.Duration, label string) error {
	if olderThan <= 0 {
		return errs.Wrap(errs.UserErrorf("missing --older-than"), "Could not delete old conversations.")
	}

	store, err := openConversationStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open conversation store.")
	}
	defer store.Close() //nolint:errcheck

	runs := store.DB.ListOlderThan(olderThan)
	if len(runs) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "No conversations found.")
		}
		return nil
	}

	if !cfg.Quiet {
		printList(runs)

		if !present.IsInteractive() {
			fmt.Fprintln(os.Stderr)
			//nolint:wrapcheck // user-facing guidance error
			return errs.UserErrorf(
				"To delete the conversations above, run: %s",
				strings.Join(append(os.Args, "--quiet"), " "),
			)
		}
		var confirm bool
		if err := huh.Run(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete conversations older than %s?", label)).
				Description(fmt.Sprintf("This will delete all the %d conversations listed above.", len(runs))).
				Value(&confirm),
		); err != nil {
			return errs.Wrap(err, "Couldn't delete old conversations.")
		}
		if !confirm {
			//nolint:wrapcheck // user-facing abort
			return errs.UserErrorf("Aborted by user")
		}
	}

	for _, run := range runs {
		if err := deleteConversationByID(cfg, store, run.ID); err != nil {
			return err
		}
	}
	return nil
}
