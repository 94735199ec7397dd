package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dotcommander/unai/internal/agent"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/storage"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved agent runs",
	}

	historyCmd.AddCommand(newHistoryListCmd(rt))
	historyCmd.AddCommand(newHistoryShowCmd(rt))
	historyCmd.AddCommand(newHistoryDeleteCmd(rt))
	historyCmd.AddCommand(newHistoryPruneCmd(rt))

	return historyCmd
}

func newHistoryListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved runs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return listConversations(&rt.cfg, rt.cfg.Raw)
		},
	}
}

func newHistoryShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id-or-title]",
		Short: "Show a saved run, the latest one by default",
		Args:  cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return runCompletions(&rt.cfg, toComplete), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			drainStdin()
			var in string
			if len(args) == 1 {
				in = args[0]
			}
			return showConversation(&rt.cfg, in)
		},
	}
}

func newHistoryDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-title> [more...]",
		Short: "Delete saved runs",
		Args:  cobra.MinimumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return runCompletions(&rt.cfg, toComplete), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return deleteConversations(&rt.cfg, args)
		},
	}
}

func newHistoryPruneCmd(rt *runtime) *cobra.Command {
	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return deleteConversationsOlderThan(&rt.cfg, olderThan, cmd.Flag("older-than").Value.String())
		},
	}
	pruneCmd.Flags().Var(newDurationFlag(olderThan, &olderThan), "older-than", "Duration to prune; e.g. 24h, 7d")
	return pruneCmd
}

func makeOptions(runs []storage.Run) []huh.Option[string] {
	styles := present.StdoutStyles()
	opts := make([]huh.Option[string], 0, len(runs))
	for _, r := range runs {
		timea := styles.Timeago.Render(timeago.Of(r.UpdatedAt))
		left := styles.SHA.Render(storage.ShortID(r.ID))
		right := styles.ConversationList.Render(r.Title, timea)
		if r.Model != "" {
			right += styles.Comment.Render(r.Model)
		}
		if r.API != "" {
			right += styles.Comment.Render(" (" + r.API + ")")
		}
		if r.State != "" && r.State != string(agent.Completed) {
			right += styles.ErrorDetails.Render(" " + r.State)
		}
		opts = append(opts, huh.NewOption(left+" "+right, r.ID))
	}
	return opts
}

func selectFromList(runs []storage.Run) {
	var selected string
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Conversations").
				Value(&selected).
				Options(makeOptions(runs)...),
		),
	).Run(); err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		return
	}

	_ = clipboard.WriteAll(selected)
	termenv.Copy(selected)
	fmt.Println(present.Confirmation(present.StdoutStyles(), "copied", selected))

	short := storage.ShortID(selected)
	fmt.Println(present.StdoutStyles().Comment.Render("You can use this run ID with the following commands:"))
	suggestions := []string{
		"unai history show " + short,
		"unai --continue " + short,
		"unai history delete " + short,
	}
	for _, s := range suggestions {
		fmt.Printf("  %s\n", present.StdoutStyles().InlineCode.Render(s))
	}
}

func printList(runs []storage.Run) {
	for _, r := range runs {
		_, _ = fmt.Fprintf(
			os.Stdout,
			"%s\t%s\t%s\n",
			present.StdoutStyles().SHA.Render(storage.ShortID(r.ID)),
			r.Title,
			present.StdoutStyles().Timeago.Render(timeago.Of(r.UpdatedAt)),
		)
	}
}
