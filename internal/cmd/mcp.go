package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	imcp "github.com/dotcommander/unai/internal/mcp"
	"github.com/dotcommander/unai/internal/present"
)

func newMCPCmd(rt *runtime) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server integration",
	}

	// withService connects the enabled servers for the lifetime of fn.
	withService := func(cmd *cobra.Command, fn func(context.Context, *imcp.Service) error) error {
		if rt.cfgErr != nil {
			return rt.cfgErr
		}
		svc := imcp.New(&rt.cfg)
		defer svc.Close() //nolint:errcheck
		if err := svc.Connect(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd.Context(), svc)
	}

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			mcpList(&rt.cfg)
			return nil
		},
	})
	mcpCmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "List tools from enabled MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, mcpListTools)
		},
	})
	mcpCmd.AddCommand(&cobra.Command{
		Use:   "resources",
		Short: "List resources from enabled MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, mcpListResources)
		},
	})
	mcpCmd.AddCommand(&cobra.Command{
		Use:   "read <uri>",
		Short: "Print an MCP resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *imcp.Service) error {
				return mcpReadResource(ctx, svc, args[0])
			})
		},
	})
	mcpCmd.AddCommand(&cobra.Command{
		Use:   "prompts",
		Short: "List prompts from enabled MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, mcpListPrompts)
		},
	})
	mcpCmd.AddCommand(&cobra.Command{
		Use:   "prompt <name> [key=value...]",
		Short: "Render an MCP prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			promptArgs, err := parsePromptArgs(args[1:])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *imcp.Service) error {
				return mcpGetPrompt(ctx, svc, args[0], promptArgs)
			})
		},
	})

	return mcpCmd
}

func mcpList(cfg *config.Config) {
	svc := imcp.New(cfg)
	for _, name := range mcpServerNames(cfg, "") {
		s := name
		if svc.IsEnabled(name) {
			s += present.StdoutStyles().Timeago.Render(" (enabled)")
		}
		fmt.Println(s)
	}
}

func mcpServerNames(cfg *config.Config, prefix string) []string {
	names := slices.Collect(maps.Keys(cfg.MCPServers))
	names = slices.DeleteFunc(names, func(name string) bool {
		return !strings.HasPrefix(name, prefix)
	})
	slices.Sort(names)
	return names
}

func mcpListTools(ctx context.Context, svc *imcp.Service) error {
	servers, err := svc.Tools(ctx)
	if err != nil {
		return fmt.Errorf("mcp list tools: %w", err)
	}

	names := slices.Collect(maps.Keys(servers))
	slices.Sort(names)
	for _, sname := range names {
		tools := servers[sname]
		slices.SortFunc(tools, func(a, b mmcp.Tool) int { return strings.Compare(a.Name, b.Name) })
		for _, tool := range tools {
			_, _ = fmt.Fprint(os.Stdout, present.StdoutStyles().Timeago.Render(sname+" > "))
			_, _ = fmt.Fprintln(os.Stdout, tool.Name)
		}
	}
	return nil
}

func mcpListResources(ctx context.Context, svc *imcp.Service) error {
	resources, err := svc.Resources(ctx)
	if err != nil {
		return errs.Wrap(err, "Could not list MCP resources.")
	}
	for _, r := range resources {
		line := present.StdoutStyles().Timeago.Render(r.Server+" > ") + r.URI
		if r.Name != "" && r.Name != r.URI {
			line += " " + present.StdoutStyles().Comment.Render(r.Name)
		}
		fmt.Println(line)
	}
	return nil
}

func mcpReadResource(ctx context.Context, svc *imcp.Service, uri string) error {
	res, err := svc.ReadResource(ctx, uri)
	if err != nil {
		return errs.Wrapf(err, "Could not read resource %s.", uri)
	}
	for _, c := range res.Contents {
		switch c := c.(type) {
		case mmcp.TextResourceContents:
			fmt.Println(c.Text)
		case *mmcp.TextResourceContents:
			fmt.Println(c.Text)
		case mmcp.BlobResourceContents:
			fmt.Fprintf(os.Stderr, "%s: binary content (%s) skipped\n", c.URI, c.MIMEType)
		case *mmcp.BlobResourceContents:
			fmt.Fprintf(os.Stderr, "%s: binary content (%s) skipped\n", c.URI, c.MIMEType)
		}
	}
	return nil
}

func mcpListPrompts(ctx context.Context, svc *imcp.Service) error {
	prompts, err := svc.Prompts(ctx)
	if err != nil {
		return errs.Wrap(err, "Could not list MCP prompts.")
	}
	for _, p := range prompts {
		line := present.StdoutStyles().Timeago.Render(p.Server+" > ") + p.Name
		args := make([]string, 0, len(p.Arguments))
		for _, arg := range p.Arguments {
			if arg.Required {
				args = append(args, arg.Name)
			} else {
				args = append(args, "["+arg.Name+"]")
			}
		}
		if len(args) > 0 {
			line += " " + present.StdoutStyles().Comment.Render(strings.Join(args, " "))
		}
		fmt.Println(line)
	}
	return nil
}

func mcpGetPrompt(ctx context.Context, svc *imcp.Service, name string, args map[string]string) error {
	res, err := svc.GetPrompt(ctx, name, args)
	if err != nil {
		return errs.Wrapf(err, "Could not get prompt %s.", name)
	}
	for _, msg := range res.Messages {
		var text string
		switch c := msg.Content.(type) {
		case mmcp.TextContent:
			text = c.Text
		case *mmcp.TextContent:
			text = c.Text
		default:
			continue
		}
		fmt.Printf("%s\n%s\n\n", present.StdoutStyles().Comment.Render(string(msg.Role)+":"), text)
	}
	return nil
}

func parsePromptArgs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, errs.Error{
				Reason: fmt.Sprintf("Invalid prompt argument %q.", arg),
				Err:    errs.UserErrorf("Prompt arguments take the form key=value."),
			}
		}
		out[k] = v
	}
	return out, nil
}
