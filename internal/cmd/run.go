package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/x/exp/ordered"

	"github.com/dotcommander/unai/internal/agent"
	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/mcp"
	"github.com/dotcommander/unai/internal/present"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/provider"
	"github.com/dotcommander/unai/internal/tools"

	// Backends register themselves with the provider package.
	_ "github.com/dotcommander/unai/internal/fantasybridge"
	_ "github.com/dotcommander/unai/internal/provider/openai"
)

// maxAttempts bounds how often a failed run is retried with a fallback
// model or a shortened prompt.
const maxAttempts = 2

// generate runs the agent for one prompt on top of history and prints the
// answer. pl.API and pl.Model are updated when a fallback model is used.
func (rt *runtime) generate(ctx context.Context, pl *conversationPlan, history proto.Context, prefix, stdin string) (agent.Result, error) {
	cfg := &rt.cfg
	logger := slog.Default()

	httpClient, err := provider.HTTPClient(provider.Options{Proxy: cfg.HTTPProxy, Timeout: cfg.RequestTimeout})
	if err != nil {
		return agent.Result{}, err
	}
	system, err := systemPrompt(ctx, cfg, config.Loader{Client: httpClient})
	if err != nil {
		return agent.Result{}, err
	}

	registry, closeTools, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return agent.Result{}, err
	}
	defer closeTools()

	var prompt string
	for attempt := 1; ; attempt++ {
		api, mod, err := cfg.ResolveModel()
		if err != nil {
			return agent.Result{}, err
		}
		pl.API, pl.Model = api.Name, mod.Name
		if prompt == "" {
			prompt = composePrompt(prefix, stdin, mod.MaxChars, cfg.NoLimit)
		}

		client, err := provider.New(ctx, providerConfig(cfg, api, mod, system, logger))
		if err != nil {
			return agent.Result{}, err
		}

		conv := history
		if prompt != "" {
			conv = conv.Append(proto.UserText(prompt))
		}

		out := newOutput(cfg, echoPrompt(cfg, stdin))
		a := agent.New(client, registry, agent.Config{
			MaxIterations: cfg.MaxIterations,
			Concurrency:   cfg.ToolConcurrency,
			Stream:        cfg.Stream,
		}, append(out.options(), agent.WithLogger(logger))...)

		res, runErr := a.Run(ctx, conv)
		if err := out.finish(res, history.Len()); err != nil {
			return res, err
		}
		if runErr == nil || errs.KindOf(runErr) == errs.KindIterationExceeded {
			return res, runErr
		}

		rec := agent.Recover(runErr, agent.Attempt{
			API:      api.Name,
			Model:    mod.Name,
			Fallback: mod.Fallback,
			Prompt:   prompt,
			NoLimit:  cfg.NoLimit,
		})
		if !rec.Retry || attempt >= maxAttempts {
			return res, rec.Err
		}
		logger.InfoContext(ctx, "retrying run", "reason", rec.Err.Reason, "model", ordered.First(rec.ModelOverride, mod.Name))
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, present.StderrStyles().Comment.Render(rec.Err.Reason+" Retrying..."))
		}
		if rec.ModelOverride != "" {
			cfg.Model = rec.ModelOverride
		}
		prompt = rec.Prompt
	}
}

func providerConfig(cfg *config.Config, api config.API, mod config.Model, system string, logger *slog.Logger) provider.Config {
	opts := provider.Options{
		Model:          mod.Name,
		System:         system,
		Temperature:    optional(cfg.Temperature),
		TopP:           optional(cfg.TopP),
		TopK:           optional(cfg.TopK),
		ThinkingBudget: mod.ThinkingBudget,
		User:           ordered.First(cfg.User, api.User),
		Timeout:        cfg.RequestTimeout,
		Proxy:          cfg.HTTPProxy,
		Headers:        api.Headers,
	}
	if maxTokens := ordered.First(cfg.MaxTokens, mod.MaxTokens); maxTokens > 0 {
		opts.MaxTokens = &maxTokens
	}
	return provider.Config{
		API:       api.Name,
		BaseURL:   api.BaseURL,
		APIKey:    api.APIKey,
		APIKeyEnv: api.APIKeyEnv,
		APIKeyCmd: api.APIKeyCmd,
		Backend:   provider.Backend(api.Backend),
		Options:   opts,
		Logger:    logger,
	}
}

// optional maps the settings' negative "disabled" values to nil.
func optional[T int64 | float64](v T) *T {
	if v < 0 {
		return nil
	}
	return &v
}

// buildRegistry connects the enabled MCP servers and registers their tools.
// The returned func closes the connections.
func buildRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tools.Registry, func(), error) {
	registry, err := tools.NewRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("new registry: %w", err)
	}
	registry.SetLogger(logger)
	if cfg.DisableTools || len(cfg.MCPServers) == 0 {
		return registry, func() {}, nil
	}

	svc := mcp.New(cfg)
	svc.SetLogger(logger)
	closeFn := func() {
		if err := svc.Close(); err != nil {
			logger.Debug("closing mcp servers", "err", err)
		}
	}
	if err := svc.Connect(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	if err := svc.Register(ctx, registry); err != nil {
		closeFn()
		return nil, nil, errs.Wrap(err, "Could not load tools from MCP servers.")
	}
	logger.Debug("tools registered", "count", registry.Len())
	return registry, closeFn, nil
}

// assistantText joins the text of the assistant messages appended after the
// first start messages of conv.
func assistantText(conv proto.Context, start int) string {
	var parts []string
	for i := start; i < conv.Len(); i++ {
		msg := conv.At(i)
		if msg.Role != proto.RoleAssistant {
			continue
		}
		if text := strings.TrimSpace(msg.Text()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func setupLogger(level string, verbose bool) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
