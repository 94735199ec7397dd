// Package mcp bridges Model Context Protocol servers into the tool registry.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/unai/internal/config"
	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/tools"
)

// ErrNotFound is returned when no connected server offers a resource or
// prompt.
var ErrNotFound = errors.New("not found")

// Dialer opens a session with one configured server.
type Dialer func(ctx context.Context, cfg *config.Config, server config.MCPServerConfig) (Peer, error)

// Resource is a resource together with the server offering it.
type Resource struct {
	Server string
	mcp.Resource
}

// Prompt is a prompt together with the server offering it.
type Prompt struct {
	Server string
	mcp.Prompt
}

// Service manages sessions with the configured MCP servers.
type Service struct {
	cfg    *config.Config
	dial   Dialer
	logger *slog.Logger

	mu      sync.Mutex
	bridges map[string]*Bridge
}

// New creates a new MCP service.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:     cfg,
		dial:    dialClient,
		logger:  slog.Default(),
		bridges: map[string]*Bridge{},
	}
}

// SetDialer replaces how sessions are opened.
func (s *Service) SetDialer(d Dialer) { s.dial = d }

// SetLogger sets the logger used for session events.
func (s *Service) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// IsEnabled reports whether the named MCP server is enabled.
func (s *Service) IsEnabled(name string) bool {
	return !slices.Contains(s.cfg.MCPDisable, "*") &&
		!slices.Contains(s.cfg.MCPDisable, name)
}

// EnabledServers iterates enabled MCP servers in stable order.
func (s *Service) EnabledServers() iter.Seq2[string, config.MCPServerConfig] {
	return func(yield func(string, config.MCPServerConfig) bool) {
		names := slices.Collect(maps.Keys(s.cfg.MCPServers))
		slices.Sort(names)
		for _, name := range names {
			if !s.IsEnabled(name) {
				continue
			}
			if !yield(name, s.cfg.MCPServers[name]) {
				return
			}
		}
	}
}

// Connect opens a session with every enabled server that is not connected
// yet. Sessions are opened concurrently under the configured MCP timeout;
// if any fails, the sessions opened by this call are closed again.
func (s *Service) Connect(ctx context.Context) error {
	if s.cfg.MCPTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MCPTimeout)
		defer cancel()
	}

	var mu sync.Mutex
	opened := map[string]*Bridge{}
	wg, gctx := errgroup.WithContext(ctx)
	for name, server := range s.EnabledServers() {
		if s.bridge(name) != nil {
			continue
		}
		wg.Go(func() error {
			peer, err := s.dial(gctx, s.cfg, server)
			if errors.Is(err, context.DeadlineExceeded) {
				return errs.Wrap(
					fmt.Errorf("timeout while connecting to %q - make sure the configuration is correct. If your server requires a docker container, make sure it's running", name),
					"Could not connect to MCP server",
				)
			}
			if err != nil {
				return errs.Wrap(fmt.Errorf("%s: %w", name, err), "Could not connect to MCP server")
			}
			mu.Lock()
			opened[name] = NewBridge(name, peer)
			mu.Unlock()
			s.logger.DebugContext(gctx, "mcp server connected", "server", name, "type", serverType(server))
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		for _, b := range opened {
			_ = b.Close()
		}
		return fmt.Errorf("mcp connect: %w", err)
	}

	s.mu.Lock()
	maps.Copy(s.bridges, opened)
	s.mu.Unlock()
	return nil
}

// Bridges returns the connected bridges sorted by server name.
func (s *Service) Bridges() []*Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := slices.Sorted(maps.Keys(s.bridges))
	out := make([]*Bridge, 0, len(names))
	for _, name := range names {
		out = append(out, s.bridges[name])
	}
	return out
}

func (s *Service) bridge(name string) *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridges[name]
}

// Register connects to the enabled servers and adds all their tools to reg.
func (s *Service) Register(ctx context.Context, reg *tools.Registry) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	for _, b := range s.Bridges() {
		if err := b.Register(ctx, reg); err != nil {
			return errs.Wrap(err, "Could not list tools")
		}
	}
	return nil
}

// Tools returns tools grouped by server name.
func (s *Service) Tools(ctx context.Context) (map[string][]mcp.Tool, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	result := map[string][]mcp.Tool{}
	for _, b := range s.Bridges() {
		list, err := b.Tools(ctx)
		if err != nil {
			return nil, errs.Wrap(err, "Could not list tools")
		}
		result[b.Name()] = list
	}
	return result, nil
}

// Resources lists the resources of every connected server.
func (s *Service) Resources(ctx context.Context) ([]Resource, error) {
	var out []Resource
	for _, b := range s.Bridges() {
		list, err := b.Resources(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range list {
			out = append(out, Resource{Server: b.Name(), Resource: r})
		}
	}
	return out, nil
}

// ReadResource reads uri from the first server that lists it.
func (s *Service) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	for _, b := range s.Bridges() {
		list, err := b.Resources(ctx)
		if err != nil {
			return nil, err
		}
		if slices.ContainsFunc(list, func(r mcp.Resource) bool { return r.URI == uri }) {
			return b.ReadResource(ctx, uri)
		}
	}
	return nil, fmt.Errorf("resource %s: %w", uri, ErrNotFound)
}

// Prompts lists the prompts of every connected server.
func (s *Service) Prompts(ctx context.Context) ([]Prompt, error) {
	var out []Prompt
	for _, b := range s.Bridges() {
		list, err := b.Prompts(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			out = append(out, Prompt{Server: b.Name(), Prompt: p})
		}
	}
	return out, nil
}

// GetPrompt renders name on the first server that lists it.
func (s *Service) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	for _, b := range s.Bridges() {
		list, err := b.Prompts(ctx)
		if err != nil {
			return nil, err
		}
		if slices.ContainsFunc(list, func(p mcp.Prompt) bool { return p.Name == name }) {
			return b.GetPrompt(ctx, name, args)
		}
	}
	return nil, fmt.Errorf("prompt %s: %w", name, ErrNotFound)
}

// Close ends every open session.
func (s *Service) Close() error {
	s.mu.Lock()
	bridges := s.bridges
	s.bridges = map[string]*Bridge{}
	s.mu.Unlock()

	var errList []error
	for name, b := range bridges {
		if err := b.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errList...)
}

func serverType(server config.MCPServerConfig) string {
	if server.Type == "" {
		return "stdio"
	}
	return server.Type
}

func dialClient(ctx context.Context, cfg *config.Config, server config.MCPServerConfig) (Peer, error) {
	var cli *client.Client
	var err error

	switch serverType(server) {
	case "stdio":
		env := server.Env
		if cfg != nil && !cfg.MCPNoInheritEnv {
			env = append(os.Environ(), server.Env...)
		}
		cli, err = client.NewStdioMCPClient(
			server.Command,
			env,
			server.Args...,
		)
	case "sse":
		cli, err = client.NewSSEMCPClient(server.URL)
	case "http":
		cli, err = client.NewStreamableHttpClient(server.URL)
	default:
		return nil, fmt.Errorf("unsupported MCP server type: %q, supported types are: stdio, sse, http", server.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := cli.Start(ctx); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "unai", Version: "dev"}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	return cli, nil
}
