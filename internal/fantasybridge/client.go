// Package fantasybridge serves provider.Client on top of charm.land/fantasy,
// covering the vendors without a native adapter.
package fantasybridge

import (
	"context"
	"fmt"
	"log/slog"

	"charm.land/fantasy"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/provider"
	"github.com/dotcommander/unai/internal/stream"
)

func init() {
	provider.Register(provider.BackendFantasy, func(cfg provider.Config) (provider.Client, error) {
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

var _ provider.Client = &Client{}

// Client is a provider.Client backed by a fantasy provider.
type Client struct {
	api      string
	opts     provider.Options
	provider fantasy.Provider
	logger   *slog.Logger
}

// New creates a fantasy-backed client for cfg.API.
func New(cfg provider.Config) (*Client, error) {
	if cfg.API == "" {
		return nil, errs.Error{Reason: "missing fantasy provider configuration"}
	}
	p, err := newProvider(cfg.API, cfg.BaseURL, cfg.APIKey, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: cfg.API, opts: cfg.Options, provider: p, logger: logger}, nil
}

// Name implements provider.Client.
func (c *Client) Name() string { return c.api }

// Request implements provider.Client by draining RequestStream.
func (c *Client) Request(ctx context.Context, conv proto.Context, tools []proto.ToolSpec) (proto.Response, error) {
	return stream.Collect(c.RequestStream(ctx, conv, tools), nil)
}

// RequestStream implements provider.Client.
func (c *Client) RequestStream(ctx context.Context, conv proto.Context, tools []proto.ToolSpec) stream.Stream {
	return stream.Pipe(ctx, func(ctx context.Context, emit func(proto.StreamChunk) bool) error {
		call, err := c.call(conv, tools)
		if err != nil {
			return errs.NewProviderError(c.api, errs.ErrProtocol, err)
		}
		model, err := c.provider.LanguageModel(ctx, c.opts.Model)
		if err != nil {
			return classify(c.api, fmt.Errorf("fantasy language model: %w", err))
		}
		c.logger.DebugContext(ctx, "fantasy stream request", "api", c.api, "model", c.opts.Model, "messages", len(call.Prompt), "tools", len(call.Tools))
		parts, err := model.Stream(ctx, call)
		if err != nil {
			return classify(c.api, err)
		}

		t := newTranslator(func(w string) {
			c.logger.WarnContext(ctx, "provider warning", "api", c.api, "warning", w)
		})
		for part := range parts {
			if part.Type == fantasy.StreamPartTypeError {
				return classify(c.api, part.Error)
			}
			chunks, done := t.translate(part)
			for _, ch := range chunks {
				if !emit(ch) {
					return nil
				}
			}
			if done {
				return nil
			}
		}
		return nil
	})
}

func (c *Client) call(conv proto.Context, tools []proto.ToolSpec) (fantasy.Call, error) {
	prompt, err := toFantasyPrompt(conv.WithSystem(c.opts.System))
	if err != nil {
		return fantasy.Call{}, err
	}
	ftools, err := toFantasyTools(tools)
	if err != nil {
		return fantasy.Call{}, err
	}
	return buildCall(c.api, c.opts, prompt, ftools), nil
}
