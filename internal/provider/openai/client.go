// Package openai talks to OpenAI-compatible chat completion endpoints over
// HTTP and server-sent events.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/provider"
	"github.com/dotcommander/unai/internal/stream"
)

func init() {
	provider.Register(provider.BackendOpenAI, func(cfg provider.Config) (provider.Client, error) {
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

var _ provider.Client = &Client{}

// Client is a provider.Client for the chat completions API.
type Client struct {
	name   string
	cfg    provider.Config
	hc     *http.Client
	logger *slog.Logger
}

// New returns a client for cfg. BaseURL must include the version prefix,
// e.g. https://api.openai.com/v1.
func New(cfg provider.Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: missing base url")
	}
	if cfg.Options.Model == "" {
		return nil, fmt.Errorf("openai: missing model")
	}
	c := &Client{name: cfg.API, cfg: cfg, hc: cfg.HTTPClient, logger: cfg.Logger}
	if c.name == "" {
		c.name = "openai"
	}
	if c.hc == nil {
		c.hc = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Name implements provider.Client.
func (c *Client) Name() string { return c.name }

// Request implements provider.Client.
func (c *Client) Request(ctx context.Context, conv proto.Context, tools []proto.ToolSpec) (proto.Response, error) {
	resp, err := c.send(ctx, c.buildRequest(conv, tools, false))
	if err != nil {
		return proto.Response{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return proto.Response{}, c.transportError(ctx, err)
	}
	var wire chatResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return proto.Response{}, errs.NewProviderError(c.name, errs.ErrProtocol, fmt.Errorf("decode response: %w", err))
	}
	return c.fromWireResponse(wire)
}

// RequestStream implements provider.Client.
func (c *Client) RequestStream(ctx context.Context, conv proto.Context, tools []proto.ToolSpec) stream.Stream {
	req := c.buildRequest(conv, tools, true)
	return stream.Pipe(ctx, func(ctx context.Context, emit func(proto.StreamChunk) bool) error {
		resp, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() //nolint:errcheck

		t := newTranslator(c.name)
		events := newSSEReader(resp.Body)
		for {
			data, err := events.Next()
			if errors.Is(err, io.EOF) {
				if !t.finished {
					return errs.NewProviderError(c.name, errs.ErrNetwork, stream.ErrUnexpectedEnd)
				}
				emitAll(emit, t.close())
				return nil
			}
			if err != nil {
				return c.transportError(ctx, err)
			}
			if bytes.Equal(bytes.TrimSpace(data), doneMarker) {
				emitAll(emit, t.close())
				return nil
			}
			chunks, err := t.event(data)
			if err != nil {
				return err
			}
			if !emitAll(emit, chunks) {
				return nil
			}
		}
	})
}

func emitAll(emit func(proto.StreamChunk) bool, chunks []proto.StreamChunk) bool {
	for _, c := range chunks {
		if !emit(c) {
			return false
		}
	}
	return true
}

func (c *Client) send(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	c.logger.DebugContext(ctx, "chat completion request",
		"api", c.name,
		"model", body.Model,
		"messages", len(body.Messages),
		"tools", len(body.Tools),
		"stream", body.Stream,
	)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		err := c.statusError(resp)
		c.logger.DebugContext(ctx, "chat completion failed", "api", c.name, "status", resp.StatusCode, "error", err)
		return nil, err
	}
	return resp, nil
}
