// Package provider defines the capability every LLM backend implements and
// builds configured clients by API name.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
	"github.com/dotcommander/unai/internal/stream"
)

// Client submits a Context to one backend. Implementations must be safe for
// concurrent use and must not retry on their own; errors carry the errs
// taxonomy.
type Client interface {
	// Name returns the API name the client was built for.
	Name() string
	// Request sends ctx and waits for the complete response.
	Request(ctx context.Context, conv proto.Context, tools []proto.ToolSpec) (proto.Response, error)
	// RequestStream sends ctx and returns the response as it is generated.
	// The returned stream always ends with a terminal chunk.
	RequestStream(ctx context.Context, conv proto.Context, tools []proto.ToolSpec) stream.Stream
}

// Options are the model and transport settings shared by all backends.
type Options struct {
	Model          string
	System         string
	Temperature    *float64
	TopP           *float64
	TopK           *int64
	MaxTokens      *int64
	ThinkingBudget int
	User           string

	Timeout time.Duration
	Proxy   string
	Headers map[string]string
}

// Config describes one API endpoint and how to authenticate against it.
type Config struct {
	API       string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	APIKeyCmd string
	// Backend overrides the vendor's default wire implementation.
	Backend Backend
	Options Options

	// HTTPClient is filled in by New from Options unless already set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Factory builds a Client from a Config whose key and HTTP client are
// resolved.
type Factory func(cfg Config) (Client, error)

// Backend names a wire implementation.
type Backend string

// Backends.
const (
	BackendOpenAI  Backend = "openai"
	BackendFantasy Backend = "fantasy"
)

var (
	factoriesMu sync.RWMutex
	factories   = map[Backend]Factory{}
)

// Register makes a backend available to New. It panics when called twice for
// the same backend.
func Register(backend Backend, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("provider: Register factory is nil")
	}
	if _, dup := factories[backend]; dup {
		panic("provider: Register called twice for backend " + string(backend))
	}
	factories[backend] = factory
}

// Backends returns the registered backend names.
func Backends() []Backend {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]Backend, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New resolves cfg's credentials and transport and builds the client for its
// API.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.API == "" {
		return nil, errs.Error{Reason: "Missing API name."}
	}
	vendor, ok := LookupVendor(cfg.API)
	if !ok {
		if cfg.BaseURL == "" {
			return nil, errs.Error{
				Reason: fmt.Sprintf("Unknown API %q.", cfg.API),
				Err:    errs.UserErrorf("Set base-url for custom OpenAI-compatible endpoints."),
			}
		}
		vendor = Vendor{Name: cfg.API, Backend: BackendOpenAI, KeyOptional: true}
	}
	if cfg.Backend != "" {
		vendor.Backend = cfg.Backend
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = vendor.BaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	key, err := ResolveKey(ctx, cfg, vendor)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = key

	if cfg.HTTPClient == nil {
		hc, err := HTTPClient(cfg.Options)
		if err != nil {
			return nil, err
		}
		cfg.HTTPClient = hc
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	factoriesMu.RLock()
	factory, ok := factories[vendor.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errs.Error{Reason: fmt.Sprintf("No %s backend is compiled in for API %q.", vendor.Backend, cfg.API)}
	}
	client, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("new %s client: %w", cfg.API, err)
	}
	cfg.Logger.Debug("provider ready", "api", cfg.API, "backend", vendor.Backend, "base_url", cfg.BaseURL, "model", cfg.Options.Model)
	return client, nil
}
