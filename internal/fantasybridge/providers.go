package fantasybridge

import (
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/azure"
	"charm.land/fantasy/providers/bedrock"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"charm.land/fantasy/providers/openrouter"
	"charm.land/fantasy/providers/vercel"
)

const (
	apiAnthropic  = "anthropic"
	apiGoogle     = "google"
	apiOpenAI     = "openai"
	apiAzure      = "azure"
	apiAzureAD    = "azure-ad"
	apiOpenRouter = "openrouter"
	apiVercel     = "vercel"
	apiBedrock    = "bedrock"
)

// providerAPI folds API aliases onto the fantasy provider that serves them.
func providerAPI(api string) string {
	if api == apiAzureAD {
		return apiAzure
	}
	return api
}

func newProvider(api, baseURL, key string, hc *http.Client) (fantasy.Provider, error) {
	var (
		p   fantasy.Provider
		err error
	)
	switch providerAPI(api) {
	case apiOpenAI:
		opts := []fopenai.Option{fopenai.WithAPIKey(key)}
		if baseURL != "" {
			opts = append(opts, fopenai.WithBaseURL(baseURL))
		}
		if hc != nil {
			opts = append(opts, fopenai.WithHTTPClient(hc))
		}
		p, err = fopenai.New(opts...)
	case apiAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(key)}
		if baseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(baseURL, "/v1")))
		}
		if hc != nil {
			opts = append(opts, anthropic.WithHTTPClient(hc))
		}
		p, err = anthropic.New(opts...)
	case apiGoogle:
		opts := []fgoogle.Option{fgoogle.WithGeminiAPIKey(key)}
		if baseURL != "" {
			opts = append(opts, fgoogle.WithBaseURL(baseURL))
		}
		if hc != nil {
			opts = append(opts, fgoogle.WithHTTPClient(hc))
		}
		p, err = fgoogle.New(opts...)
	case apiAzure:
		opts := []azure.Option{azure.WithAPIKey(key), azure.WithBaseURL(baseURL)}
		if hc != nil {
			opts = append(opts, azure.WithHTTPClient(hc))
		}
		p, err = azure.New(opts...)
	case apiOpenRouter:
		opts := []openrouter.Option{openrouter.WithAPIKey(key)}
		if hc != nil {
			opts = append(opts, openrouter.WithHTTPClient(hc))
		}
		p, err = openrouter.New(opts...)
	case apiVercel:
		opts := []vercel.Option{vercel.WithAPIKey(key)}
		if baseURL != "" {
			opts = append(opts, vercel.WithBaseURL(baseURL))
		}
		if hc != nil {
			opts = append(opts, vercel.WithHTTPClient(hc))
		}
		p, err = vercel.New(opts...)
	case apiBedrock:
		var opts []bedrock.Option
		if key != "" {
			opts = append(opts, bedrock.WithAPIKey(key))
		}
		if hc != nil {
			opts = append(opts, bedrock.WithHTTPClient(hc))
		}
		p, err = bedrock.New(opts...)
	default:
		opts := []fopenaicompat.Option{fopenaicompat.WithName(api)}
		if key != "" {
			opts = append(opts, fopenaicompat.WithAPIKey(key))
		}
		if baseURL != "" {
			opts = append(opts, fopenaicompat.WithBaseURL(baseURL))
		}
		if hc != nil {
			opts = append(opts, fopenaicompat.WithHTTPClient(hc))
		}
		p, err = fopenaicompat.New(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("new fantasy %s provider: %w", api, err)
	}
	return p, nil
}
