// Package llm talks to hosted and local language-model services behind a
// single-call Completer interface.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// Prompt is one completion request.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Completer issues a single completion request and returns the raw text.
// Implementations make exactly one attempt per call.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Options configures a provider.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the Completer for opts.Provider. It returns (nil, nil) when the
// provider needs an API key and none is configured; callers treat that as
// "no model available".
func New(ctx context.Context, opts Options) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = ProviderOpenRouter
	}

	switch provider {
	case ProviderOpenRouter:
		if opts.APIKey == "" {
			return nil, nil
		}
		c := NewOpenRouter(opts.APIKey, opts.Model, opts.Timeout)
		if opts.BaseURL != "" {
			c = c.WithBaseURL(opts.BaseURL)
		}
		return c, nil
	case ProviderGemini:
		if opts.APIKey == "" {
			return nil, nil
		}
		g, err := NewGemini(ctx, opts.APIKey, opts.Model, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOllama:
		return NewOllama(opts.BaseURL, opts.Model, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
