package ai

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(ctx context.Context, cfg RuntimeConfig) (Runtime, error)

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	// HTTPTimeout of zero keeps the client library's default.
	HTTPTimeout time.Duration
	APIKey      string
	// BaseURL overrides the provider endpoint (tests, proxies).
	BaseURL string
	// Ollama
	Host string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// Providers lists registered provider names in sorted order.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetRuntime creates a Runtime for the given provider.
func GetRuntime(ctx context.Context, name string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, Providers())
	}
	return f(ctx, cfg)
}

// init registers built-in runtimes.
func init() {
	RegisterRuntime(ProviderGroq, func(_ context.Context, c RuntimeConfig) (Runtime, error) {
		if c.BaseURL == "" {
			c.BaseURL = GroqBaseURL
		}
		return NewOpenAIClient(ProviderGroq, c), nil
	})
	RegisterRuntime(ProviderOpenAI, func(_ context.Context, c RuntimeConfig) (Runtime, error) {
		return NewOpenAIClient(ProviderOpenAI, c), nil
	})
	RegisterRuntime(ProviderOpenRouter, func(_ context.Context, c RuntimeConfig) (Runtime, error) {
		return NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.BaseURL), nil
	})
	RegisterRuntime(ProviderOllama, func(_ context.Context, c RuntimeConfig) (Runtime, error) {
		return NewOllamaClient(c.Host, c.HTTPTimeout), nil
	})
	RegisterRuntime(ProviderGemini, func(ctx context.Context, c RuntimeConfig) (Runtime, error) {
		return NewGeminiClient(ctx, c)
	})
}
