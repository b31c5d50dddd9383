package ai

import (
	"context"
	"time"
)

// Runtime turns a chat request into a completion. The narrator only needs
// the single-shot form; both the OpenRouter-compatible client and the local
// Ollama client implement it.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider names accepted by NewRuntime.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// RuntimeConfig carries the HTTP and retry knobs shared by all runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// APIKey is required by OpenRouter and ignored by Ollama.
	APIKey string
	// BaseURL overrides the provider endpoint (Ollama host or an OpenAI-compatible URL).
	BaseURL string
}

// RuntimeFactory builds a Runtime from a RuntimeConfig.
type RuntimeFactory func(RuntimeConfig) Runtime

var registry = map[string]RuntimeFactory{}

// RegisterRuntime makes a provider available to NewRuntime.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// NewRuntime creates the runtime registered under provider.
func NewRuntime(provider string, cfg RuntimeConfig) (Runtime, bool) {
	f, ok := registry[provider]
	if !ok {
		return nil, false
	}
	return f(cfg), true
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewClient(c.APIKey, c.BaseURL, retryPolicy{
			timeout:  orDuration(c.HTTPTimeout, 60*time.Second),
			attempts: orInt(c.RetryMax, 3),
			base:     orDuration(c.BaseDelay, 500*time.Millisecond),
			max:      orDuration(c.MaxDelay, 4*time.Second),
		})
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.BaseURL, retryPolicy{
			timeout:  orDuration(c.HTTPTimeout, 60*time.Second),
			attempts: orInt(c.RetryMax, 2),
			base:     orDuration(c.BaseDelay, 200*time.Millisecond),
			max:      orDuration(c.MaxDelay, time.Second),
		})
	})
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
