package llm

import (
	"fmt"
	"os"
	"strings"
)

// Options selects and configures an oracle backend.
type Options struct {
	Provider  string // "openai" (default), "anthropic", "ollama"
	APIKey    string // falls back to OPENAI_API_KEY / ANTHROPIC_API_KEY
	BaseURL   string // OpenAI-compatible endpoint override
	OllamaURL string
}

// NewProvider builds the Provider named by opts. It returns ErrMissingAPIKey
// when a hosted provider has no key from either opts or the environment, and
// ErrProviderNotAvailable for unknown names.
func NewProvider(opts Options) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Provider))
	if name == "" {
		name = "openai"
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = envAPIKey(name)
	}

	switch name {
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
		if opts.BaseURL != "" {
			return NewOpenAIProviderWithBaseURL(apiKey, opts.BaseURL), nil
		}
		return NewOpenAIProvider(apiKey), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
		}
		p := NewAnthropicProvider(apiKey)
		if opts.BaseURL != "" {
			p.baseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		return p, nil
	case "ollama":
		return NewOllamaProvider(opts.OllamaURL), nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrProviderNotAvailable)
	}
}

// ProviderUsesAPIKey reports whether the named provider requires an API key.
func ProviderUsesAPIKey(providerName string) bool {
	switch providerName {
	case "openai", "anthropic", "":
		return true
	default:
		return false
	}
}

func envAPIKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}
