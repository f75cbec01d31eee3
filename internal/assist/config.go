package assist

import (
	"context"
	"fmt"
	"log"
	"os"
)

// ProviderConfig configures one entry of the rotation.
type ProviderConfig struct {
	// Name selects the backend: "anthropic", "openai", "openrouter", "gemini", "static".
	Name    string `yaml:"name"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
	// Text is the canned answer of the static provider.
	Text string `yaml:"text"`
}

// apiKeyEnv lists the environment variable consulted when a provider has no key in YAML.
var apiKeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// NewProvider builds a single provider from cfg.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		if env, ok := apiKeyEnv[cfg.Name]; ok {
			cfg.APIKey = os.Getenv(env)
		}
	}
	switch cfg.Name {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "openrouter":
		return NewOpenRouterProvider(cfg)
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "static":
		return StaticProvider{Text: cfg.Text}, nil
	default:
		return nil, fmt.Errorf("unknown assist provider: %q", cfg.Name)
	}
}

// NewProviders builds the rotation in configured order. Providers that cannot be
// initialized are skipped with a warning; an empty rotation makes every call fall back.
func NewProviders(ctx context.Context, cfgs []ProviderConfig) []Provider {
	providers := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := NewProvider(ctx, cfg)
		if err != nil {
			log.Printf("assist: skipping provider %s: %v", cfg.Name, err)
			continue
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		log.Printf("assist: no providers configured, AI features will use static fallbacks")
	}
	return providers
}
