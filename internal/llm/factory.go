package llm

import (
	"fmt"
	"os"
	"strings"
)

// NewProvider creates a provider based on configuration. Missing API keys
// fall back to OPENAI_API_KEY / ANTHROPIC_API_KEY.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Kind) {
	case "openai":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "static":
		return NewStaticProvider(config)

	default:
		return nil, fmt.Errorf("unknown provider kind: %q (supported: openai, anthropic, ollama, static)", config.Kind)
	}
}
