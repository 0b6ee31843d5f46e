package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

var (
	// ErrNoAnswers is returned when a provider responded but cited no sources
	ErrNoAnswers = errors.New("provider returned no sources")

	// ErrMalformedResponse is returned when a response carries no parsable JSON
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Provider is one independent source of evidence for a question
type Provider interface {
	// Name returns the provider name, unique within a gateway
	Name() string

	// FetchAnswers asks the provider for source-backed answers to a yes/no question
	FetchAnswers(ctx context.Context, question string) ([]model.SourceAnswer, error)

	// Ping checks that the provider is configured and reachable
	Ping(ctx context.Context) error
}

// Config holds provider configuration
type Config struct {
	// Name identifies the provider; defaults to Kind
	Name string

	// Kind: "openai", "anthropic", "ollama", "static"
	Kind string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// File holds canned answers for the static provider
	File string

	// Timeout for API requests
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int

	// MaxSources requested per question
	MaxSources int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxTokens  = 1500
	defaultMaxSources = 5
)

// ConfigFromModel converts a configured provider entry to llm.Config
func ConfigFromModel(p model.ProviderConfig, h model.HTTPConfig) Config {
	return Config{
		Name:       p.Name,
		Kind:       p.Kind,
		Model:      p.Model,
		APIKey:     p.APIKey,
		BaseURL:    p.BaseURL,
		File:       p.File,
		Timeout:    p.Timeout,
		MaxTokens:  p.MaxTokens,
		HTTPProxy:  h.HTTPProxy,
		HTTPSProxy: h.HTTPSProxy,
		NoProxy:    h.NoProxy,
	}
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.ToLower(c.Kind)
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c Config) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return defaultMaxTokens
}

func (c Config) maxSources() int {
	if c.MaxSources > 0 {
		return c.MaxSources
	}
	return defaultMaxSources
}

const systemPrompt = "You are a research assistant that cites real, publicly accessible sources. You never invent URLs and you answer only with JSON."

// BuildPrompt constructs the evidence request for a yes/no question
func BuildPrompt(question string, maxSources int) string {
	if maxSources <= 0 {
		maxSources = defaultMaxSources
	}
	return fmt.Sprintf(`Question: %s

Find up to %d independent, publicly accessible sources that answer this yes/no question.

RULES:
1. Cite only URLs you are certain exist. Never invent or guess URLs.
2. Use distinct sources; do not cite the same page twice.
3. For each source, "answer" is true if the source supports "yes" and false if it supports "no".
4. "confidence" is a number between 0 and 1: how clearly the source states that answer.

Respond with JSON only, in exactly this shape:
{"sources":[{"title":"Source title","url":"https://example.org/page","answer":true,"confidence":0.9}]}`, strings.TrimSpace(question), maxSources)
}

// verdict accepts true/false as booleans or as "yes"/"no"/"true"/"false" strings
type verdict bool

func (v *verdict) UnmarshalJSON(b []byte) error {
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		*v = verdict(flag)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("answer must be a boolean: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		*v = true
	case "false", "no":
		*v = false
	default:
		return fmt.Errorf("answer must be a boolean, got %q", s)
	}
	return nil
}

type rawAnswer struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Answer     verdict `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// ParseAnswers extracts source answers from a model response. The first
// JSON value in text is used; it may be an array of sources or an object
// with a "sources" array. Surrounding prose and code fences are ignored.
func ParseAnswers(provider, text string) ([]model.SourceAnswer, error) {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON found", ErrMalformedResponse)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var items []rawAnswer
	raw = bytes.TrimSpace(raw)
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		var wrapped struct {
			Sources []rawAnswer `json:"sources"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		items = wrapped.Sources
	}

	if len(items) == 0 {
		return nil, ErrNoAnswers
	}

	answers := make([]model.SourceAnswer, 0, len(items))
	for _, it := range items {
		answers = append(answers, model.SourceAnswer{
			Source:     model.Source{Title: strings.TrimSpace(it.Title), URL: strings.TrimSpace(it.URL)},
			Answer:     bool(it.Answer),
			Confidence: it.Confidence,
			Provider:   provider,
		})
	}
	return answers, nil
}
