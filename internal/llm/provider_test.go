package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("  Is the Eiffel Tower in Paris?  ", 4)

	for _, want := range []string{
		"Question: Is the Eiffel Tower in Paris?",
		"up to 4 independent",
		`"sources"`,
		"Never invent",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if !strings.Contains(BuildPrompt("q", 0), "up to 5 independent") {
		t.Error("expected default source count when maxSources is 0")
	}
}

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []model.SourceAnswer
		wantErr error
	}{
		{
			name: "wrapped object",
			text: `{"sources":[{"title":"A","url":"https://a.org","answer":true,"confidence":0.9}]}`,
			want: []model.SourceAnswer{{Source: model.Source{Title: "A", URL: "https://a.org"}, Answer: true, Confidence: 0.9, Provider: "p"}},
		},
		{
			name: "bare array",
			text: `[{"title":"B","url":"https://b.org","answer":false,"confidence":0.4}]`,
			want: []model.SourceAnswer{{Source: model.Source{Title: "B", URL: "https://b.org"}, Answer: false, Confidence: 0.4, Provider: "p"}},
		},
		{
			name: "code fence and prose",
			text: "Here you go:\n```json\n{\"sources\":[{\"title\":\" C \",\"url\":\" https://c.org \",\"answer\":\"yes\",\"confidence\":0.7}]}\n```\nHope that helps.",
			want: []model.SourceAnswer{{Source: model.Source{Title: "C", URL: "https://c.org"}, Answer: true, Confidence: 0.7, Provider: "p"}},
		},
		{
			name: "string verdict no",
			text: `[{"title":"D","url":"https://d.org","answer":"No","confidence":0.8}]`,
			want: []model.SourceAnswer{{Source: model.Source{Title: "D", URL: "https://d.org"}, Answer: false, Confidence: 0.8, Provider: "p"}},
		},
		{
			name:    "no json",
			text:    "I cannot answer that.",
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "truncated json",
			text:    `{"sources":[{"title":"A"`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "bad verdict",
			text:    `[{"title":"A","url":"https://a.org","answer":"maybe","confidence":0.5}]`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "empty sources",
			text:    `{"sources":[]}`,
			wantErr: ErrNoAnswers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswers("p", tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d answers, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("answer %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(
		model.ProviderConfig{Name: "gpt", Kind: "openai", Model: "gpt-4o", APIKey: "k", MaxTokens: 10},
		model.HTTPConfig{HTTPSProxy: "http://proxy:8080"},
	)

	if cfg.Name != "gpt" || cfg.Kind != "openai" || cfg.Model != "gpt-4o" || cfg.APIKey != "k" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.HTTPSProxy != "http://proxy:8080" {
		t.Errorf("expected proxy to carry over, got %q", cfg.HTTPSProxy)
	}
	if cfg.maxTokens() != 10 {
		t.Errorf("expected max tokens 10, got %d", cfg.maxTokens())
	}
	if (Config{Kind: "Ollama"}).name() != "ollama" {
		t.Error("expected name to default to lowercased kind")
	}
}

func TestNewProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	tests := []struct {
		name    string
		config  Config
		want    string
		wantErr bool
	}{
		{"openai", Config{Kind: "openai", APIKey: "k"}, "openai", false},
		{"openai without key", Config{Kind: "openai"}, "", true},
		{"anthropic alias", Config{Kind: "claude", Name: "haiku", APIKey: "k"}, "haiku", false},
		{"anthropic without key", Config{Kind: "anthropic"}, "", true},
		{"ollama", Config{Kind: "ollama", Model: "llama3.1:8b"}, "ollama", false},
		{"ollama without model", Config{Kind: "ollama"}, "", true},
		{"static without file", Config{Kind: "static"}, "", true},
		{"unknown", Config{Kind: "gemini"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("expected name %q, got %q", tt.want, p.Name())
			}
		})
	}
}

func TestNewProvider_EnvKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")

	p, err := NewProvider(Config{Kind: "openai"})
	if err != nil {
		t.Fatalf("expected key from environment, got %v", err)
	}
	if p.(*OpenAIProvider).config.APIKey != "from-env" {
		t.Error("expected API key from environment")
	}
}
