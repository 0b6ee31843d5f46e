package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/model"
)

// StaticProvider answers from a fixed table, typically loaded from YAML.
// Useful offline and as a deterministic solver in tests.
type StaticProvider struct {
	name     string
	answers  map[string][]model.SourceAnswer
	fallback []model.SourceAnswer
}

type staticFile struct {
	Questions []struct {
		Question string               `yaml:"question"`
		Sources  []model.SourceAnswer `yaml:"sources"`
	} `yaml:"questions"`
	Default []model.SourceAnswer `yaml:"default"`
}

// NewStaticProvider loads answers from config.File:
//
//	questions:
//	  - question: "Is water wet?"
//	    sources:
//	      - {title: "...", url: "https://...", answer: true, confidence: 0.9}
//	default: []
func NewStaticProvider(config Config) (*StaticProvider, error) {
	if config.File == "" {
		return nil, fmt.Errorf("static provider %q requires a file", config.name())
	}

	data, err := os.ReadFile(config.File)
	if err != nil {
		return nil, fmt.Errorf("read static answers: %w", err)
	}

	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse static answers: %w", err)
	}

	table := make(map[string][]model.SourceAnswer, len(f.Questions))
	for _, q := range f.Questions {
		table[q.Question] = q.Sources
	}

	p := NewStaticProviderFromAnswers(config.name(), table)
	p.fallback = f.Default
	return p, nil
}

// NewStaticProviderFromAnswers builds a provider from an in-memory table
func NewStaticProviderFromAnswers(name string, answers map[string][]model.SourceAnswer) *StaticProvider {
	if name == "" {
		name = "static"
	}
	table := make(map[string][]model.SourceAnswer, len(answers))
	for q, a := range answers {
		table[questionKey(q)] = a
	}
	return &StaticProvider{name: name, answers: table}
}

// Name returns the provider name
func (p *StaticProvider) Name() string {
	return p.name
}

// Ping always succeeds
func (p *StaticProvider) Ping(ctx context.Context) error {
	return nil
}

// FetchAnswers returns a copy of the answers for question
func (p *StaticProvider) FetchAnswers(ctx context.Context, question string) ([]model.SourceAnswer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found, ok := p.answers[questionKey(question)]
	if !ok {
		found = p.fallback
	}
	if len(found) == 0 {
		return nil, ErrNoAnswers
	}

	out := make([]model.SourceAnswer, len(found))
	for i, a := range found {
		a.Provider = p.name
		a.Rank = 0
		out[i] = a
	}
	return out, nil
}

func questionKey(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
