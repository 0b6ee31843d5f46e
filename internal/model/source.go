package model

// Source is a titled evidence URL cited in support of an answer
type Source struct {
	Title string `json:"title" yaml:"title"` // Human-readable title
	URL   string `json:"url" yaml:"url"`     // http(s) URL
}

// SourceAnswer is one provider's verdict on the question, backed by one source
type SourceAnswer struct {
	Source     `yaml:",inline"`
	Answer     bool    `json:"answer" yaml:"answer"`
	Confidence float64 `json:"confidence" yaml:"confidence"`         // 0..1
	Provider   string  `json:"provider,omitempty" yaml:"provider"`   // Which provider returned it
	Rank       int     `json:"rank,omitempty" yaml:"rank,omitempty"` // Provider priority rank, lower wins dedup ties
}

// Sources strips the verdicts and returns the underlying sources
func Sources(answers []SourceAnswer) []Source {
	out := make([]Source, len(answers))
	for i, a := range answers {
		out[i] = a.Source
	}
	return out
}

// ReliabilityTier is the static reliability classification of a source's domain
type ReliabilityTier int

const (
	TierLow    ReliabilityTier = 0 // Unknown or unparsable domains
	TierMedium ReliabilityTier = 1 // Encyclopedias, major newspapers
	TierHigh   ReliabilityTier = 2 // Government, academic, wire services, journals
)

func (t ReliabilityTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalText encodes the tier by name
func (t ReliabilityTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Classification partitions sources by reliability tier
type Classification struct {
	High   []Source `json:"high"`
	Medium []Source `json:"medium"`
	Low    []Source `json:"low"`
}
