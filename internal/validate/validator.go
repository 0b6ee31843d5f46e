package validate

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrInvalidSource marks a source that failed structural validation
var ErrInvalidSource = errors.New("invalid source")

// trackingParams are query parameters that never change the addressed document
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
}

// Issue describes one rejected input. Issues are reported, never fatal.
type Issue struct {
	Index  int    // Position in the input slice
	URL    string // Raw URL as given
	Reason string
}

func (i Issue) Error() string {
	return fmt.Sprintf("source %d (%s): %s", i.Index, i.URL, i.Reason)
}

// Unwrap lets callers match issues with errors.Is(err, ErrInvalidSource)
func (i Issue) Unwrap() error { return ErrInvalidSource }

// Validate reports whether a source has a title and an absolute http(s) URL
func Validate(s model.Source) bool {
	return reason(s) == ""
}

func reason(s model.Source) string {
	if strings.TrimSpace(s.Title) == "" {
		return "empty title"
	}
	if strings.TrimSpace(s.URL) == "" {
		return "empty url"
	}
	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil {
		return "unparsable url"
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "scheme must be http or https"
	}
	if u.Hostname() == "" {
		return "missing host"
	}
	return ""
}

// Normalize canonicalizes a URL for deduplication: lowercases scheme and host,
// strips tracking parameters and the fragment. Unparsable input is returned unchanged.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
				q.Del(key)
			}
		}
		// Encode sorts keys, so parameter order does not matter
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// Deduplicate keeps the first occurrence of each normalized URL, preserving order
func Deduplicate(sources []model.Source) []model.Source {
	return dedupe(sources, func(s model.Source) string { return s.URL })
}

// DeduplicateAnswers is Deduplicate for provider answers. Callers that want
// provider priority to win must order answers by rank first.
func DeduplicateAnswers(answers []model.SourceAnswer) []model.SourceAnswer {
	return dedupe(answers, func(a model.SourceAnswer) string { return a.URL })
}

func dedupe[T any](items []T, rawURL func(T) string) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key := Normalize(rawURL(item))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// Filter splits answers into structurally valid ones and issues for the rest.
// Confidence must be a number in [0,1].
func Filter(answers []model.SourceAnswer) ([]model.SourceAnswer, []Issue) {
	valid := make([]model.SourceAnswer, 0, len(answers))
	var issues []Issue
	for i, a := range answers {
		r := reason(a.Source)
		if r == "" && (math.IsNaN(a.Confidence) || a.Confidence < 0 || a.Confidence > 1) {
			r = fmt.Sprintf("confidence %v out of range [0,1]", a.Confidence)
		}
		if r != "" {
			issues = append(issues, Issue{Index: i, URL: a.URL, Reason: r})
			continue
		}
		valid = append(valid, a)
	}
	return valid, issues
}

// DisjointFrom reports whether no source in b shares a normalized URL with a
func DisjointFrom(a []model.Source, b []model.Source) bool {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[Normalize(s.URL)] = true
	}
	for _, s := range b {
		if seen[Normalize(s.URL)] {
			return false
		}
	}
	return true
}
