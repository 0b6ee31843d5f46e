// Package hashing produces content addresses for protocol records: the
// hex-encoded SHA-256 of the record's RFC 8785 canonical JSON form.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrMismatch is returned by the Verify helpers when a stored hash is stale or forged
var ErrMismatch = errors.New("hash mismatch")

// Canonical returns the canonical JSON form of v: object keys sorted
// recursively, no insignificant whitespace, ECMAScript number formatting.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("hashing: marshal: %w", err)
	}
	return CanonicalJSON(raw)
}

// CanonicalJSON canonicalizes an already encoded JSON document
func CanonicalJSON(raw []byte) ([]byte, error) {
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("hashing: canonicalize: %w", err)
	}
	return out, nil
}

// Digest returns the hex SHA-256 of the canonical form of v.
// Equal values always produce equal digests regardless of map ordering.
func Digest(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return Sum(b), nil
}

// DigestJSON is Digest for raw JSON input
func DigestJSON(raw []byte) (string, error) {
	b, err := CanonicalJSON(raw)
	if err != nil {
		return "", err
	}
	return Sum(b), nil
}

// Sum hashes raw bytes
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// evaluationContent is the hashed projection of an evaluation
type evaluationContent struct {
	Question string         `json:"question"`
	Sources  []model.Source `json:"sources"`
	Answer   bool           `json:"answer"`
}

// EvaluationHash digests {question, sorted sources, answer}. Sources are
// sorted by URL then title, so input order never affects the hash.
func EvaluationHash(question string, sources []model.Source, answer bool) (string, error) {
	return Digest(evaluationContent{
		Question: question,
		Sources:  SortSources(sources),
		Answer:   answer,
	})
}

// SortSources returns a sorted copy (URL, then title)
func SortSources(sources []model.Source) []model.Source {
	out := append([]model.Source{}, sources...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// evidenceContent is the hashed projection of one counter-evidence item.
// Provider and rank describe how the answer was gathered, not what it says.
type evidenceContent struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Answer     bool    `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// challengeContent is the hashed projection of a challenge
type challengeContent struct {
	EvaluationHash  string            `json:"evaluation_hash"`
	Challenger      string            `json:"challenger"`
	Stake           model.Amount      `json:"challenge_stake"`
	CounterEvidence []evidenceContent `json:"counter_evidence"`
	SubmittedAt     time.Time         `json:"submitted_at"`
}

// ChallengeHash digests the challenge without its own hash field. Counter
// evidence is sorted like evaluation sources, so its order never affects the hash.
func ChallengeHash(c *model.RefutationChallenge) (string, error) {
	if c == nil {
		return "", errors.New("hashing: nil challenge")
	}
	evidence := make([]evidenceContent, len(c.CounterEvidence))
	for i, a := range c.CounterEvidence {
		evidence[i] = evidenceContent{Title: a.Title, URL: a.URL, Answer: a.Answer, Confidence: a.Confidence}
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		a, b := evidence[i], evidence[j]
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		if a.Answer != b.Answer {
			return !a.Answer
		}
		return a.Confidence < b.Confidence
	})
	return Digest(challengeContent{
		EvaluationHash:  c.EvaluationHash,
		Challenger:      c.Challenger,
		Stake:           c.Stake,
		CounterEvidence: evidence,
		SubmittedAt:     c.SubmittedAt.UTC(),
	})
}

// SettlementHash digests the settlement record without its own hash field
func SettlementHash(s *model.Settlement) (string, error) {
	if s == nil {
		return "", errors.New("hashing: nil settlement")
	}
	cp := *s
	cp.Hash = ""
	cp.Timestamp = cp.Timestamp.UTC()
	return Digest(cp)
}

// VerifyEvaluation recomputes an evaluation's hash from its content
func VerifyEvaluation(question string, sources []model.Source, answer bool, hash string) error {
	got, err := EvaluationHash(question, sources, answer)
	if err != nil {
		return err
	}
	return compare(hash, got)
}

// VerifyChallenge recomputes a challenge's hash
func VerifyChallenge(c *model.RefutationChallenge) error {
	got, err := ChallengeHash(c)
	if err != nil {
		return err
	}
	return compare(c.Hash, got)
}

// VerifySettlement recomputes a settlement's hash
func VerifySettlement(s *model.Settlement) error {
	got, err := SettlementHash(s)
	if err != nil {
		return err
	}
	return compare(s.Hash, got)
}

func compare(want, got string) error {
	if want != got {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrMismatch, want, got)
	}
	return nil
}
