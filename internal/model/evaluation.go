package model

import (
	"fmt"
	"strings"
	"time"
)

// EvaluationStatus is the outcome state of a consensus run
type EvaluationStatus string

const (
	EvaluationPending   EvaluationStatus = "pending"
	EvaluationEvaluated EvaluationStatus = "evaluated"
	EvaluationError     EvaluationStatus = "error"
)

// Algorithm selects how per-source answers are aggregated
type Algorithm string

const (
	AlgorithmMedian          Algorithm = "median"
	AlgorithmWeightedAverage Algorithm = "weighted_average"
	AlgorithmMajorityVote    Algorithm = "majority_vote"
)

// Valid reports whether a is a known algorithm
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmMedian, AlgorithmWeightedAverage, AlgorithmMajorityVote:
		return true
	}
	return false
}

// ParseAlgorithm accepts the canonical names plus a few spellings seen in config files
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "median":
		return AlgorithmMedian, nil
	case "weighted_average", "weighted", "weightedaverage":
		return AlgorithmWeightedAverage, nil
	case "majority_vote", "majority", "majorityvote":
		return AlgorithmMajorityVote, nil
	}
	return "", fmt.Errorf("unknown algorithm: %s (supported: median, weighted_average, majority_vote)", s)
}

// FailureReason explains why an evaluation or intent ended in error
type FailureReason string

const (
	FailureNone                FailureReason = ""
	FailureInsufficientSources FailureReason = "insufficient_sources"
	FailureLowConfidence       FailureReason = "low_confidence"
	FailureInconclusive        FailureReason = "inconclusive"
	FailureDeadlineExceeded    FailureReason = "deadline_exceeded"
)

// Evaluation is a consensus verdict plus the evidence behind it.
// Hash is assigned exactly once, when Status becomes evaluated.
type Evaluation struct {
	Hash          string           `json:"evaluation_hash,omitempty"`
	Question      string           `json:"question"`
	Sources       []Source         `json:"sources"`            // Surviving evidence, canonical order
	Outliers      []Source         `json:"outliers,omitempty"` // Dropped by 3-sigma rejection
	Answer        bool             `json:"answer"`
	Confidence    float64          `json:"confidence"`
	Status        EvaluationStatus `json:"status"`
	Failure       FailureReason    `json:"failure,omitempty"`
	Algorithm     Algorithm        `json:"algorithm"`
	Considered    int              `json:"considered"`         // Distinct valid sources before outlier rejection
	Discarded     int              `json:"discarded"`          // Invalid or duplicate inputs
	SolverID      string           `json:"solver_id,omitempty"`
	Stake         Amount           `json:"stake"`
	ExecutionTime time.Duration    `json:"execution_time"`
	Timestamp     time.Time        `json:"timestamp"`
}

// PublishedEvaluation is the externally verifiable evaluation record
type PublishedEvaluation struct {
	EvaluationHash string    `json:"evaluation_hash"`
	Question       string    `json:"question"`
	Answer         bool      `json:"answer"`
	Confidence     float64   `json:"confidence"`
	Sources        []Source  `json:"sources"`
	ExecutionTime  int64     `json:"execution_time"` // milliseconds
	SolverID       string    `json:"solver_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecordHash returns the content address of the record
func (p PublishedEvaluation) RecordHash() string { return p.EvaluationHash }

// Published projects the evaluation onto its stable record shape
func (e *Evaluation) Published() PublishedEvaluation {
	return PublishedEvaluation{
		EvaluationHash: e.Hash,
		Question:       e.Question,
		Answer:         e.Answer,
		Confidence:     e.Confidence,
		Sources:        append([]Source(nil), e.Sources...),
		ExecutionTime:  e.ExecutionTime.Milliseconds(),
		SolverID:       e.SolverID,
		Timestamp:      e.Timestamp.UTC(),
	}
}

// Clone returns a deep copy
func (e *Evaluation) Clone() *Evaluation {
	if e == nil {
		return nil
	}
	out := *e
	out.Sources = append([]Source(nil), e.Sources...)
	out.Outliers = append([]Source(nil), e.Outliers...)
	return &out
}
