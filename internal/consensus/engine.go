// Package consensus aggregates per-source answers into a single verdict.
package consensus

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ppiankov/veracity/internal/hashing"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/validate"
)

// Params controls a single evaluation run
type Params struct {
	RequiredSources     int
	ConfidenceThreshold float64
	Algorithm           model.Algorithm
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	if p.RequiredSources < 1 {
		return fmt.Errorf("%w: required sources must be >= 1, got %d", ErrInvalidParams, p.RequiredSources)
	}
	if math.IsNaN(p.ConfidenceThreshold) || p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be in [0,1], got %v", ErrInvalidParams, p.ConfidenceThreshold)
	}
	if !p.Algorithm.Valid() {
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParams, p.Algorithm)
	}
	return nil
}

// ParamsFromConfig extracts engine defaults from configuration
func ParamsFromConfig(cfg model.ConsensusConfig) Params {
	return Params{
		RequiredSources:     cfg.RequiredSources,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Algorithm:           cfg.Algorithm,
	}
}

// Engine evaluates questions. It holds no state between runs and is safe
// for concurrent use.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate validates, deduplicates, filters outliers and aggregates answers.
//
// The returned Evaluation is never nil and its status is always evaluated or
// error. On failure the error wraps one of ErrInsufficientSources,
// ErrLowConfidence, ErrInconclusive or ErrInvalidParams.
//
// Answers are deduplicated by normalized URL; among duplicates the lowest Rank
// wins, then input position.
func (e *Engine) Evaluate(question string, answers []model.SourceAnswer, p Params) (*model.Evaluation, error) {
	start := e.now()
	ev := &model.Evaluation{
		Question:  question,
		Algorithm: p.Algorithm,
		Status:    model.EvaluationPending,
	}

	finish := func(status model.EvaluationStatus, reason model.FailureReason) {
		now := e.now()
		ev.Status = status
		ev.Failure = reason
		ev.Timestamp = now.UTC()
		ev.ExecutionTime = now.Sub(start)
	}

	if err := p.Validate(); err != nil {
		finish(model.EvaluationError, model.FailureNone)
		return ev, err
	}

	valid, _ := validate.Filter(answers)
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Rank < valid[j].Rank })
	distinct := validate.DeduplicateAnswers(valid)
	ev.Considered = len(distinct)
	ev.Discarded = len(answers) - len(distinct)

	if len(distinct) < p.RequiredSources {
		finish(model.EvaluationError, model.FailureInsufficientSources)
		return ev, fmt.Errorf("%w: %d distinct valid sources, %d required", ErrInsufficientSources, len(distinct), p.RequiredSources)
	}

	canonicalOrder(distinct)
	kept, dropped := RejectOutliers(distinct, p.RequiredSources)
	ev.Sources = model.Sources(kept)
	ev.Outliers = model.Sources(dropped)

	answer, confidence, err := Aggregate(p.Algorithm, kept)
	if err != nil {
		finish(model.EvaluationError, model.FailureInconclusive)
		return ev, err
	}
	ev.Answer = answer
	ev.Confidence = confidence

	if confidence < p.ConfidenceThreshold {
		finish(model.EvaluationError, model.FailureLowConfidence)
		return ev, fmt.Errorf("%w: %.4f < %.4f", ErrLowConfidence, confidence, p.ConfidenceThreshold)
	}

	hash, err := hashing.EvaluationHash(question, ev.Sources, answer)
	if err != nil {
		finish(model.EvaluationError, model.FailureNone)
		return ev, fmt.Errorf("hash evaluation: %w", err)
	}
	ev.Hash = hash
	finish(model.EvaluationEvaluated, model.FailureNone)
	return ev, nil
}

// canonicalOrder sorts answers by normalized URL so that every floating
// point reduction sees the same sequence regardless of arrival order.
func canonicalOrder(answers []model.SourceAnswer) {
	sort.SliceStable(answers, func(i, j int) bool {
		ki, kj := validate.Normalize(answers[i].URL), validate.Normalize(answers[j].URL)
		if ki != kj {
			return ki < kj
		}
		return answers[i].Title < answers[j].Title
	})
}
