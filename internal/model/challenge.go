package model

import "time"

// RefutationChallenge disputes an evaluation with disjoint counter-evidence
type RefutationChallenge struct {
	Hash            string         `json:"challenge_hash,omitempty"`
	EvaluationHash  string         `json:"evaluation_hash"`
	Challenger      string         `json:"challenger"`
	Stake           Amount         `json:"challenge_stake"`
	CounterEvidence []SourceAnswer `json:"counter_evidence"`
	SubmittedAt     time.Time      `json:"submitted_at"`
}

// RecordHash returns the content address of the record
func (c RefutationChallenge) RecordHash() string { return c.Hash }

// Clone returns a deep copy
func (c *RefutationChallenge) Clone() *RefutationChallenge {
	if c == nil {
		return nil
	}
	out := *c
	out.CounterEvidence = append([]SourceAnswer(nil), c.CounterEvidence...)
	return &out
}
