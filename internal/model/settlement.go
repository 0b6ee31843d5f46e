package model

import (
	"maps"
	"time"
)

// Winner names the prevailing party of a settlement
type Winner string

const (
	WinnerEvaluator  Winner = "evaluator"
	WinnerChallenger Winner = "challenger"
	WinnerTie        Winner = "tie"
)

// Settlement is the final reward/slashing outcome of a resolved intent.
// It is immutable once Hash is set.
type Settlement struct {
	Hash                 string            `json:"settlement_hash,omitempty"`
	EvaluationHash       string            `json:"evaluation_hash"`
	ChallengeHash        string            `json:"challenge_hash,omitempty"`
	Winner               Winner            `json:"winner"`
	RewardDistribution   map[string]Amount `json:"reward_distribution"`
	SlashingDistribution map[string]Amount `json:"slashing_distribution"`
	Timestamp            time.Time         `json:"timestamp"`
}

// RecordHash returns the content address of the record
func (s Settlement) RecordHash() string { return s.Hash }

// Clone returns a deep copy
func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	out := *s
	out.RewardDistribution = maps.Clone(s.RewardDistribution)
	out.SlashingDistribution = maps.Clone(s.SlashingDistribution)
	return &out
}

// RecordKind identifies a published record type
type RecordKind string

const (
	RecordEvaluation RecordKind = "evaluation"
	RecordChallenge  RecordKind = "challenge"
	RecordSettlement RecordKind = "settlement"
)

// Receipt acknowledges a record accepted by the ledger
type Receipt struct {
	Kind        RecordKind `json:"kind"`
	Hash        string     `json:"hash"`
	TxID        string     `json:"tx_id"`
	SubmittedAt time.Time  `json:"submitted_at"`
}
