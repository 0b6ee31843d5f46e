package model

import "time"

// IntentType distinguishes the three kinds of protocol intents
type IntentType string

const (
	IntentCredibilityEvaluation IntentType = "credibility_evaluation"
	IntentRefutationChallenge   IntentType = "refutation_challenge"
	IntentOracleSettlement      IntentType = "oracle_settlement"
)

// IntentStatus is the lifecycle state of an intent
type IntentStatus string

const (
	StatusPending    IntentStatus = "pending"
	StatusEvaluated  IntentStatus = "evaluated"
	StatusChallenged IntentStatus = "challenged"
	StatusSettled    IntentStatus = "settled"
	StatusError      IntentStatus = "error"
)

// Terminal reports whether no further transition is possible
func (s IntentStatus) Terminal() bool {
	return s == StatusSettled || s == StatusError
}

// Intent is a credibility question and everything the protocol has decided about it.
// Evaluation, Challenge and Settlement are owned by the intent.
type Intent struct {
	ID                  string               `json:"id"`
	Type                IntentType           `json:"type"`
	Initiator           string               `json:"initiator,omitempty"`
	Question            string               `json:"question"`
	RequiredSources     int                  `json:"required_sources"`
	ConfidenceThreshold float64              `json:"confidence_threshold"`
	Algorithm           Algorithm            `json:"algorithm"`
	Deadline            time.Time            `json:"deadline"`
	Reward              Amount               `json:"reward"`
	Status              IntentStatus         `json:"status"`
	Failure             FailureReason        `json:"failure,omitempty"`
	Evaluation          *Evaluation          `json:"evaluation,omitempty"`
	Challenge           *RefutationChallenge `json:"challenge,omitempty"`
	Settlement          *Settlement          `json:"settlement,omitempty"`
	Receipts            []Receipt            `json:"receipts,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// EvaluationHash returns the hash of the evaluation, if any
func (i *Intent) EvaluationHash() string {
	if i.Evaluation == nil {
		return ""
	}
	return i.Evaluation.Hash
}

// Receipt returns the ledger receipt for a record kind
func (i *Intent) Receipt(kind RecordKind) (Receipt, bool) {
	for _, r := range i.Receipts {
		if r.Kind == kind {
			return r, true
		}
	}
	return Receipt{}, false
}

// Clone returns a deep copy so stores never share mutable state with callers
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	out := *i
	out.Evaluation = i.Evaluation.Clone()
	out.Challenge = i.Challenge.Clone()
	out.Settlement = i.Settlement.Clone()
	out.Receipts = append([]Receipt(nil), i.Receipts...)
	return &out
}

// IntentSpec is a request submitted to the lifecycle. The set of
// implementations is closed: CredibilitySpec, ChallengeSpec, SettlementSpec.
type IntentSpec interface {
	IntentType() IntentType
	isIntentSpec()
}

// CredibilitySpec asks the protocol to evaluate a factual question
type CredibilitySpec struct {
	Question            string
	Initiator           string
	RequiredSources     int      // 0 selects the configured default
	ConfidenceThreshold *float64 // nil selects the configured default
	Algorithm           Algorithm
	Deadline            time.Time // zero selects now + configured default
	Reward              Amount
}

// ChallengeSpec disputes an evaluation. The target is named by its
// evaluation hash, by intent id, or by both when they agree.
type ChallengeSpec struct {
	EvaluationHash  string
	IntentID        string
	Challenger      string
	Stake           Amount
	CounterEvidence []SourceAnswer
}

// SettlementSpec asks the protocol to settle an intent
type SettlementSpec struct {
	IntentID string
}

func (CredibilitySpec) IntentType() IntentType { return IntentCredibilityEvaluation }
func (ChallengeSpec) IntentType() IntentType   { return IntentRefutationChallenge }
func (SettlementSpec) IntentType() IntentType  { return IntentOracleSettlement }

func (CredibilitySpec) isIntentSpec() {}
func (ChallengeSpec) isIntentSpec()   {}
func (SettlementSpec) isIntentSpec()  {}
