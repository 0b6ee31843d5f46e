package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("intent not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStale means gathered answers arrived after the intent left pending
	// and were discarded
	ErrStale = errors.New("stale result discarded")

	ErrDeadlineExceeded     = errors.New("intent deadline exceeded")
	ErrChallengeWindowOpen  = errors.New("challenge window still open")
	ErrChallengeRejected    = errors.New("challenge rejected")
	ErrChallengeConflict    = errors.New("challenge already accepted for this evaluation")
	ErrInsufficientStake    = errors.New("insufficient stake")
	ErrEvaluationInProgress = errors.New("evaluation already in progress")
	ErrUnknownIntentType    = errors.New("unknown intent type")
	ErrNoGatherer           = errors.New("no evidence gatherer configured")
	ErrNoChain              = errors.New("no ledger configured")

	// ErrPublish wraps ledger failures. The state change it follows is
	// already committed; Publish can be called again.
	ErrPublish = errors.New("publish failed")
)

// RejectReason says why a challenge was not accepted
type RejectReason string

const (
	RejectStakeTooLow    RejectReason = "stake_too_low"
	RejectNotDisjoint    RejectReason = "not_disjoint"
	RejectEmptyEvidence  RejectReason = "empty_evidence"
	RejectDeadlinePassed RejectReason = "deadline_passed"
	RejectDuplicate      RejectReason = "duplicate"
	RejectWrongStatus    RejectReason = "wrong_status"
)

// RejectionError is returned for refused challenges. It matches
// ErrChallengeRejected, and a duplicate also matches ErrChallengeConflict.
type RejectionError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", ErrChallengeRejected, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrChallengeRejected, e.Reason, e.Detail)
}

func (e *RejectionError) Is(target error) bool {
	if target == ErrChallengeRejected {
		return true
	}
	return target == ErrChallengeConflict && e.Reason == RejectDuplicate
}

func reject(reason RejectReason, format string, args ...any) error {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
