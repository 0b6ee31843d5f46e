package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/hashing"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/validate"
)

// Challenge disputes an evaluated intent with counter-evidence.
//
// A challenge is accepted only while now < deadline, when its stake is
// strictly greater than the evaluation stake and when its counter-evidence
// has at least one valid source, none of which share a normalized URL with
// the evaluation's sources or outliers. The first accepted challenge wins;
// any later attempt is rejected as a duplicate. Rejections are
// *RejectionError values.
func (l *Lifecycle) Challenge(ctx context.Context, spec model.ChallengeSpec) (*model.Intent, error) {
	if strings.TrimSpace(spec.Challenger) == "" {
		return nil, fmt.Errorf("%w: challenger is required", ErrInvalidRequest)
	}

	l.mu.Lock()
	intent, err := l.target(ctx, spec)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}

	ch, err := l.accept(intent, spec)
	if err != nil {
		l.mu.Unlock()
		l.metrics.ObserveChallenge(rejectionLabel(err))
		l.log.Info("challenge rejected",
			zap.String("intent", intent.ID),
			zap.String("challenger", spec.Challenger),
			zap.Error(err))
		return intent, err
	}

	intent.Challenge = ch
	intent.UpdatedAt = ch.SubmittedAt
	if err := l.store.Put(ctx, intent); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("store intent: %w", err)
	}
	l.mu.Unlock()

	l.metrics.ObserveChallenge("accepted")
	l.log.Info("challenge accepted",
		zap.String("intent", intent.ID),
		zap.String("challenge_hash", ch.Hash),
		zap.String("challenger", ch.Challenger),
		zap.Stringer("stake", ch.Stake))

	return l.publishAfter(ctx, intent)
}

// target loads the intent a challenge addresses. Caller holds mu.
func (l *Lifecycle) target(ctx context.Context, spec model.ChallengeSpec) (*model.Intent, error) {
	if spec.EvaluationHash == "" {
		if spec.IntentID == "" {
			return nil, fmt.Errorf("%w: evaluation hash or intent id is required", ErrInvalidRequest)
		}
		return l.load(ctx, spec.IntentID)
	}

	intent, err := l.store.FindByEvaluationHash(ctx, spec.EvaluationHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no evaluation %s", ErrNotFound, spec.EvaluationHash)
	}
	if err != nil {
		return nil, fmt.Errorf("find evaluation: %w", err)
	}
	if spec.IntentID != "" && spec.IntentID != intent.ID {
		return nil, fmt.Errorf("%w: evaluation %s belongs to intent %s, not %s",
			ErrInvalidRequest, spec.EvaluationHash, intent.ID, spec.IntentID)
	}
	return intent, nil
}

// accept applies the acceptance guards and builds the challenge record,
// moving intent to challenged. Caller holds mu.
func (l *Lifecycle) accept(intent *model.Intent, spec model.ChallengeSpec) (*model.RefutationChallenge, error) {
	if intent.Challenge != nil || intent.Status == model.StatusChallenged {
		return nil, reject(RejectDuplicate, "evaluation %s already challenged", intent.EvaluationHash())
	}
	if intent.Status != model.StatusEvaluated || intent.Evaluation == nil {
		return nil, reject(RejectWrongStatus, "intent is %s", intent.Status)
	}

	now := l.now()
	if !now.Before(intent.Deadline) {
		return nil, reject(RejectDeadlinePassed, "deadline was %s", intent.Deadline.Format("2006-01-02T15:04:05Z07:00"))
	}

	ev := intent.Evaluation
	if !spec.Stake.Gt(ev.Stake) {
		return nil, reject(RejectStakeTooLow, "stake %s must exceed evaluation stake %s", spec.Stake, ev.Stake)
	}

	valid, _ := validate.Filter(spec.CounterEvidence)
	evidence := validate.DeduplicateAnswers(valid)
	if len(evidence) == 0 {
		return nil, reject(RejectEmptyEvidence, "no valid counter-evidence")
	}

	original := append(append([]model.Source(nil), ev.Sources...), ev.Outliers...)
	if !validate.DisjointFrom(model.Sources(evidence), original) {
		return nil, reject(RejectNotDisjoint, "counter-evidence repeats an evaluated source")
	}

	ch := &model.RefutationChallenge{
		EvaluationHash:  ev.Hash,
		Challenger:      spec.Challenger,
		Stake:           spec.Stake,
		CounterEvidence: evidence,
		SubmittedAt:     now.UTC(),
	}
	hash, err := hashing.ChallengeHash(ch)
	if err != nil {
		return nil, fmt.Errorf("hash challenge: %w", err)
	}
	ch.Hash = hash

	if err := transition(intent, model.StatusChallenged); err != nil {
		return nil, err
	}
	return ch, nil
}

func rejectionLabel(err error) string {
	if r, ok := err.(*RejectionError); ok {
		return string(r.Reason)
	}
	return "error"
}
