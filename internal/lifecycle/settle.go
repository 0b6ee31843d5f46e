package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/settlement"
)

// Settle resolves an intent and records exactly one settlement.
//
// A challenged intent is adjudicated by rerunning consensus over the
// counter-evidence alone with the intent's parameters: a rerun that
// disagrees with the original verdict makes the challenger the winner, one
// that agrees makes the evaluator the winner, and a rerun that fails is a
// tie. An unchallenged evaluated intent settles for the evaluator once its
// deadline has passed; before that ErrChallengeWindowOpen is returned.
func (l *Lifecycle) Settle(ctx context.Context, id string) (*model.Intent, error) {
	l.mu.Lock()
	intent, err := l.load(ctx, id)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}

	var (
		winner model.Winner
		rerun  *model.Evaluation
	)
	ev := intent.Evaluation

	switch intent.Status {
	case model.StatusEvaluated:
		if l.now().Before(intent.Deadline) {
			l.mu.Unlock()
			return intent, fmt.Errorf("%w: closes at %s", ErrChallengeWindowOpen, intent.Deadline.Format("2006-01-02T15:04:05Z07:00"))
		}
		winner = model.WinnerEvaluator

	case model.StatusChallenged:
		var rerunErr error
		rerun, rerunErr = l.engine.Evaluate(intent.Question, intent.Challenge.CounterEvidence, l.params(intent))
		switch {
		case rerunErr != nil:
			winner = model.WinnerTie
		case rerun.Answer != ev.Answer:
			winner = model.WinnerChallenger
		default:
			winner = model.WinnerEvaluator
		}

	default:
		l.mu.Unlock()
		return intent, fmt.Errorf("%w: cannot settle a %s intent", ErrInvalidTransition, intent.Status)
	}

	stakes := settlement.StakesFor(ev, intent.Challenge, intent.Reward, intent.Initiator)
	s, err := l.calc.Settle(ev, intent.Challenge, winner, stakes)
	if err != nil {
		l.mu.Unlock()
		l.log.Error("settlement rejected",
			zap.String("intent", id),
			zap.String("winner", string(winner)),
			zap.Error(err))
		return intent, fmt.Errorf("settle intent %s: %w", id, err)
	}

	if err := transition(intent, model.StatusSettled); err != nil {
		l.mu.Unlock()
		return intent, err
	}
	intent.Settlement = s
	intent.UpdatedAt = s.Timestamp
	if err := l.store.Put(ctx, intent); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("store intent: %w", err)
	}
	l.mu.Unlock()

	// Ties are not scored; unregistered ids are ignored by the registry
	if l.solvers != nil && winner != model.WinnerTie {
		l.solvers.Record(ev.SolverID, winner == model.WinnerEvaluator)
		if ch := intent.Challenge; ch != nil {
			l.solvers.Record(ch.Challenger, winner == model.WinnerChallenger)
		}
	}

	fields := []zap.Field{
		zap.String("intent", id),
		zap.String("settlement_hash", s.Hash),
		zap.String("winner", string(winner)),
	}
	if rerun != nil {
		fields = append(fields,
			zap.String("rerun_status", string(rerun.Status)),
			zap.Float64("rerun_confidence", rerun.Confidence))
	}
	l.metrics.ObserveSettlement(string(winner))
	l.log.Info("intent settled", fields...)

	return l.publishAfter(ctx, intent)
}
