package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/solver"
)

// Evaluate gathers answers from the configured providers and runs consensus.
// Each provider is bounded by EvaluationTimeout and the whole gather phase by
// MaxEvaluationTime or the intent deadline, whichever is sooner. Providers
// that fail are absent sources.
//
// The intent moves pending -> evaluated, or pending -> error with the
// engine's failure. If another transition takes the intent out of pending
// while answers are being gathered, the fetch is cancelled and ErrStale is
// returned. A cancelled ctx aborts without changing the intent.
func (l *Lifecycle) Evaluate(ctx context.Context, id string, s Solver) (*model.Intent, error) {
	if l.gatherer == nil {
		return nil, ErrNoGatherer
	}
	s, err := l.checkSolver(s)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	intent, err := l.load(ctx, id)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if intent.Status != model.StatusPending {
		l.mu.Unlock()
		return intent, fmt.Errorf("%w: intent is %s", ErrInvalidTransition, intent.Status)
	}
	now := l.now()
	if !now.Before(intent.Deadline) {
		err := l.expire(ctx, intent, now)
		l.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return intent.Clone(), ErrDeadlineExceeded
	}
	if _, busy := l.inflight[id]; busy {
		l.mu.Unlock()
		return intent, ErrEvaluationInProgress
	}

	budget := intent.Deadline.Sub(now)
	if l.cfg.MaxEvaluationTime > 0 && l.cfg.MaxEvaluationTime < budget {
		budget = l.cfg.MaxEvaluationTime
	}
	gctx, cancel := context.WithTimeout(ctx, budget)
	g := &gather{cancel: cancel}
	l.inflight[id] = g
	l.mu.Unlock()

	l.log.Debug("gathering evidence",
		zap.String("intent", id),
		zap.Duration("budget", budget))

	start := l.now()
	res := l.gatherer.FetchAnswers(gctx, intent.Question, l.cfg.EvaluationTimeout)
	cancel()

	if ctx.Err() != nil {
		l.mu.Lock()
		if l.inflight[id] == g {
			delete(l.inflight, id)
		}
		l.mu.Unlock()
		return nil, ctx.Err()
	}

	for _, f := range res.Failures {
		l.log.Info("provider absent", zap.String("intent", id), zap.String("provider", f.Provider), zap.Error(f.Err))
	}

	return l.record(ctx, id, s, res.Answers, start, g)
}

// RecordEvaluation runs consensus over answers supplied by a solver, with the
// same transition as Evaluate. An in-flight Evaluate for the intent is cancelled.
func (l *Lifecycle) RecordEvaluation(ctx context.Context, id string, s Solver, answers []model.SourceAnswer) (*model.Intent, error) {
	s, err := l.checkSolver(s)
	if err != nil {
		return nil, err
	}
	return l.record(ctx, id, s, answers, time.Time{}, nil)
}

// record applies a consensus result to a pending intent. g is the gather
// that produced answers and start its start time; g is nil for direct
// submissions, which keep the engine's own execution time.
func (l *Lifecycle) record(ctx context.Context, id string, s Solver, answers []model.SourceAnswer, start time.Time, g *gather) (*model.Intent, error) {
	l.mu.Lock()

	if g != nil {
		if l.inflight[id] != g {
			l.mu.Unlock()
			return nil, fmt.Errorf("%w: intent %s changed during evaluation", ErrStale, id)
		}
		delete(l.inflight, id)
	}

	intent, err := l.load(ctx, id)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if intent.Status != model.StatusPending {
		l.mu.Unlock()
		if g != nil {
			return intent, fmt.Errorf("%w: intent is %s", ErrStale, intent.Status)
		}
		return intent, fmt.Errorf("%w: intent is %s", ErrInvalidTransition, intent.Status)
	}

	now := l.now()
	if !now.Before(intent.Deadline) {
		err := l.expire(ctx, intent, now)
		l.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return intent.Clone(), ErrDeadlineExceeded
	}
	l.cancelGather(id)

	ev, evalErr := l.engine.Evaluate(intent.Question, answers, l.params(intent))
	ev.SolverID = s.ID
	ev.Stake = s.Stake
	if g != nil {
		ev.ExecutionTime = l.now().Sub(start)
	}

	intent.Evaluation = ev
	intent.UpdatedAt = now.UTC()
	if evalErr != nil {
		_ = transition(intent, model.StatusError)
		intent.Failure = ev.Failure
	} else {
		_ = transition(intent, model.StatusEvaluated)
	}

	if err := l.store.Put(ctx, intent); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("store intent: %w", err)
	}
	l.mu.Unlock()

	l.metrics.ObserveEvaluation(string(ev.Status), string(ev.Failure), ev.ExecutionTime)

	if evalErr != nil {
		l.log.Info("evaluation failed",
			zap.String("intent", id),
			zap.String("reason", string(ev.Failure)),
			zap.Int("considered", ev.Considered),
			zap.Error(evalErr))
		return intent.Clone(), evalErr
	}

	l.log.Info("intent evaluated",
		zap.String("intent", id),
		zap.String("evaluation_hash", ev.Hash),
		zap.Bool("answer", ev.Answer),
		zap.Float64("confidence", ev.Confidence),
		zap.Int("sources", len(ev.Sources)),
		zap.Int("outliers", len(ev.Outliers)))

	return l.publishAfter(ctx, intent)
}

// checkSolver validates the solver and returns the stake it puts behind the
// evaluation. With a registry the stake is bounded by the registered stake,
// and a zero stake selects it.
func (l *Lifecycle) checkSolver(s Solver) (Solver, error) {
	if s.ID == "" {
		return s, fmt.Errorf("%w: solver id is required", ErrInvalidRequest)
	}
	if l.solvers != nil {
		reg, err := l.solvers.Eligible(s.ID)
		switch {
		case errors.Is(err, solver.ErrInsufficientStake):
			return s, fmt.Errorf("%w: %w", ErrInsufficientStake, err)
		case err != nil:
			return s, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if s.Stake.IsZero() {
			s.Stake = reg.Stake
		}
		if s.Stake.Gt(reg.Stake) {
			return s, fmt.Errorf("%w: stake %s exceeds registered stake %s of %s", ErrInvalidRequest, s.Stake, reg.Stake, s.ID)
		}
	}
	if l.cfg.MinStake.Gt(s.Stake) {
		return s, fmt.Errorf("%w: %s < minimum %s", ErrInsufficientStake, s.Stake, l.cfg.MinStake)
	}
	return s, nil
}

// publishAfter publishes a just-committed intent when a chain is configured
func (l *Lifecycle) publishAfter(ctx context.Context, intent *model.Intent) (*model.Intent, error) {
	if l.chain == nil {
		return intent.Clone(), nil
	}
	published, err := l.Publish(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, ErrPublish) {
			l.log.Warn("publish failed", zap.String("intent", intent.ID), zap.Error(err))
		}
		if published == nil {
			published = intent.Clone()
		}
		return published, err
	}
	return published, nil
}
