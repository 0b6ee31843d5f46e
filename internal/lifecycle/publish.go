package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/ledger"
	"github.com/ppiankov/veracity/internal/model"
)

type publication struct {
	kind    model.RecordKind
	payload ledger.Payload
	stake   model.Amount
}

// unpublished lists the records of intent that have no receipt yet
func unpublished(intent *model.Intent) []publication {
	var out []publication
	if ev := intent.Evaluation; ev != nil && ev.Status == model.EvaluationEvaluated {
		if _, ok := intent.Receipt(model.RecordEvaluation); !ok {
			out = append(out, publication{model.RecordEvaluation, ev.Published(), ev.Stake})
		}
	}
	if ch := intent.Challenge; ch != nil {
		if _, ok := intent.Receipt(model.RecordChallenge); !ok {
			out = append(out, publication{model.RecordChallenge, *ch, ch.Stake})
		}
	}
	if s := intent.Settlement; s != nil {
		if _, ok := intent.Receipt(model.RecordSettlement); !ok {
			out = append(out, publication{model.RecordSettlement, *s, model.Amount{}})
		}
	}
	return out
}

// Publish submits every record of the intent that has no receipt yet and
// stores the receipts. Ledger submissions are idempotent, so Publish can be
// retried after an ErrPublish. It never retries on its own.
func (l *Lifecycle) Publish(ctx context.Context, id string) (*model.Intent, error) {
	if l.chain == nil {
		return nil, ErrNoChain
	}

	l.mu.Lock()
	intent, err := l.load(ctx, id)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var (
		receipts []model.Receipt
		errs     []error
	)
	for _, p := range unpublished(intent) {
		r, err := l.chain.SubmitRecord(ctx, p.kind, p.payload, p.stake)
		l.metrics.ObservePublication(string(p.kind), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", p.kind, p.payload.RecordHash(), err))
			continue
		}
		l.log.Debug("record published",
			zap.String("intent", id),
			zap.String("kind", string(p.kind)),
			zap.String("hash", r.Hash),
			zap.String("tx", r.TxID))
		receipts = append(receipts, r)
	}

	if len(receipts) > 0 {
		l.mu.Lock()
		fresh, err := l.load(ctx, id)
		if err == nil {
			for _, r := range receipts {
				if _, ok := fresh.Receipt(r.Kind); !ok {
					fresh.Receipts = append(fresh.Receipts, r)
				}
			}
			err = l.store.Put(ctx, fresh)
			intent = fresh
		}
		l.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("store receipts: %w", err)
		}
	}

	if len(errs) > 0 {
		return intent.Clone(), fmt.Errorf("%w: %w", ErrPublish, errors.Join(errs...))
	}
	return intent.Clone(), nil
}
