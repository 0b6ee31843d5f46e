package lifecycle

import (
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

// transitions lists every allowed status change. Settled and error are terminal.
var transitions = map[model.IntentStatus][]model.IntentStatus{
	model.StatusPending:    {model.StatusEvaluated, model.StatusError},
	model.StatusEvaluated:  {model.StatusChallenged, model.StatusSettled, model.StatusError},
	model.StatusChallenged: {model.StatusSettled},
}

// CanTransition reports whether an intent may move from one status to another
func CanTransition(from, to model.IntentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transition(intent *model.Intent, to model.IntentStatus) error {
	if !CanTransition(intent.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, intent.Status, to)
	}
	intent.Status = to
	return nil
}
