package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/veracity/internal/consensus"
	"github.com/ppiankov/veracity/internal/hashing"
	"github.com/ppiankov/veracity/internal/lifecycle"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/settlement"
	"github.com/ppiankov/veracity/internal/validate"
)

// Describe turns an engine error into a message for the terminal
func Describe(err error) string {
	var rej *lifecycle.RejectionError
	switch {
	case errors.As(err, &rej):
		return describeRejection(rej)
	case errors.Is(err, consensus.ErrInsufficientSources):
		return "not enough evidence: " + err.Error()
	case errors.Is(err, consensus.ErrInconclusive):
		return "evidence inconclusive: sources split evenly"
	case errors.Is(err, consensus.ErrLowConfidence):
		return "evidence too weak: " + err.Error()
	case errors.Is(err, lifecycle.ErrChallengeWindowOpen):
		return "challenge window still open: " + err.Error()
	case errors.Is(err, lifecycle.ErrDeadlineExceeded):
		return "deadline passed before the intent was evaluated"
	case errors.Is(err, lifecycle.ErrNoGatherer):
		return "no evidence providers available (check providers in config and API keys)"
	case errors.Is(err, lifecycle.ErrNotFound):
		return "intent not found: " + err.Error()
	case errors.Is(err, lifecycle.ErrInsufficientStake):
		return "stake too low: " + err.Error()
	case errors.Is(err, lifecycle.ErrPublish):
		return "state saved but publishing failed, retry with 'veracity intent publish': " + err.Error()
	case errors.Is(err, settlement.ErrInvariantViolation):
		return "settlement refused, distribution would not conserve stakes: " + err.Error()
	case errors.Is(err, hashing.ErrMismatch):
		return "hash mismatch: " + err.Error()
	default:
		return err.Error()
	}
}

func describeRejection(rej *lifecycle.RejectionError) string {
	switch rej.Reason {
	case lifecycle.RejectDeadlinePassed:
		return "challenge window closed: " + rej.Detail
	case lifecycle.RejectDuplicate:
		return "already challenged: " + rej.Detail
	case lifecycle.RejectStakeTooLow:
		return "challenge stake too low: " + rej.Detail
	case lifecycle.RejectNotDisjoint:
		return "counter-evidence must not reuse evaluated sources"
	case lifecycle.RejectEmptyEvidence:
		return "challenge needs at least one valid counter-evidence source"
	default:
		return rej.Error()
	}
}

// writeJSON writes v as indented JSON to path, or stdout when path is "-"
func writeJSON(path string, v any) (err error) {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", path, closeErr)
			}
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printIntent writes a human summary of an intent to w
func printIntent(w io.Writer, intent *model.Intent, rc *validate.ReliabilityClassifier) {
	fmt.Fprintf(w, "Intent:     %s\n", intent.ID)
	fmt.Fprintf(w, "Question:   %s\n", intent.Question)
	fmt.Fprintf(w, "Status:     %s", intent.Status)
	if intent.Failure != model.FailureNone {
		fmt.Fprintf(w, " (%s)", intent.Failure)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Deadline:   %s\n", intent.Deadline.Format("2006-01-02 15:04:05 MST"))
	if !intent.Reward.IsZero() {
		fmt.Fprintf(w, "Reward:     %s\n", intent.Reward)
	}

	if ev := intent.Evaluation; ev != nil {
		fmt.Fprintln(w)
		if ev.Status == model.EvaluationEvaluated {
			fmt.Fprintf(w, "Answer:     %s (confidence %.3f, %s)\n", yesNo(ev.Answer), ev.Confidence, ev.Algorithm)
			fmt.Fprintf(w, "Hash:       %s\n", ev.Hash)
		}
		fmt.Fprintf(w, "Solver:     %s (stake %s)\n", ev.SolverID, ev.Stake)
		fmt.Fprintf(w, "Sources:    %d used, %d outliers, %d discarded\n", len(ev.Sources), len(ev.Outliers), ev.Discarded)
		if rc != nil && len(ev.Sources) > 0 {
			c := rc.Classify(ev.Sources)
			fmt.Fprintf(w, "            %d high, %d medium, %d low reliability\n", len(c.High), len(c.Medium), len(c.Low))
		}
		for _, s := range ev.Sources {
			fmt.Fprintf(w, "  ✓ %s <%s>\n", s.Title, s.URL)
		}
		for _, s := range ev.Outliers {
			fmt.Fprintf(w, "  ✗ %s <%s> (outlier)\n", s.Title, s.URL)
		}
	}

	if ch := intent.Challenge; ch != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Challenge:  %s by %s (stake %s, %d sources)\n", ch.Hash, ch.Challenger, ch.Stake, len(ch.CounterEvidence))
	}

	if s := intent.Settlement; s != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Settlement: %s, winner %s\n", s.Hash, s.Winner)
		for _, acct := range sortedKeys(s.RewardDistribution) {
			fmt.Fprintf(w, "  + %s %s\n", acct, s.RewardDistribution[acct])
		}
		for _, acct := range sortedKeys(s.SlashingDistribution) {
			fmt.Fprintf(w, "  - %s %s\n", acct, s.SlashingDistribution[acct])
		}
	}

	if len(intent.Receipts) > 0 {
		fmt.Fprintln(w)
		for _, r := range intent.Receipts {
			fmt.Fprintf(w, "Published:  %s %s (tx %s)\n", r.Kind, r.Hash, r.TxID)
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func sortedKeys(m map[string]model.Amount) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate shortens s to n runes for table output
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
