package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/model"
)

const intentTimeout = 5 * time.Minute

var (
	intentJSON      string
	createFlags     intentFlags
	evaluateFlags   solverFlags
	evaluateAnswers string
	challengeBy     string
	challengeStake  model.Amount
	challengeFile   string
	listStatus      string
)

// intentCmd groups the lifecycle operations on a single intent
var intentCmd = &cobra.Command{
	Use:   "intent",
	Short: "Create, evaluate, challenge and settle intents step by step",
	Long: `Work with intents one lifecycle step at a time.

  pending ──evaluate──▶ evaluated ──challenge──▶ challenged
     │                     │                         │
     └──▶ error            └───────settle───────▶ settled ◀──┘

An evaluated intent can be challenged until its deadline. Settlement of
an unchallenged intent waits for the deadline; a challenged intent can be
settled at once.`,
}

var intentCreateCmd = &cobra.Command{
	Use:   "create <question>",
	Short: "Create a pending intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := createFlags.spec(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) (*model.Intent, error) {
			return a.lifecycle.Submit(ctx, spec)
		})
	},
}

var intentEvaluateCmd = &cobra.Command{
	Use:   "evaluate <intent-id>",
	Short: "Evaluate a pending intent with providers or a file of answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var answers []model.SourceAnswer
		if evaluateAnswers != "" {
			var err error
			if answers, err = readAnswers(evaluateAnswers); err != nil {
				return err
			}
		}
		return withApp(cmd, func(ctx context.Context, a *app) (*model.Intent, error) {
			if evaluateAnswers != "" {
				return a.lifecycle.RecordEvaluation(ctx, args[0], evaluateFlags.solver(), answers)
			}
			return a.lifecycle.Evaluate(ctx, args[0], evaluateFlags.solver())
		})
	},
}

var intentChallengeCmd = &cobra.Command{
	Use:   "challenge <evaluation-hash|intent-id>",
	Short: "Challenge an evaluation with counter-evidence",
	Long: `Challenge disputes an evaluation, named by its evaluation hash or by the
id of its intent. The stake must exceed the evaluation stake and the
counter-evidence must not reuse any evaluated source.

Example:
  veracity intent challenge 3f9a0c... --challenger bob --stake 150 --evidence counter.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evidence, err := readAnswers(challengeFile)
		if err != nil {
			return err
		}
		spec := challengeTarget(args[0])
		spec.Challenger = challengeBy
		spec.Stake = challengeStake
		spec.CounterEvidence = evidence
		return withApp(cmd, func(ctx context.Context, a *app) (*model.Intent, error) {
			return a.lifecycle.Submit(ctx, spec)
		})
	},
}

var intentSettleCmd = &cobra.Command{
	Use:   "settle <intent-id>",
	Short: "Settle an evaluated or challenged intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) (*model.Intent, error) {
			return a.lifecycle.Submit(ctx, model.SettlementSpec{IntentID: args[0]})
		})
	},
}

var intentPublishCmd = &cobra.Command{
	Use:   "publish <intent-id>",
	Short: "Publish records that have no ledger receipt yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) (*model.Intent, error) {
			return a.lifecycle.Publish(ctx, args[0])
		})
	},
}

var intentShowCmd = &cobra.Command{
	Use:   "show <intent-id>",
	Short: "Show an intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) (*model.Intent, error) {
			return a.lifecycle.Get(ctx, args[0])
		})
	},
}

var intentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List intents, optionally by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), intentTimeout)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		intents, err := a.lifecycle.List(ctx, model.IntentStatus(listStatus))
		if err != nil {
			return err
		}
		if intentJSON != "" {
			return writeJSON(intentJSON, intents)
		}
		printIntentTable(intents)
		return nil
	},
}

var intentExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Fail pending intents whose deadline has passed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), intentTimeout)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		expired, err := a.lifecycle.Expire(ctx)
		for _, intent := range expired {
			fmt.Fprintf(os.Stderr, "✗ %s expired: %s\n", intent.ID, truncate(intent.Question, 60))
		}
		fmt.Fprintf(os.Stderr, "Expired %d intents\n", len(expired))
		return err
	},
}

func init() {
	rootCmd.AddCommand(intentCmd)
	intentCmd.AddCommand(intentCreateCmd, intentEvaluateCmd, intentChallengeCmd,
		intentSettleCmd, intentPublishCmd, intentShowCmd, intentListCmd, intentExpireCmd)

	intentCmd.PersistentFlags().StringVar(&intentJSON, "json", "", "write the result as JSON to this path (- for stdout)")

	createFlags.register(intentCreateCmd.Flags())

	evaluateFlags.register(intentEvaluateCmd.Flags())
	intentEvaluateCmd.Flags().StringVar(&evaluateAnswers, "answers", "", "YAML file of answers to submit instead of querying providers")

	intentChallengeCmd.Flags().StringVar(&challengeBy, "challenger", "", "challenger account")
	intentChallengeCmd.Flags().Var(amountValue{&challengeStake}, "stake", "challenge stake, must exceed the evaluation stake")
	intentChallengeCmd.Flags().StringVar(&challengeFile, "evidence", "", "YAML file of counter-evidence answers")
	_ = intentChallengeCmd.MarkFlagRequired("challenger")
	_ = intentChallengeCmd.MarkFlagRequired("evidence")

	intentListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, evaluated, challenged, settled, error)")
}

// withApp runs op against a fresh app and reports the resulting intent
func withApp(cmd *cobra.Command, op func(context.Context, *app) (*model.Intent, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), intentTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	intent, err := op(ctx, a)
	return report(intent, err, a, intentJSON)
}

func printIntentTable(intents []*model.Intent) {
	if len(intents) == 0 {
		fmt.Fprintln(os.Stderr, "No intents")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tANSWER\tCONFIDENCE\tDEADLINE\tQUESTION")
	for _, i := range intents {
		answer, confidence := "-", "-"
		if ev := i.Evaluation; ev != nil && ev.Status == model.EvaluationEvaluated {
			answer = yesNo(ev.Answer)
			confidence = fmt.Sprintf("%.3f", ev.Confidence)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			i.ID, i.Status, answer, confidence,
			i.Deadline.Local().Format("2006-01-02 15:04"), truncate(i.Question, 50))
	}
	_ = tw.Flush()
}

// challengeTarget reads ref as an evaluation hash when it is 64 hex digits
// and as an intent id otherwise
func challengeTarget(ref string) model.ChallengeSpec {
	ref = strings.TrimSpace(ref)
	if len(ref) == 64 {
		if _, err := hex.DecodeString(ref); err == nil {
			return model.ChallengeSpec{EvaluationHash: strings.ToLower(ref)}
		}
	}
	return model.ChallengeSpec{IntentID: ref}
}
