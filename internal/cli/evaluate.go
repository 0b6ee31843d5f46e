package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/lifecycle"
	"github.com/ppiankov/veracity/internal/model"
)

// amountValue adapts model.Amount to pflag
type amountValue struct{ a *model.Amount }

func (v amountValue) String() string {
	if v.a == nil {
		return "0"
	}
	return v.a.String()
}

func (v amountValue) Set(s string) error {
	parsed, err := model.ParseAmount(s)
	if err != nil {
		return err
	}
	*v.a = parsed
	return nil
}

func (amountValue) Type() string { return "amount" }

// intentFlags are the knobs of a new credibility intent
type intentFlags struct {
	initiator string
	required  int
	threshold float64
	algorithm string
	deadline  time.Duration
	reward    model.Amount
}

func (f *intentFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.initiator, "initiator", "", "account that funds the reward")
	fs.IntVar(&f.required, "required", 0, "required distinct sources (default from config)")
	fs.Float64Var(&f.threshold, "threshold", -1, "confidence threshold 0..1 (default from config)")
	fs.StringVar(&f.algorithm, "algorithm", "", "aggregation: median, weighted_average, majority_vote (default from config)")
	fs.DurationVar(&f.deadline, "deadline", 0, "challenge deadline from now (default from config)")
	fs.Var(amountValue{&f.reward}, "reward", "reward paid to the winner")
}

func (f *intentFlags) spec(question string) (model.CredibilitySpec, error) {
	spec := model.CredibilitySpec{
		Question:        question,
		Initiator:       f.initiator,
		RequiredSources: f.required,
		Reward:          f.reward,
	}
	if f.threshold >= 0 {
		t := f.threshold
		spec.ConfidenceThreshold = &t
	}
	if f.algorithm != "" {
		alg, err := model.ParseAlgorithm(f.algorithm)
		if err != nil {
			return spec, err
		}
		spec.Algorithm = alg
	}
	if f.deadline > 0 {
		spec.Deadline = time.Now().Add(f.deadline)
	}
	if spec.Initiator == "" && !spec.Reward.IsZero() {
		return spec, fmt.Errorf("--initiator is required with --reward")
	}
	return spec, nil
}

// solverFlags identify the evaluating solver
type solverFlags struct {
	id    string
	stake model.Amount
}

func (f *solverFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.id, "solver", "local", "solver id")
	fs.Var(amountValue{&f.stake}, "stake", "solver stake behind the evaluation (default: the registered stake)")
}

func (f *solverFlags) solver() lifecycle.Solver {
	return lifecycle.Solver{ID: f.id, Stake: f.stake}
}

var (
	evalIntent  intentFlags
	evalSolver  solverFlags
	evalAnswers string
	evalJSON    string
	evalTimeout time.Duration
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <question>",
	Short: "Create an intent for a question and evaluate it",
	Long: `Evaluate creates a credibility intent and runs consensus on it:
- Ask every configured provider for sourced yes/no answers in parallel
- Drop invalid, duplicate and outlier sources
- Aggregate the rest into a verdict and confidence
- Hash and publish the evaluation to the ledger

With --answers the providers are skipped and the answers in the file
are submitted as the solver's evidence.

Example:
  veracity evaluate "Is the Eiffel Tower in Paris?"
  veracity evaluate "Did Apollo 11 land in 1969?" --required 5 --algorithm majority_vote
  veracity evaluate "Is Pluto a planet?" --answers evidence.yaml --json result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evalIntent.register(evaluateCmd.Flags())
	evalSolver.register(evaluateCmd.Flags())
	evaluateCmd.Flags().StringVar(&evalAnswers, "answers", "", "YAML file of answers to submit instead of querying providers")
	evaluateCmd.Flags().StringVar(&evalJSON, "json", "", "write the intent as JSON to this path (- for stdout)")
	evaluateCmd.Flags().DurationVar(&evalTimeout, "timeout", 5*time.Minute, "overall command timeout")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), evalTimeout)
	defer cancel()

	spec, err := evalIntent.spec(args[0])
	if err != nil {
		return err
	}

	var answers []model.SourceAnswer
	if evalAnswers != "" {
		if answers, err = readAnswers(evalAnswers); err != nil {
			return err
		}
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	intent, err := a.lifecycle.Create(ctx, spec)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Created intent %s\n", intent.ID)
		if evalAnswers == "" {
			fmt.Fprintf(os.Stderr, "⚙️  Querying %d providers...\n", len(a.gateway.Providers()))
		}
	}

	if evalAnswers != "" {
		intent, err = a.lifecycle.RecordEvaluation(ctx, intent.ID, evalSolver.solver(), answers)
	} else {
		intent, err = a.lifecycle.Evaluate(ctx, intent.ID, evalSolver.solver())
	}
	return report(intent, err, a, evalJSON)
}

// report prints the intent, writes JSON when asked and passes err through
func report(intent *model.Intent, err error, a *app, jsonPath string) error {
	if intent != nil {
		fmt.Fprintln(os.Stderr)
		printIntent(os.Stderr, intent, a.reliability)
		fmt.Fprintln(os.Stderr)
		if jsonPath != "" {
			if wErr := writeJSON(jsonPath, intent); wErr != nil {
				return wErr
			}
		}
	}
	return err
}

// answerFile is the YAML layout of --answers and --evidence files.
// A bare list of answers is accepted as well.
type answerFile struct {
	Sources []model.SourceAnswer `yaml:"sources"`
}

func readAnswers(path string) ([]model.SourceAnswer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	var list []model.SourceAnswer
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var f answerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	return f.Sources, nil
}
