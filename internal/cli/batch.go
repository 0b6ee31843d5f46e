package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/lifecycle"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	metricsAddr  string
	batchIntent  intentFlags
	batchSolver  solverFlags
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Evaluate many questions from a file in parallel",
	Long: `Batch evaluates questions concurrently:
- Read questions from input file (one per line, # starts a comment)
- Create and evaluate one intent per question with a worker pool
- Write one JSON file per intent to the output directory

Example:
  veracity batch questions.txt
  veracity batch questions.txt --concurrency 8 --output-dir ./verdicts
  veracity batch questions.txt --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of questions evaluated concurrently")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./veracity-results", "output directory for intent JSON files")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the batch runs")
	batchIntent.register(batchCmd.Flags())
	batchSolver.register(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	spec, err := batchIntent.spec("")
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veracity Batch Evaluation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Providers:    %d\n", len(a.gateway.Providers()))
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(os.Stderr, "  Metrics:      http://%s/metrics\n\n", metricsAddr)
	}

	evaluator := lifecycle.QuestionEvaluator{
		Lifecycle: a.lifecycle,
		Solver:    batchSolver.solver(),
		Spec:      spec,
	}
	processor := worker.NewBatchProcessor(evaluator, concurrency)

	fmt.Fprintf(os.Stderr, "⚙️  Evaluating questions with %d workers...\n", concurrency)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	var evaluated, failed int
	for _, result := range results {
		intent := result.Intent
		if intent != nil {
			path := filepath.Join(outputDir, sanitizeFilename(intent.ID)+".json")
			if err := writeJSON(path, intent); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", truncate(result.Question, 60), err)
			}
		}

		if err := result.GetError(); err != nil && (intent == nil || intent.Status != model.StatusEvaluated) {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", truncate(result.Question, 60), Describe(err))
			continue
		}

		evaluated++
		ev := intent.Evaluation
		fmt.Fprintf(os.Stderr, "✓ %s: %s (%.3f)\n", truncate(result.Question, 60), yesNo(ev.Answer), ev.Confidence)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d questions\n", len(results))
	fmt.Fprintf(os.Stderr, "  Evaluated:  %d\n", evaluated)
	fmt.Fprintf(os.Stderr, "  Failed:     %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	).Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
