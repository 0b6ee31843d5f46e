package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Evaluator creates and evaluates an intent for a question
type Evaluator interface {
	EvaluateQuestion(ctx context.Context, question string) (*model.Intent, error)
}

// QuestionJob evaluates one question
type QuestionJob struct {
	Index     int
	Question  string
	Evaluator Evaluator
}

// Execute executes the question job
func (j *QuestionJob) Execute(ctx context.Context) Result {
	intent, err := j.Evaluator.EvaluateQuestion(ctx, j.Question)
	return &QuestionResult{
		Index:    j.Index,
		Question: j.Question,
		Intent:   intent,
		Error:    err,
	}
}

// QuestionResult is the outcome of one question. Intent may be set even
// when Error is, e.g. for an intent that ended in the error state.
type QuestionResult struct {
	Index    int
	Question string
	Intent   *model.Intent
	Error    error
}

// GetError returns the error from the question result
func (r *QuestionResult) GetError() error {
	return r.Error
}

// BatchProcessor evaluates many questions concurrently
type BatchProcessor struct {
	evaluator   Evaluator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(evaluator Evaluator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		evaluator:   evaluator,
		concurrency: concurrency,
	}
}

// ProcessQuestions evaluates questions concurrently. Results are returned in
// input order; questions not reached before ctx is done carry ctx's error.
func (b *BatchProcessor) ProcessQuestions(ctx context.Context, questions []string) []*QuestionResult {
	if len(questions) == 0 {
		return []*QuestionResult{}
	}

	jobs := make([]Job, len(questions))
	for i, q := range questions {
		jobs[i] = &QuestionJob{Index: i, Question: q, Evaluator: b.evaluator}
	}

	pool := NewPool(ctx, b.concurrency)
	results := pool.Run(jobs)

	out := make([]*QuestionResult, len(questions))
	for _, r := range results {
		qr := r.(*QuestionResult)
		out[qr.Index] = qr
	}
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &QuestionResult{Index: i, Question: questions[i], Error: err}
		}
	}
	return out
}

// ProcessFile reads questions from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*QuestionResult, error) {
	questions, err := ReadQuestionsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	return b.ProcessQuestions(ctx, questions), nil
}

// ReadQuestionsFromFile reads questions from a file (one per line)
func ReadQuestionsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var questions []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			questions = append(questions, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return questions, nil
}
