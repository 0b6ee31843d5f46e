package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// mockEvaluator implements Evaluator
type mockEvaluator struct {
	failOn string
	delay  time.Duration
}

func (m *mockEvaluator) EvaluateQuestion(ctx context.Context, question string) (*model.Intent, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if question == m.failOn {
		return &model.Intent{Question: question, Status: model.StatusError}, errors.New("insufficient sources")
	}
	return &model.Intent{Question: question, Status: model.StatusEvaluated}, nil
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "questions")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestBatchProcessor_ProcessQuestions(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{failOn: "Is B true?"}, 2)

	questions := []string{"Is A true?", "Is B true?", "Is C true?"}
	results := processor.ProcessQuestions(context.Background(), questions)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Question != questions[i] {
			t.Errorf("result %d out of order: %s", i, res.Question)
		}
	}
	if results[1].GetError() == nil {
		t.Error("expected error for failing question")
	}
	if results[1].Intent == nil || results[1].Intent.Status != model.StatusError {
		t.Error("expected intent in error state to be reported")
	}
	if results[0].GetError() != nil || results[2].GetError() != nil {
		t.Error("unexpected error for passing questions")
	}
}

func TestBatchProcessor_ProcessQuestions_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{}, 2)

	results := processor.ProcessQuestions(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessQuestions_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{delay: time.Second}, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	results := processor.ProcessQuestions(ctx, []string{"a", "b", "c"})

	if len(results) != 3 {
		t.Fatalf("expected a result per question, got %d", len(results))
	}
	for _, r := range results {
		if r.GetError() == nil {
			t.Errorf("expected cancellation error for %q", r.Question)
		}
	}
	time.Sleep(20 * time.Millisecond)
}

func TestReadQuestionsFromFile(t *testing.T) {
	path := writeTemp(t, `Is the Earth round?
# comment
Did Apollo 11 land on the Moon?

   Is water wet?   
Is the Earth round?`)

	questions, err := ReadQuestionsFromFile(path)
	if err != nil {
		t.Fatalf("ReadQuestionsFromFile failed: %v", err)
	}

	expected := []string{"Is the Earth round?", "Did Apollo 11 land on the Moon?", "Is water wet?"}
	if strings.Join(questions, "|") != strings.Join(expected, "|") {
		t.Errorf("expected %v, got %v", expected, questions)
	}
}

func TestReadQuestionsFromFile_NonExistent(t *testing.T) {
	_, err := ReadQuestionsFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "Q1?\nQ2?\n# comment\n\nQ3?\n")

	processor := NewBatchProcessor(&mockEvaluator{}, 2)
	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{}, 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestQuestionResult_GetError(t *testing.T) {
	expected := errors.New("evaluation failed")
	r := &QuestionResult{Question: "q", Error: expected}
	if r.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r.GetError())
	}
}
