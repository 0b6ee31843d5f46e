package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

func newIntent(id string, status model.IntentStatus, created time.Time) *model.Intent {
	return &model.Intent{
		ID:                  id,
		Type:                model.IntentCredibilityEvaluation,
		Question:            "Is " + id + " true?",
		RequiredSources:     3,
		ConfidenceThreshold: 0.7,
		Algorithm:           model.AlgorithmMedian,
		Deadline:            created.Add(time.Hour),
		Reward:              model.MustAmount("1000000000000000000000000"),
		Status:              status,
		CreatedAt:           created,
		UpdatedAt:           created,
	}
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := newIntent("i-1", model.StatusPending, base)
			require.NoError(t, s.Put(ctx, in))

			got, err := s.Get(ctx, "i-1")
			require.NoError(t, err)
			assert.Equal(t, in.Question, got.Question)
			assert.Equal(t, "1000000000000000000000000", got.Reward.String())
			assert.True(t, in.Deadline.Equal(got.Deadline))

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := newIntent("i-1", model.StatusPending, base)
			require.NoError(t, s.Put(ctx, in))

			in.Status = model.StatusEvaluated
			in.Evaluation = &model.Evaluation{Hash: "abc", Question: in.Question, Status: model.EvaluationEvaluated}
			require.NoError(t, s.Put(ctx, in))

			got, err := s.FindByEvaluationHash(ctx, "abc")
			require.NoError(t, err)
			assert.Equal(t, model.StatusEvaluated, got.Status)

			_, err = s.FindByEvaluationHash(ctx, "")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.FindByEvaluationHash(ctx, "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListByStatusOrdered(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, newIntent("c", model.StatusPending, base.Add(2*time.Second))))
			require.NoError(t, s.Put(ctx, newIntent("a", model.StatusPending, base)))
			require.NoError(t, s.Put(ctx, newIntent("b", model.StatusSettled, base.Add(time.Second))))

			pending, err := s.List(ctx, model.StatusPending)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "a", pending[0].ID)
			assert.Equal(t, "c", pending[1].ID)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			none, err := s.List(ctx, model.StatusError)
			require.NoError(t, err)
			assert.NotNil(t, none)
			assert.Empty(t, none)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := newIntent("i", model.StatusPending, time.Now())
	require.NoError(t, s.Put(ctx, in))

	in.Status = model.StatusError
	got, err := s.Get(ctx, "i")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	got.Status = model.StatusSettled
	again, err := s.Get(ctx, "i")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again.Status)
}

func TestSQLStore_PutError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS intents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(context.Background(), db, true)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO intents .* VALUES \(\$1, \$2, \$3, \$4, \$5\)`).WillReturnError(errors.New("disk full"))

	err = s.Put(context.Background(), newIntent("i", model.StatusPending, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_MigrateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS intents").WillReturnError(errors.New("read-only"))

	_, err = NewSQLStore(context.Background(), db, false)
	assert.Error(t, err)
}
