package solver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

func TestRegister_MinimumStake(t *testing.T) {
	r := NewRegistry(model.NewAmount(100))

	_, err := r.Register("poor", model.NewAmount(99))
	assert.ErrorIs(t, err, ErrInsufficientStake)

	s, err := r.Register("rich", model.NewAmount(100))
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Reputation)
	assert.True(t, s.Active)

	_, err = r.Register("", model.NewAmount(100))
	assert.ErrorIs(t, err, ErrInvalidSolverID)
}

func TestRegister_TopUp(t *testing.T) {
	r := NewRegistry(model.NewAmount(10))
	_, err := r.Register("s", model.NewAmount(10))
	require.NoError(t, err)

	s, err := r.Register("s", model.NewAmount(5))
	require.NoError(t, err)
	assert.Equal(t, "15", s.Stake.String())
}

func TestRecord_Reputation(t *testing.T) {
	r := NewRegistry(model.Amount{})
	_, err := r.Register("s", model.Amount{})
	require.NoError(t, err)

	r.Record("s", true)
	r.Record("s", false)
	r.Record("s", true)
	r.Record("s", true)
	r.Record("ghost", false)

	s, err := r.Get("s")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), s.TotalEvaluations)
	assert.Equal(t, uint64(3), s.SuccessfulEvaluations)
	assert.InDelta(t, 0.75, s.Reputation, 1e-12)

	_, err = r.Get("ghost")
	assert.ErrorIs(t, err, ErrUnknownSolver)
}

func TestEligible(t *testing.T) {
	r := NewRegistry(model.NewAmount(1))
	_, err := r.Register("s", model.NewAmount(1))
	require.NoError(t, err)

	_, err = r.Eligible("s")
	assert.NoError(t, err)

	require.NoError(t, r.Deactivate("s"))
	_, err = r.Eligible("s")
	assert.ErrorIs(t, err, ErrUnknownSolver)

	_, err = r.Eligible("nobody")
	assert.ErrorIs(t, err, ErrUnknownSolver)
}

func TestRegistry_ConcurrentRecord(t *testing.T) {
	r := NewRegistry(model.Amount{})
	_, err := r.Register("s", model.Amount{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(ok bool) {
			defer wg.Done()
			r.Record("s", ok)
		}(i%2 == 0)
	}
	wg.Wait()

	s, err := r.Get("s")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), s.TotalEvaluations)
	assert.InDelta(t, 0.5, s.Reputation, 1e-12)
}

func TestList_Sorted(t *testing.T) {
	r := NewRegistry(model.Amount{})
	for _, id := range []string{"c", "a", "b"} {
		_, err := r.Register(id, model.Amount{})
		require.NoError(t, err)
	}
	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[2].ID)
}
