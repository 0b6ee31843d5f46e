// Package solver tracks registered evaluators, their stake and reputation.
package solver

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

var (
	ErrInsufficientStake = errors.New("insufficient stake")
	ErrUnknownSolver     = errors.New("unknown solver")
	ErrInvalidSolverID   = errors.New("invalid solver id")
)

// Solver is a registered evaluator
type Solver struct {
	ID                    string       `json:"solver_id"`
	Stake                 model.Amount `json:"stake"`
	Reputation            float64      `json:"reputation_score"`
	TotalEvaluations      uint64       `json:"total_evaluations"`
	SuccessfulEvaluations uint64       `json:"successful_evaluations"`
	Active                bool         `json:"is_active"`
	RegisteredAt          time.Time    `json:"registered_at"`
}

// Registry is a concurrency-safe solver table
type Registry struct {
	mu       sync.RWMutex
	minStake model.Amount
	solvers  map[string]*Solver
	now      func() time.Time
}

// NewRegistry creates a registry enforcing a minimum registration stake
func NewRegistry(minStake model.Amount) *Registry {
	return &Registry{
		minStake: minStake,
		solvers:  make(map[string]*Solver),
		now:      time.Now,
	}
}

// MinStake returns the registration minimum
func (r *Registry) MinStake() model.Amount { return r.minStake }

// Register adds a solver or tops up an existing one's stake.
// New solvers start with a perfect reputation.
func (r *Registry) Register(id string, stake model.Amount) (Solver, error) {
	if id == "" {
		return Solver{}, ErrInvalidSolverID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.solvers[id]; ok {
		total, overflow := s.Stake.Add(stake)
		if overflow {
			return Solver{}, fmt.Errorf("%w: stake overflow for %s", ErrInsufficientStake, id)
		}
		s.Stake = total
		s.Active = true
		return *s, nil
	}

	if r.minStake.Gt(stake) {
		return Solver{}, fmt.Errorf("%w: %s < minimum %s", ErrInsufficientStake, stake, r.minStake)
	}

	s := &Solver{
		ID:           id,
		Stake:        stake,
		Reputation:   1.0,
		Active:       true,
		RegisteredAt: r.now().UTC(),
	}
	r.solvers[id] = s
	return *s, nil
}

// Get returns a copy of a solver
func (r *Registry) Get(id string) (Solver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.solvers[id]
	if !ok {
		return Solver{}, fmt.Errorf("%w: %s", ErrUnknownSolver, id)
	}
	return *s, nil
}

// Eligible checks that a solver is registered, active and staked at least the minimum
func (r *Registry) Eligible(id string) (Solver, error) {
	s, err := r.Get(id)
	if err != nil {
		return Solver{}, err
	}
	if !s.Active {
		return Solver{}, fmt.Errorf("%w: %s is inactive", ErrUnknownSolver, id)
	}
	if r.minStake.Gt(s.Stake) {
		return Solver{}, fmt.Errorf("%w: %s < minimum %s", ErrInsufficientStake, s.Stake, r.minStake)
	}
	return s, nil
}

// Record updates reputation as successful/total. Unregistered ids are ignored.
func (r *Registry) Record(id string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.solvers[id]
	if !ok {
		return
	}
	s.TotalEvaluations++
	if success {
		s.SuccessfulEvaluations++
	}
	s.Reputation = float64(s.SuccessfulEvaluations) / float64(s.TotalEvaluations)
}

// Deactivate stops a solver from evaluating new intents
func (r *Registry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.solvers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSolver, id)
	}
	s.Active = false
	return nil
}

// List returns all solvers ordered by id
func (r *Registry) List() []Solver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Solver, 0, len(r.solvers))
	for _, s := range r.solvers {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
