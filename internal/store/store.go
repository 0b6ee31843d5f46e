// Package store persists intents keyed by id.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrNotFound is returned when no intent matches
var ErrNotFound = errors.New("intent not found")

// Store persists intents. Implementations return copies: mutating a
// returned intent never changes stored state.
type Store interface {
	Get(ctx context.Context, id string) (*model.Intent, error)
	// Put inserts or replaces the intent with the same id
	Put(ctx context.Context, intent *model.Intent) error
	FindByEvaluationHash(ctx context.Context, hash string) (*model.Intent, error)
	// List returns intents with the given status ordered by creation time; "" lists all
	List(ctx context.Context, status model.IntentStatus) ([]*model.Intent, error)
	Close() error
}

// MemoryStore keeps intents in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	intents map[string]*model.Intent
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{intents: make(map[string]*model.Intent)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.intents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return in.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, intent *model.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intents[intent.ID] = intent.Clone()
	return nil
}

func (s *MemoryStore) FindByEvaluationHash(_ context.Context, hash string) (*model.Intent, error) {
	if hash == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, in := range s.intents {
		if in.EvaluationHash() == hash {
			return in.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, status model.IntentStatus) ([]*model.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Intent, 0)
	for _, in := range s.intents {
		if status == "" || in.Status == status {
			out = append(out, in.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
