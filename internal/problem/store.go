package problem

import (
	"context"
	"sync"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

// Store persists problems. IDs are assigned by the caller.
type Store interface {
	Create(ctx context.Context, p Problem) error
	Get(ctx context.Context, id string) (Problem, error)
	GetMany(ctx context.Context, ids []string) (map[string]Problem, error)
	List(ctx context.Context, f Filter) ([]Problem, error)
	Update(ctx context.Context, p Problem) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	problems map[string]Problem
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory problem store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		problems: make(map[string]Problem),
	}
}

func (s *MemoryStore) Create(_ context.Context, p Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.problems[p.ID]; ok {
		return apperr.Conflict("problem %s already exists", p.ID)
	}
	s.problems[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.problems[id]
	if !ok {
		return Problem{}, apperr.NotFound("problem %s not found", id)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) GetMany(_ context.Context, ids []string) (map[string]Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Problem, len(ids))
	for _, id := range ids {
		if p, ok := s.problems[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Problem, 0, len(s.problems))
	for _, p := range s.problems {
		if f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	SortByCreated(out)
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, p Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.problems[p.ID]; !ok {
		return apperr.NotFound("problem %s not found", p.ID)
	}
	s.problems[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.problems[id]; !ok {
		return apperr.NotFound("problem %s not found", id)
	}
	delete(s.problems, id)
	return nil
}
