package progress

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

// Store persists progress records keyed by (user, problem).
type Store interface {
	Get(ctx context.Context, userID, problemID string) (Progress, error)
	ListByUser(ctx context.Context, userID string) ([]Progress, error)
	ListByProblem(ctx context.Context, problemID string) ([]Progress, error)
	Put(ctx context.Context, p Progress) error
	Delete(ctx context.Context, userID, problemID string) error
	DeleteByProblem(ctx context.Context, problemID string) (int, error)
}

type key struct {
	user    string
	problem string
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[key]Progress
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[key]Progress),
	}
}

func (m *MemoryStore) Get(_ context.Context, userID, problemID string) (Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.records[key{userID, problemID}]
	if !ok {
		return Progress{}, apperr.NotFound("no progress for problem %s", problemID)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]Progress, error) {
	return m.filter(func(k key) bool { return k.user == userID }), nil
}

func (m *MemoryStore) ListByProblem(_ context.Context, problemID string) ([]Progress, error) {
	return m.filter(func(k key) bool { return k.problem == problemID }), nil
}

func (m *MemoryStore) filter(match func(key) bool) []Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Progress{}
	for k, p := range m.records {
		if match(k) {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b Progress) int {
		if c := strings.Compare(a.UserID, b.UserID); c != 0 {
			return c
		}
		return strings.Compare(a.ProblemID, b.ProblemID)
	})
	return out
}

func (m *MemoryStore) Put(_ context.Context, p Progress) error {
	if p.UserID == "" || p.ProblemID == "" {
		return apperr.Invalid("user_id and problem_id are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key{p.UserID, p.ProblemID}] = p.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, problemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key{userID, problemID})
	return nil
}

func (m *MemoryStore) DeleteByProblem(_ context.Context, problemID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.records {
		if k.problem == problemID {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}
