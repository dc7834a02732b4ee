package sheet

import (
	"context"
	"sync"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

// Store persists whole sheet documents. Replace overwrites the stored
// document, so concurrent writers race with last-write-wins semantics.
type Store interface {
	Create(ctx context.Context, s Sheet) error
	Get(ctx context.Context, id string) (Sheet, error)
	List(ctx context.Context) ([]Sheet, error)
	Replace(ctx context.Context, s Sheet) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	sheets map[string]Sheet
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory sheet store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets: make(map[string]Sheet),
	}
}

func (m *MemoryStore) Create(_ context.Context, s Sheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[s.ID]; ok {
		return apperr.Conflict("sheet %s already exists", s.ID)
	}
	m.sheets[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Sheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sheets[id]
	if !ok {
		return Sheet{}, apperr.NotFound("sheet %s not found", id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]Sheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Sheet, 0, len(m.sheets))
	for _, s := range m.sheets {
		out = append(out, s.Clone())
	}
	SortByCreated(out)
	return out, nil
}

func (m *MemoryStore) Replace(_ context.Context, s Sheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[s.ID]; !ok {
		return apperr.NotFound("sheet %s not found", s.ID)
	}
	m.sheets[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[id]; !ok {
		return apperr.NotFound("sheet %s not found", id)
	}
	delete(m.sheets, id)
	return nil
}
