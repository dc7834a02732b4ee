package notice

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

// Store persists one kind of notice. ListActive returns newest first and
// hides expired notices; PurgeExpired deletes them.
type Store[T Notice] interface {
	Create(ctx context.Context, n T) error
	Get(ctx context.Context, id string) (T, error)
	ListActive(ctx context.Context, now time.Time) ([]T, error)
	Delete(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type (
	AnnouncementStore = Store[Announcement]
	JobStore          = Store[Job]
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore[T Notice] struct {
	kind  string
	items map[string]T
	mu    sync.RWMutex
}

// NewMemoryStore creates an in-memory store. kind names the notice in errors.
func NewMemoryStore[T Notice](kind string) *MemoryStore[T] {
	return &MemoryStore[T]{
		kind:  kind,
		items: make(map[string]T),
	}
}

func (m *MemoryStore[T]) Create(_ context.Context, n T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[n.NoticeID()]; ok {
		return apperr.Conflict("%s %s already exists", m.kind, n.NoticeID())
	}
	m.items[n.NoticeID()] = clone(n)
	return nil
}

func (m *MemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.items[id]
	if !ok {
		var zero T
		return zero, apperr.NotFound("%s %s not found", m.kind, id)
	}
	return clone(n), nil
}

func (m *MemoryStore[T]) ListActive(_ context.Context, now time.Time) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]T, 0, len(m.items))
	for _, n := range m.items {
		if Active(n, now) {
			out = append(out, clone(n))
		}
	}
	SortNewest(out)
	return out, nil
}

func (m *MemoryStore[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return apperr.NotFound("%s %s not found", m.kind, id)
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore[T]) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, item := range m.items {
		if !Active(item, now) {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

// clone deep-copies notices that know how to copy themselves.
func clone[T Notice](n T) T {
	if c, ok := any(n).(interface{ Clone() T }); ok {
		return c.Clone()
	}
	return n
}

// SortNewest orders notices newest first, breaking ties by ID.
func SortNewest[T Notice](ns []T) {
	slices.SortFunc(ns, func(a, b T) int {
		if c := b.Timestamp().Compare(a.Timestamp()); c != 0 {
			return c
		}
		return strings.Compare(a.NoticeID(), b.NoticeID())
	})
}
