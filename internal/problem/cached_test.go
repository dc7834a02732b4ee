package problem_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/problem"
)

// countingStore records how often the wrapped store is listed.
type countingStore struct {
	problem.Store
	lists int
	gets  int
}

func (s *countingStore) List(ctx context.Context, f problem.Filter) ([]problem.Problem, error) {
	s.lists++
	return s.Store.List(ctx, f)
}

func (s *countingStore) Get(ctx context.Context, id string) (problem.Problem, error) {
	s.gets++
	return s.Store.Get(ctx, id)
}

func seeded(t *testing.T) (*countingStore, *problem.MemoryStore) {
	t.Helper()
	mem := problem.NewMemoryStore()
	now := time.Now()
	for i, title := range []string{"Two Sum", "3Sum", "Merge Intervals"} {
		err := mem.Create(context.Background(), problem.Problem{
			ID:        title,
			Title:     title,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	return &countingStore{Store: mem}, mem
}

func TestCachedStore_LoadsOnce(t *testing.T) {
	inner, _ := seeded(t)
	c := problem.NewCachedStore(inner)
	ctx := context.Background()

	for range 3 {
		if _, err := c.List(ctx, problem.Filter{}); err != nil {
			t.Fatalf("List() error = %v", err)
		}
	}
	if _, err := c.Get(ctx, "Two Sum"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if inner.lists != 1 {
		t.Errorf("inner List calls = %d, want 1", inner.lists)
	}
	if inner.gets != 0 {
		t.Errorf("inner Get calls = %d, want 0 for a cached hit", inner.gets)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestCachedStore_WriteThrough(t *testing.T) {
	inner, mem := seeded(t)
	c := problem.NewCachedStore(inner)
	ctx := context.Background()

	if _, err := c.List(ctx, problem.Filter{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if err := c.Create(ctx, problem.Problem{ID: "lru", Title: "LRU Cache", CreatedAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := mem.Get(ctx, "lru"); err != nil {
		t.Errorf("created problem should reach the backing store: %v", err)
	}

	p, err := c.Get(ctx, "lru")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	p.Title = "LRU Cache (design)"
	if err := c.Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := c.Get(ctx, "lru")
	if got.Title != "LRU Cache (design)" {
		t.Errorf("cached Title = %q after update", got.Title)
	}

	if err := c.Delete(ctx, "lru"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Get(ctx, "lru"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
	if inner.lists != 1 {
		t.Errorf("inner List calls = %d, want 1", inner.lists)
	}
}

// pausingStore holds the first List after it has read the collection until
// release is closed.
type pausingStore struct {
	problem.Store
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func (s *pausingStore) List(ctx context.Context, f problem.Filter) ([]problem.Problem, error) {
	out, err := s.Store.List(ctx, f)
	s.once.Do(func() {
		close(s.listed)
		<-s.release
	})
	return out, err
}

func TestCachedStore_DeleteDuringFirstLoad(t *testing.T) {
	_, mem := seeded(t)
	inner := &pausingStore{Store: mem, listed: make(chan struct{}), release: make(chan struct{})}
	c := problem.NewCachedStore(inner)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.List(ctx, problem.Filter{})
		done <- err
	}()

	<-inner.listed
	if err := c.Delete(ctx, "Two Sum"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	close(inner.release)
	if err := <-done; err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if _, err := c.Get(ctx, "Two Sum"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() of problem deleted during load error = %v, want not found", err)
	}
	all, _ := c.List(ctx, problem.Filter{})
	if len(all) != 2 {
		t.Errorf("List() = %v, want 2 problems", ids(all))
	}
}

func TestCachedStore_MissFallsThrough(t *testing.T) {
	inner, mem := seeded(t)
	c := problem.NewCachedStore(inner)
	ctx := context.Background()

	if _, err := c.List(ctx, problem.Filter{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	// Written behind the cache's back, as another process would.
	if err := mem.Create(ctx, problem.Problem{ID: "late", Title: "Late Arrival"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := c.Get(ctx, "late"); err != nil {
		t.Fatalf("Get() should fall through to the store: %v", err)
	}
	if inner.gets != 1 {
		t.Errorf("inner Get calls = %d, want 1", inner.gets)
	}
	if _, err := c.Get(ctx, "late"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if inner.gets != 1 {
		t.Errorf("second Get should be served from cache, inner gets = %d", inner.gets)
	}
}

func TestCachedStore_Invalidate(t *testing.T) {
	inner, _ := seeded(t)
	c := problem.NewCachedStore(inner)
	ctx := context.Background()

	_, _ = c.List(ctx, problem.Filter{})
	c.Invalidate()
	_, _ = c.List(ctx, problem.Filter{})

	if inner.lists != 2 {
		t.Errorf("inner List calls = %d, want 2 after Invalidate", inner.lists)
	}
}

func TestCachedStore_ListOrderAndFilter(t *testing.T) {
	inner, _ := seeded(t)
	c := problem.NewCachedStore(inner)

	all, err := c.List(context.Background(), problem.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "Two Sum" || all[2].ID != "Merge Intervals" {
		t.Errorf("List() order = %v", ids(all))
	}

	got, _ := c.List(context.Background(), problem.Filter{Query: "merge"})
	if len(got) != 1 {
		t.Errorf("List(query) = %v, want 1 match", ids(got))
	}
}

func ids(ps []problem.Problem) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
