package problem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

// CachedStore keeps the whole problem collection in process memory.
//
// The collection is loaded once on first use and kept up to date by writing
// through every mutation. Entries never expire; the cache is not shared with
// other processes and is lost on restart. Call Invalidate to force a reload.
type CachedStore struct {
	store Store

	mu     sync.RWMutex
	loaded bool
	// version counts mutations; a load whose listing overlapped one is retried.
	version uint64
	items   map[string]Problem
}

// NewCachedStore wraps store with a load-once, write-through cache.
func NewCachedStore(store Store) *CachedStore {
	return &CachedStore{
		store: store,
		items: make(map[string]Problem),
	}
}

func (c *CachedStore) load(ctx context.Context) error {
	for {
		c.mu.RLock()
		loaded, version := c.loaded, c.version
		c.mu.RUnlock()
		if loaded {
			return nil
		}

		all, err := c.store.List(ctx, Filter{})
		if err != nil {
			return fmt.Errorf("load problem cache: %w", err)
		}

		c.mu.Lock()
		if c.loaded {
			c.mu.Unlock()
			return nil
		}
		if c.version != version {
			c.mu.Unlock()
			continue
		}
		c.items = make(map[string]Problem, len(all))
		for _, p := range all {
			c.items[p.ID] = p
		}
		c.loaded = true
		c.mu.Unlock()
		return nil
	}
}

// Invalidate drops the cached collection.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.loaded = false
	c.items = make(map[string]Problem)
}

// Len returns the number of cached problems.
func (c *CachedStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *CachedStore) Create(ctx context.Context, p Problem) error {
	if err := c.store.Create(ctx, p); err != nil {
		return err
	}
	c.put(p)
	return nil
}

func (c *CachedStore) Get(ctx context.Context, id string) (Problem, error) {
	if err := c.load(ctx); err != nil {
		return Problem{}, err
	}

	c.mu.RLock()
	p, ok := c.items[id]
	c.mu.RUnlock()
	if ok {
		return p.Clone(), nil
	}

	// Another process may have created it since the load.
	p, err := c.store.Get(ctx, id)
	if err != nil {
		return Problem{}, err
	}
	c.put(p)
	return p, nil
}

func (c *CachedStore) GetMany(ctx context.Context, ids []string) (map[string]Problem, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]Problem, len(ids))
	var missing []string
	c.mu.RLock()
	for _, id := range ids {
		if p, ok := c.items[id]; ok {
			out[id] = p.Clone()
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := c.store.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range fetched {
		c.put(p)
		out[id] = p
	}
	return out, nil
}

func (c *CachedStore) List(ctx context.Context, f Filter) ([]Problem, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	out := make([]Problem, 0, len(c.items))
	for _, p := range c.items {
		if f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	c.mu.RUnlock()

	SortByCreated(out)
	return out, nil
}

func (c *CachedStore) Update(ctx context.Context, p Problem) error {
	if err := c.store.Update(ctx, p); err != nil {
		return err
	}
	c.put(p)
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	err := c.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	c.mu.Lock()
	c.version++
	delete(c.items, id)
	c.mu.Unlock()
	return err
}

func (c *CachedStore) put(p Problem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	// Before the first load the map is rebuilt from the store anyway.
	if c.loaded {
		c.items[p.ID] = p.Clone()
	}
}
