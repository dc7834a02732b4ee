package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-sheets/internal/platform/cache"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

const defaultMemoTTL = 30 * time.Second

// LocationMemo caches problem location scans for a short time.
// Invalidate drops every entry and is called after any sheet write.
//
// Callers read Version before scanning sheets and hand it to Set, which
// discards the scan when an Invalidate happened in between.
type LocationMemo interface {
	Get(ctx context.Context, problemID string) ([]sheet.Location, bool)
	Version(ctx context.Context) (int64, bool)
	Set(ctx context.Context, version int64, problemID string, locs []sheet.Location)
	Invalidate(ctx context.Context)
}

type memoEntry struct {
	locs    []sheet.Location
	expires time.Time
}

// MemoryMemo is a process-local LocationMemo.
type MemoryMemo struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	version int64
	entries map[string]memoEntry
}

// NewMemoryMemo creates a memo whose entries live for ttl (default 30s).
func NewMemoryMemo(ttl time.Duration) *MemoryMemo {
	if ttl <= 0 {
		ttl = defaultMemoTTL
	}
	return &MemoryMemo{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoEntry),
	}
}

func (m *MemoryMemo) Get(_ context.Context, problemID string) ([]sheet.Location, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[problemID]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, problemID)
		return nil, false
	}
	return slices.Clone(e.locs), true
}

func (m *MemoryMemo) Version(context.Context) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, true
}

func (m *MemoryMemo) Set(_ context.Context, version int64, problemID string, locs []sheet.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if version != m.version {
		return
	}
	m.entries[problemID] = memoEntry{
		locs:    slices.Clone(locs),
		expires: m.now().Add(m.ttl),
	}
}

func (m *MemoryMemo) Invalidate(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	clear(m.entries)
}

const (
	redisMemoPrefix = "sheets:loc:"
	redisMemoGenKey = redisMemoPrefix + "gen"
)

// RedisMemo is a LocationMemo shared by every process using the same Redis.
//
// Keys embed a generation counter; Invalidate bumps the counter so stale
// entries are never read again and expire on their own TTL. Redis errors are
// logged and treated as cache misses.
type RedisMemo struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisMemo creates a Redis-backed memo with the given entry TTL.
func NewRedisMemo(c *cache.Cache, ttl time.Duration) (*RedisMemo, error) {
	if c == nil || c.Client == nil {
		return nil, fmt.Errorf("cache is nil")
	}
	if ttl <= 0 {
		ttl = defaultMemoTTL
	}
	return &RedisMemo{cache: c, ttl: ttl}, nil
}

func (m *RedisMemo) generation(ctx context.Context) (int64, error) {
	gen, err := m.cache.Client.Get(ctx, redisMemoGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (m *RedisMemo) key(gen int64, problemID string) string {
	return fmt.Sprintf("%s%d:%s", redisMemoPrefix, gen, problemID)
}

func (m *RedisMemo) Get(ctx context.Context, problemID string) ([]sheet.Location, bool) {
	gen, err := m.generation(ctx)
	if err != nil {
		slog.Warn("location memo generation read failed", "error", err)
		return nil, false
	}
	var locs []sheet.Location
	ok, err := m.cache.GetJSON(ctx, m.key(gen, problemID), &locs)
	if err != nil {
		slog.Warn("location memo read failed", "problem_id", problemID, "error", err)
		return nil, false
	}
	return locs, ok
}

func (m *RedisMemo) Version(ctx context.Context) (int64, bool) {
	gen, err := m.generation(ctx)
	if err != nil {
		slog.Warn("location memo generation read failed", "error", err)
		return 0, false
	}
	return gen, true
}

// Set stores locs under the generation read before the scan. After an
// Invalidate that key is never read again.
func (m *RedisMemo) Set(ctx context.Context, version int64, problemID string, locs []sheet.Location) {
	if err := m.cache.SetJSON(ctx, m.key(version, problemID), locs, m.ttl); err != nil {
		slog.Warn("location memo write failed", "problem_id", problemID, "error", err)
	}
}

func (m *RedisMemo) Invalidate(ctx context.Context) {
	if err := m.cache.Client.Incr(ctx, redisMemoGenKey).Err(); err != nil {
		slog.Warn("location memo invalidate failed", "error", err)
	}
}
