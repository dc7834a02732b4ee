package tracker_test

import (
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/p-n-ai/pai-sheets/internal/platform/cache"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

func newRedisCache(t *testing.T) *cache.Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := t.Context()

	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	url, err := ctr.PortEndpoint(ctx, "6379/tcp", "redis")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	c, err := cache.New(ctx, url)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisMemo(t *testing.T) {
	c := newRedisCache(t)
	ctx := t.Context()
	locs := []sheet.Location{{SheetID: "s", SectionID: "a", SubsectionID: "b"}}

	memo, err := tracker.NewRedisMemo(c, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRedisMemo() error = %v", err)
	}

	if _, ok := memo.Get(ctx, "p1"); ok {
		t.Fatal("Get() on empty memo should miss")
	}
	v, ok := memo.Version(ctx)
	if !ok {
		t.Fatal("Version() not available")
	}
	memo.Set(ctx, v, "p1", locs)
	got, ok := memo.Get(ctx, "p1")
	if !ok || len(got) != 1 || got[0] != locs[0] {
		t.Fatalf("Get() = %v, %v; want a hit", got, ok)
	}

	memo.Invalidate(ctx)
	if _, ok := memo.Get(ctx, "p1"); ok {
		t.Error("Get() after Invalidate should miss")
	}

	// A scan that started before the Invalidate is never served.
	memo.Set(ctx, v, "p1", locs)
	if _, ok := memo.Get(ctx, "p1"); ok {
		t.Error("Get() served an entry written under an old generation")
	}

	v, _ = memo.Version(ctx)
	memo.Set(ctx, v, "p2", locs)
	time.Sleep(time.Second)
	if _, ok := memo.Get(ctx, "p2"); ok {
		t.Error("Get() after TTL should miss")
	}
}

func TestRedisMemo_SharedAcrossServices(t *testing.T) {
	c := newRedisCache(t)
	ctx := t.Context()

	memoA, err := tracker.NewRedisMemo(c, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	memoB, err := tracker.NewRedisMemo(c, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	v, _ := memoA.Version(ctx)
	memoA.Set(ctx, v, "p1", []sheet.Location{{SheetID: "s"}})
	if _, ok := memoB.Get(ctx, "p1"); !ok {
		t.Fatal("entry written by one memo not visible to another")
	}
	memoB.Invalidate(ctx)
	if _, ok := memoA.Get(ctx, "p1"); ok {
		t.Error("Invalidate from one memo did not hide the other's entries")
	}
}
