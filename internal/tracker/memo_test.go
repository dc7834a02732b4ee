package tracker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-sheets/internal/platform/cache"
	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

func TestMemoryMemo(t *testing.T) {
	ctx := t.Context()
	memo := tracker.NewMemoryMemo(50 * time.Millisecond)
	locs := []sheet.Location{{SheetID: "s", SectionID: "a", SubsectionID: "b"}}

	if _, ok := memo.Get(ctx, "p1"); ok {
		t.Fatal("Get() on empty memo should miss")
	}
	v, ok := memo.Version(ctx)
	if !ok {
		t.Fatal("Version() not available")
	}
	memo.Set(ctx, v, "p1", locs)
	got, ok := memo.Get(ctx, "p1")
	if !ok || len(got) != 1 {
		t.Fatalf("Get() = %v, %v; want a hit", got, ok)
	}

	got[0].SheetID = "mutated"
	again, _ := memo.Get(ctx, "p1")
	if again[0].SheetID != "s" {
		t.Error("memo entry changed through a returned slice")
	}

	memo.Invalidate(ctx)
	if _, ok := memo.Get(ctx, "p1"); ok {
		t.Error("Get() after Invalidate should miss")
	}

	v, _ = memo.Version(ctx)
	memo.Set(ctx, v, "p1", locs)
	time.Sleep(80 * time.Millisecond)
	if _, ok := memo.Get(ctx, "p1"); ok {
		t.Error("Get() after TTL should miss")
	}
}

func TestMemoryMemo_SetAfterInvalidateIsDropped(t *testing.T) {
	ctx := t.Context()
	memo := tracker.NewMemoryMemo(time.Minute)

	v, _ := memo.Version(ctx)
	memo.Invalidate(ctx)
	memo.Set(ctx, v, "p1", []sheet.Location{{SheetID: "old"}})
	if got, ok := memo.Get(ctx, "p1"); ok {
		t.Errorf("Get() = %v, want a miss for a scan older than Invalidate", got)
	}

	v, _ = memo.Version(ctx)
	memo.Set(ctx, v, "p1", []sheet.Location{{SheetID: "new"}})
	if got, ok := memo.Get(ctx, "p1"); !ok || got[0].SheetID != "new" {
		t.Errorf("Get() = %v, %v; want the current scan", got, ok)
	}
}

// pausingSheets holds the next List after it has read the sheets until
// release is closed.
type pausingSheets struct {
	sheet.Store
	armed   atomic.Bool
	listed  chan struct{}
	release chan struct{}
}

func (s *pausingSheets) List(ctx context.Context) ([]sheet.Sheet, error) {
	out, err := s.Store.List(ctx)
	if s.armed.CompareAndSwap(true, false) {
		close(s.listed)
		<-s.release
	}
	return out, err
}

// signalMemo reports each Invalidate on a buffered channel.
type signalMemo struct {
	tracker.LocationMemo
	invalidated chan struct{}
}

func (m *signalMemo) Invalidate(ctx context.Context) {
	m.LocationMemo.Invalidate(ctx)
	select {
	case m.invalidated <- struct{}{}:
	default:
	}
}

func TestLocate_ScanOverlappingSheetWrite(t *testing.T) {
	ctx := t.Context()
	sheets := &pausingSheets{Store: sheet.NewMemoryStore(), listed: make(chan struct{}), release: make(chan struct{})}
	memo := &signalMemo{LocationMemo: tracker.NewMemoryMemo(time.Minute), invalidated: make(chan struct{}, 1)}
	svc := tracker.New(tracker.Config{Sheets: sheets, Memo: memo})

	p, err := svc.CreateProblem(ctx, problem.Problem{Title: "Two Sum"})
	if err != nil {
		t.Fatalf("CreateProblem() error = %v", err)
	}
	sh, err := svc.CreateSheet(ctx, sheet.Sheet{
		Name: "Blind 75",
		Sections: []sheet.Section{{ID: "arrays", Name: "Arrays", Subsections: []sheet.Subsection{
			{ID: "easy", Name: "Easy", Problems: []sheet.ProblemRef{sheet.Ref(p.ID)}},
			{ID: "medium", Name: "Medium"},
		}}},
	})
	if err != nil {
		t.Fatalf("CreateSheet() error = %v", err)
	}
	memo.Invalidate(ctx)
	<-memo.invalidated
	sheets.armed.Store(true)

	toggled := make(chan error, 1)
	go func() {
		_, err := svc.ToggleCompletion(ctx, "u1", p.ID)
		toggled <- err
	}()
	<-sheets.listed

	linked := make(chan error, 1)
	go func() {
		_, err := svc.LinkProblem(ctx, loc(sh.ID, "medium"), p.ID)
		linked <- err
	}()
	<-memo.invalidated
	close(sheets.release)

	if err := <-toggled; err != nil {
		t.Fatalf("ToggleCompletion() error = %v", err)
	}
	if err := <-linked; err != nil {
		t.Fatalf("LinkProblem() error = %v", err)
	}

	locs, err := svc.Locate(ctx, p.ID)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if len(locs) != 2 {
		t.Errorf("Locate() = %v, want both subsections", locs)
	}
	rec, _ := svc.GetProgress(ctx, "u1", p.ID)
	if !rec.Completed || len(rec.CompletedContexts) != 2 {
		t.Errorf("progress = %+v, want completed in both subsections", rec)
	}
}

func TestLocate_MemoInvalidatedBySheetWrite(t *testing.T) {
	f := newFixture(t)
	sh, _, p2 := f.seed(t)
	ctx := t.Context()

	locs, _ := f.svc.Locate(ctx, p2.ID)
	if len(locs) != 1 {
		t.Fatalf("Locate() = %+v, want 1 location", locs)
	}
	if _, err := f.svc.LinkProblem(ctx, loc(sh.ID, "easy"), p2.ID); err != nil {
		t.Fatalf("LinkProblem() error = %v", err)
	}
	locs, _ = f.svc.Locate(ctx, p2.ID)
	if len(locs) != 2 {
		t.Errorf("Locate() after link = %+v, want 2 locations", locs)
	}
}

func TestNewRedisMemo_NilCache(t *testing.T) {
	if _, err := tracker.NewRedisMemo(nil, time.Second); err == nil {
		t.Fatal("NewRedisMemo(nil) should error")
	}
}

func TestRedisMemo_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	memo, err := tracker.NewRedisMemo(&cache.Cache{Client: client}, time.Second)
	if err != nil {
		t.Fatalf("NewRedisMemo() error = %v", err)
	}
	ctx := t.Context()

	if _, ok := memo.Version(ctx); ok {
		t.Error("Version() against an unreachable server should not be usable")
	}
	memo.Set(ctx, 0, "p1", []sheet.Location{{SheetID: "s"}})
	if _, ok := memo.Get(ctx, "p1"); ok {
		t.Error("Get() against an unreachable server should miss")
	}
	memo.Invalidate(ctx)
}

func TestPublishers_FanOut(t *testing.T) {
	a, b := tracker.NewMemoryPublisher(), tracker.NewMemoryPublisher()
	pubs := tracker.Publishers{a, b, tracker.NopPublisher{}}

	pubs.Publish(tracker.Event{Type: tracker.EventProgressUpdated, UserID: "u1"})

	for i, p := range []*tracker.MemoryPublisher{a, b} {
		events := p.Events()
		if len(events) != 1 {
			t.Fatalf("publisher %d got %d events, want 1", i, len(events))
		}
		if events[0].CreatedAt.IsZero() {
			t.Errorf("publisher %d: CreatedAt not stamped", i)
		}
	}
}
