package progress_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/progress"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

var (
	locA = sheet.Location{SheetID: "s1", SectionID: "arrays", SubsectionID: "easy"}
	locB = sheet.Location{SheetID: "s2", SectionID: "dp", SubsectionID: "1d"}
)

func TestProgress_SetCompleted(t *testing.T) {
	var p progress.Progress
	p.SetCompleted(true, []sheet.Location{locA, locB})

	if !p.CompletedAt(locA) || !p.CompletedAt(locB) {
		t.Errorf("CompletedContexts = %+v, want both locations", p.CompletedContexts)
	}
	if p.Empty() {
		t.Error("Empty() = true for a completed record")
	}

	p.SetCompleted(false, []sheet.Location{locA, locB})
	if p.CompletedAt(locA) {
		t.Error("CompletedAt() should be false once cleared")
	}
	if len(p.CompletedContexts) != 0 {
		t.Errorf("CompletedContexts = %+v, want empty", p.CompletedContexts)
	}
	if !p.Empty() {
		t.Error("Empty() = false with both flags cleared")
	}
}

func TestProgress_Sync(t *testing.T) {
	p := progress.Progress{UserID: "u", ProblemID: "p"}
	p.SetCompleted(true, []sheet.Location{locA})
	p.SetRevision(false, nil)

	if !p.Sync([]sheet.Location{locA, locB}) {
		t.Fatal("Sync() should report a change when a location is added")
	}
	if !p.CompletedAt(locB) {
		t.Error("new location missing from completed contexts")
	}
	if len(p.RevisionContexts) != 0 {
		t.Errorf("revision contexts = %+v, want none while revision is off", p.RevisionContexts)
	}
	if p.Sync([]sheet.Location{locA, locB}) {
		t.Error("Sync() with the same locations should report no change")
	}

	p.Sync([]sheet.Location{locB})
	if p.CompletedAt(locA) {
		t.Error("removed location still present in completed contexts")
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	p := progress.Progress{UserID: "u1", ProblemID: "p1"}
	p.SetCompleted(true, []sheet.Location{locA})
	if err := store.Put(ctx, p); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.CompletedAt(locA) {
		t.Errorf("Get() = %+v, want completed at %v", got, locA)
	}

	got.CompletedContexts[0] = locB
	again, _ := store.Get(ctx, "u1", "p1")
	if again.CompletedContexts[0] != locA {
		t.Error("stored contexts changed through a returned copy")
	}

	if err := store.Delete(ctx, "u1", "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "u1", "p1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
}

func TestMemoryStore_PutRequiresKeys(t *testing.T) {
	store := progress.NewMemoryStore()
	if err := store.Put(context.Background(), progress.Progress{UserID: "u1"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("Put() error = %v, want invalid", err)
	}
}

func TestMemoryStore_ListAndDeleteByProblem(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()

	for _, rec := range []struct{ user, problem string }{
		{"u1", "p1"}, {"u1", "p2"}, {"u2", "p1"}, {"u3", "p3"},
	} {
		p := progress.Progress{UserID: rec.user, ProblemID: rec.problem, Completed: true}
		if err := store.Put(ctx, p); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	byUser, _ := store.ListByUser(ctx, "u1")
	if len(byUser) != 2 || byUser[0].ProblemID != "p1" || byUser[1].ProblemID != "p2" {
		t.Errorf("ListByUser(u1) = %+v", byUser)
	}

	byProblem, _ := store.ListByProblem(ctx, "p1")
	if len(byProblem) != 2 {
		t.Errorf("ListByProblem(p1) = %d records, want 2", len(byProblem))
	}

	n, err := store.DeleteByProblem(ctx, "p1")
	if err != nil {
		t.Fatalf("DeleteByProblem() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByProblem() = %d, want 2", n)
	}
	if left, _ := store.ListByProblem(ctx, "p1"); len(left) != 0 {
		t.Errorf("records left for p1 = %d", len(left))
	}
	if left, _ := store.ListByUser(ctx, "u3"); len(left) != 1 {
		t.Error("DeleteByProblem touched another problem's records")
	}
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := progress.NewPostgresStore(nil); err == nil {
		t.Fatal("NewPostgresStore(nil) should error")
	}
}
