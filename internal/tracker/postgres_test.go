package tracker_test

import (
	"errors"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/platform/database"
	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/progress"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

func newPostgresService(t *testing.T) *tracker.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := t.Context()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("sheets"),
		postgres.WithUsername("sheets"),
		postgres.WithPassword("sheets"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := database.New(ctx, dsn, 5, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	problems, err := problem.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatal(err)
	}
	sheets, err := sheet.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatal(err)
	}
	records, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatal(err)
	}
	return tracker.New(tracker.Config{
		Problems: problem.NewCachedStore(problems),
		Sheets:   sheets,
		Progress: records,
	})
}

func TestPostgres_Lifecycle(t *testing.T) {
	svc := newPostgresService(t)
	ctx := t.Context()

	p1, err := svc.CreateProblem(ctx, problem.Problem{Title: "Two Sum", Tags: []string{"Array", "Hash Table"}})
	if err != nil {
		t.Fatalf("CreateProblem() error = %v", err)
	}
	if _, err := svc.CreateProblem(ctx, p1); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate CreateProblem() error = %v, want conflict", err)
	}

	sh, err := svc.CreateSheet(ctx, sheet.Sheet{
		Name: "Blind 75",
		Sections: []sheet.Section{{ID: "arrays", Name: "Arrays", Subsections: []sheet.Subsection{
			{ID: "easy", Name: "Easy", Problems: []sheet.ProblemRef{sheet.Ref(p1.ID)}},
			{ID: "medium", Name: "Medium"},
		}}},
	})
	if err != nil {
		t.Fatalf("CreateSheet() error = %v", err)
	}

	got, err := svc.GetSheet(ctx, sh.ID, true)
	if err != nil {
		t.Fatalf("GetSheet() error = %v", err)
	}
	if got.Name != "Blind 75" || got.Sections[0].Subsections[0].Problems[0].Problem == nil {
		t.Errorf("GetSheet() = %+v", got)
	}

	rec, err := svc.ToggleCompletion(ctx, "u1", p1.ID)
	if err != nil {
		t.Fatalf("ToggleCompletion() error = %v", err)
	}
	if !rec.Completed {
		t.Error("Completed = false after toggle")
	}

	if _, err := svc.LinkProblem(ctx, loc(sh.ID, "medium"), p1.ID); err != nil {
		t.Fatalf("LinkProblem() error = %v", err)
	}
	rec, _ = svc.GetProgress(ctx, "u1", p1.ID)
	if len(rec.CompletedContexts) != 2 {
		t.Errorf("contexts after link = %+v, want 2", rec.CompletedContexts)
	}

	if err := svc.DeleteProblem(ctx, p1.ID); err != nil {
		t.Fatalf("DeleteProblem() error = %v", err)
	}
	got, _ = svc.GetSheet(ctx, sh.ID, false)
	if got.Contains(p1.ID) {
		t.Error("deleted problem still referenced")
	}
	if all, _ := svc.ListProgress(ctx, "u1"); len(all) != 0 {
		t.Errorf("progress left after delete: %+v", all)
	}
}
