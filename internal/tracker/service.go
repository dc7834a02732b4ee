// Package tracker coordinates problems, sheets and user progress.
//
// Sheets reference problems by ID and progress records copy the set of sheet
// locations where a problem appears. Every operation that changes where a
// problem appears resynchronizes the affected progress records afterwards.
// Those follow-up steps are best-effort: failures are logged and the caller
// sees only the result of the primary write.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/progress"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

// Config holds dependencies for the tracker service.
type Config struct {
	Problems problem.Store
	Sheets   sheet.Store
	Progress progress.Store
	Memo     LocationMemo   // default: in-process memo with a 30s TTL
	Events   EventPublisher // default: NopPublisher
	Now      func() time.Time
	NewID    func() string
}

// Service implements the tracker operations.
type Service struct {
	problems problem.Store
	sheets   sheet.Store
	progress progress.Store
	memo     LocationMemo
	events   EventPublisher
	now      func() time.Time
	newID    func() string

	// sheetMu serializes read-modify-write cycles on sheet documents.
	sheetMu sync.Mutex
	// progressMu serializes progress read-modify-write cycles per problem.
	progressMu problemLocks
}

const lockStripes = 64

// problemLocks is a fixed set of mutexes picked by hashing a problem ID.
type problemLocks [lockStripes]sync.Mutex

func (l *problemLocks) lock(problemID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(problemID))
	mu := &l[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// New creates a tracker service. Missing stores default to in-memory ones.
func New(cfg Config) *Service {
	problems := cfg.Problems
	if problems == nil {
		problems = problem.NewCachedStore(problem.NewMemoryStore())
	}
	sheets := cfg.Sheets
	if sheets == nil {
		sheets = sheet.NewMemoryStore()
	}
	progressStore := cfg.Progress
	if progressStore == nil {
		progressStore = progress.NewMemoryStore()
	}
	memo := cfg.Memo
	if memo == nil {
		memo = NewMemoryMemo(defaultMemoTTL)
	}
	events := cfg.Events
	if events == nil {
		events = NopPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		problems: problems,
		sheets:   sheets,
		progress: progressStore,
		memo:     memo,
		events:   events,
		now:      now,
		newID:    newID,
	}
}

// Locate returns every sheet location that references problemID. Results are
// memoized until the next sheet write or the memo TTL, whichever comes first.
func (s *Service) Locate(ctx context.Context, problemID string) ([]sheet.Location, error) {
	if locs, ok := s.memo.Get(ctx, problemID); ok {
		if locs == nil {
			locs = []sheet.Location{}
		}
		return locs, nil
	}

	version, memoize := s.memo.Version(ctx)
	all, err := s.sheets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("locate problem %s: %w", problemID, err)
	}
	locs := sheet.Locate(all, problemID)
	if locs == nil {
		locs = []sheet.Location{}
	}
	if memoize {
		s.memo.Set(ctx, version, problemID, locs)
	}
	return locs, nil
}

// Resync rewrites the contexts of every progress record for problemID to
// match the problem's current locations. It returns the number of records
// that changed.
func (s *Service) Resync(ctx context.Context, problemID string) (int, error) {
	locs, err := s.Locate(ctx, problemID)
	if err != nil {
		return 0, err
	}
	return s.syncRecords(ctx, problemID, locs)
}

func (s *Service) syncRecords(ctx context.Context, problemID string, locs []sheet.Location) (int, error) {
	defer s.progressMu.lock(problemID)()

	records, err := s.progress.ListByProblem(ctx, problemID)
	if err != nil {
		return 0, fmt.Errorf("list progress for %s: %w", problemID, err)
	}

	changed := 0
	var errs []error
	for _, rec := range records {
		if !rec.Sync(locs) {
			continue
		}
		rec.UpdatedAt = s.now()
		if err := s.progress.Put(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("sync progress %s/%s: %w", rec.UserID, rec.ProblemID, err))
			continue
		}
		changed++
		s.publish(EventProgressUpdated, rec)
	}
	return changed, errors.Join(errs...)
}

// ResyncAll rebuilds the contexts of every progress record from a single scan
// of all sheets.
func (s *Service) ResyncAll(ctx context.Context) (int, error) {
	s.memo.Invalidate(ctx)

	sheets, err := s.sheets.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sheets: %w", err)
	}
	problems, err := s.problems.List(ctx, problem.Filter{})
	if err != nil {
		return 0, fmt.Errorf("list problems: %w", err)
	}

	index := make(map[string][]sheet.Location)
	for _, sh := range sheets {
		for _, sec := range sh.Sections {
			for _, sub := range sec.Subsections {
				loc := sheet.Location{SheetID: sh.ID, SectionID: sec.ID, SubsectionID: sub.ID}
				for _, ref := range sub.Problems {
					index[ref.ID] = append(index[ref.ID], loc)
				}
			}
		}
	}
	for _, p := range problems {
		if _, ok := index[p.ID]; !ok {
			index[p.ID] = []sheet.Location{}
		}
	}

	total := 0
	var errs []error
	for id, locs := range index {
		n, err := s.syncRecords(ctx, id, locs)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	slog.Info("progress resync complete", "problems", len(index), "updated", total)
	return total, errors.Join(errs...)
}

// resyncQuietly runs Resync for each problem and logs failures.
func (s *Service) resyncQuietly(ctx context.Context, problemIDs []string) {
	for _, id := range problemIDs {
		if _, err := s.Resync(ctx, id); err != nil {
			slog.Warn("progress resync failed", "problem_id", id, "error", err)
		}
	}
}

func (s *Service) publish(eventType string, rec progress.Progress) {
	ev := Event{
		Type:      eventType,
		UserID:    rec.UserID,
		ProblemID: rec.ProblemID,
		CreatedAt: s.now(),
	}
	if eventType != EventProgressCleared {
		snapshot := rec.Clone()
		ev.Progress = &snapshot
	}
	s.events.Publish(ev)
}

func (s *Service) requireProblem(ctx context.Context, id string) (problem.Problem, error) {
	if id == "" {
		return problem.Problem{}, apperr.Invalid("problem id is required")
	}
	return s.problems.Get(ctx, id)
}
