package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/progress"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

// ProgressUpdate sets flags explicitly. Nil fields are left unchanged.
type ProgressUpdate struct {
	Completed *bool `json:"completed"`
	Revision  *bool `json:"revision"`
}

// Counts tallies a group of problems.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Revision  int `json:"revision"`
}

func (c *Counts) add(o Counts) {
	c.Total += o.Total
	c.Completed += o.Completed
	c.Revision += o.Revision
}

// SubsectionSummary is the per-subsection part of a SheetSummary.
type SubsectionSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Counts
}

// SectionSummary is the per-section part of a SheetSummary.
type SectionSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Counts
	Subsections []SubsectionSummary `json:"subsections"`
}

// SheetSummary is one user's progress through one sheet. A problem listed
// in several subsections is counted once per subsection.
type SheetSummary struct {
	SheetID string `json:"sheet_id"`
	Name    string `json:"name"`
	Counts
	Sections []SectionSummary `json:"sections"`
}

// GetProgress returns the user's record for a problem. A user with no record
// gets a cleared one.
func (s *Service) GetProgress(ctx context.Context, userID, problemID string) (progress.Progress, error) {
	rec, err := s.progress.Get(ctx, userID, problemID)
	if errors.Is(err, apperr.ErrNotFound) {
		return blank(userID, problemID), nil
	}
	return rec, err
}

// ListProgress returns every stored record for the user.
func (s *Service) ListProgress(ctx context.Context, userID string) ([]progress.Progress, error) {
	return s.progress.ListByUser(ctx, userID)
}

// ToggleCompletion flips the completion flag. The new state applies at every
// location where the problem currently appears.
func (s *Service) ToggleCompletion(ctx context.Context, userID, problemID string) (progress.Progress, error) {
	return s.updateProgress(ctx, userID, problemID, func(rec *progress.Progress, locs []sheet.Location) {
		rec.SetCompleted(!rec.Completed, locs)
	})
}

// ToggleRevision flips the revision flag.
func (s *Service) ToggleRevision(ctx context.Context, userID, problemID string) (progress.Progress, error) {
	return s.updateProgress(ctx, userID, problemID, func(rec *progress.Progress, locs []sheet.Location) {
		rec.SetRevision(!rec.Revision, locs)
	})
}

// SetProgress sets the flags given in u.
func (s *Service) SetProgress(ctx context.Context, userID, problemID string, u ProgressUpdate) (progress.Progress, error) {
	if u.Completed == nil && u.Revision == nil {
		return progress.Progress{}, apperr.Invalid("completed or revision is required")
	}
	return s.updateProgress(ctx, userID, problemID, func(rec *progress.Progress, locs []sheet.Location) {
		if u.Completed != nil {
			rec.SetCompleted(*u.Completed, locs)
		}
		if u.Revision != nil {
			rec.SetRevision(*u.Revision, locs)
		}
	})
}

func (s *Service) updateProgress(ctx context.Context, userID, problemID string, apply func(*progress.Progress, []sheet.Location)) (progress.Progress, error) {
	if userID == "" {
		return progress.Progress{}, apperr.Unauthorized("user id is required")
	}
	defer s.progressMu.lock(problemID)()

	if _, err := s.requireProblem(ctx, problemID); err != nil {
		return progress.Progress{}, err
	}
	locs, err := s.Locate(ctx, problemID)
	if err != nil {
		return progress.Progress{}, err
	}

	rec, err := s.GetProgress(ctx, userID, problemID)
	if err != nil {
		return progress.Progress{}, err
	}
	apply(&rec, locs)
	rec.Sync(locs)
	rec.UpdatedAt = s.now()

	if rec.Empty() {
		if err := s.progress.Delete(ctx, userID, problemID); err != nil {
			return progress.Progress{}, fmt.Errorf("clear progress: %w", err)
		}
		s.publish(EventProgressCleared, rec)
		return blank(userID, problemID), nil
	}
	if err := s.progress.Put(ctx, rec); err != nil {
		return progress.Progress{}, fmt.Errorf("save progress: %w", err)
	}
	s.publish(EventProgressUpdated, rec)
	return rec, nil
}

// SheetProgress tallies the user's progress through a sheet. A problem counts
// as completed or marked for revision in a subsection only when the record's
// contexts include that subsection.
func (s *Service) SheetProgress(ctx context.Context, userID, sheetID string) (SheetSummary, error) {
	sh, err := s.sheets.Get(ctx, sheetID)
	if err != nil {
		return SheetSummary{}, err
	}
	records, err := s.progress.ListByUser(ctx, userID)
	if err != nil {
		return SheetSummary{}, fmt.Errorf("list progress: %w", err)
	}
	byProblem := make(map[string]progress.Progress, len(records))
	for _, rec := range records {
		byProblem[rec.ProblemID] = rec
	}

	out := SheetSummary{SheetID: sh.ID, Name: sh.Name, Sections: []SectionSummary{}}
	for _, sec := range sh.Sections {
		ss := SectionSummary{ID: sec.ID, Name: sec.Name, Subsections: []SubsectionSummary{}}
		for _, sub := range sec.Subsections {
			loc := sheet.Location{SheetID: sh.ID, SectionID: sec.ID, SubsectionID: sub.ID}
			subSum := SubsectionSummary{ID: sub.ID, Name: sub.Name}
			for _, ref := range sub.Problems {
				subSum.Total++
				rec, ok := byProblem[ref.ID]
				if !ok {
					continue
				}
				if rec.CompletedAt(loc) {
					subSum.Completed++
				}
				if rec.RevisionAt(loc) {
					subSum.Revision++
				}
			}
			ss.add(subSum.Counts)
			ss.Subsections = append(ss.Subsections, subSum)
		}
		out.add(ss.Counts)
		out.Sections = append(out.Sections, ss)
	}
	return out, nil
}

func blank(userID, problemID string) progress.Progress {
	return progress.Progress{
		UserID:            userID,
		ProblemID:         problemID,
		CompletedContexts: []sheet.Location{},
		RevisionContexts:  []sheet.Location{},
	}
}
